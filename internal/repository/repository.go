package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	DB             *gorm.DB
	Products       ProductRepo
	Catalog        CatalogRepo
	Carts          CartRepo
	Wishlists      WishlistRepo
	Prescriptions  PrescriptionRepo
	Orders         OrderRepo
	Reservations   ReservationRepo
	Audit          AuditRepo
	StockMovements StockMovementRepo
	Notifications  NotificationRepo
}

func buildRepository(db *gorm.DB) *Repository {
	return &Repository{
		DB:             db,
		Products:       NewProductRepo(db),
		Catalog:        NewCatalogRepo(db),
		Carts:          NewCartRepo(db),
		Wishlists:      NewWishlistRepo(db),
		Prescriptions:  NewPrescriptionRepo(db),
		Orders:         NewOrderRepo(db),
		Reservations:   NewReservationRepo(db),
		Audit:          NewAuditRepo(db),
		StockMovements: NewStockMovementRepo(db),
		Notifications:  NewNotificationRepo(db),
	}
}

func New(db *gorm.DB) *Repository { return buildRepository(db) }

// Глобальная транзакция на весь набор репо. Внутри fn используйте только tx.
func (r *Repository) WithTx(ctx context.Context, fn func(tx *Repository) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(buildRepository(tx))
	})
}

// forUpdate добавляет SELECT ... FOR UPDATE там, где диалект это умеет.
// SQLite сериализует писателей сам.
func forUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "sqlite" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
