package repository

import (
	"context"

	"github.com/shawon2210/Online24Pharmacy-sub001/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReservationRepo interface {
	Create(ctx context.Context, r *models.Reservation) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Reservation, error)
	// Transition меняет статус только из RESERVED: повторный вызов ничего не делает.
	Transition(ctx context.Context, id uuid.UUID, to models.ReservationStatus) (bool, error)
	SumReservedByProduct(ctx context.Context, productID uuid.UUID) (int64, error)
}

type reservationRepo struct{ db *gorm.DB }

func NewReservationRepo(db *gorm.DB) ReservationRepo { return &reservationRepo{db: db} }

func (r *reservationRepo) Create(ctx context.Context, rec *models.Reservation) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *reservationRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Reservation, error) {
	var list []models.Reservation
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&list).Error
	return list, err
}

func (r *reservationRepo) Transition(ctx context.Context, id uuid.UUID, to models.ReservationStatus) (bool, error) {
	tx := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ? AND status = ?", id, models.ReservationReserved).
		Update("status", to)
	return tx.RowsAffected > 0, tx.Error
}

func (r *reservationRepo) SumReservedByProduct(ctx context.Context, productID uuid.UUID) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("product_id = ? AND status = ?", productID, models.ReservationReserved).
		Scan(&sum).Error
	return sum, err
}
