package repository

import (
	"context"

	"github.com/shawon2210/Online24Pharmacy-sub001/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartRepo interface {
	// Upsert: повторное добавление того же товара заменяет количество.
	Upsert(ctx context.Context, item *models.CartItem) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	CountByProduct(ctx context.Context, productID uuid.UUID) (int64, error)
	// DeleteByProduct удаляет все позиции товара одной пачкой и возвращает
	// владельцев удалённых корзин.
	DeleteByProduct(ctx context.Context, productID uuid.UUID) ([]uuid.UUID, error)
}

type cartRepo struct{ db *gorm.DB }

func NewCartRepo(db *gorm.DB) CartRepo { return &cartRepo{db: db} }

func (r *cartRepo) Upsert(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
		}).
		Create(item).Error
}

func (r *cartRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var list []models.CartItem
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&list).Error
	return list, err
}

func (r *cartRepo) CountByProduct(ctx context.Context, productID uuid.UUID) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("product_id = ?", productID).
		Count(&cnt).Error
	return cnt, err
}

func (r *cartRepo) DeleteByProduct(ctx context.Context, productID uuid.UUID) ([]uuid.UUID, error) {
	var users []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("product_id = ?", productID).
		Order("user_id ASC").
		Pluck("user_id", &users).Error; err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	// удаляем ровно тех, о ком отчитаемся; опоздавших подберёт следующий запуск
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND user_id IN ?", productID, users).
		Delete(&models.CartItem{}).Error
	return users, err
}
