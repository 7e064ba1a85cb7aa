package repository

import (
	"context"
	"errors"

	"github.com/shawon2210/Online24Pharmacy-sub001/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrderRepo interface {
	// Create сохраняет заказ вместе с позициями.
	Create(ctx context.Context, o *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// UpdateStatus: compare-and-set по текущему статусу.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, int64, error)
}

type orderRepo struct{ db *gorm.DB }

func NewOrderRepo(db *gorm.DB) OrderRepo { return &orderRepo{db: db} }

func (r *orderRepo) Create(ctx context.Context, o *models.Order) error {
	return r.db.WithContext(ctx).Create(o).Error
}

func withItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}

func (r *orderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var o models.Order
	err := withItems(r.db.WithContext(ctx)).First(&o, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &o, err
}

func (r *orderRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var o models.Order
	err := forUpdate(r.db.WithContext(ctx)).First(&o, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", id).
		Order("position ASC").
		Find(&o.Items).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus) (bool, error) {
	tx := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return tx.RowsAffected > 0, tx.Error
}

func (r *orderRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, int64, error) {
	var (
		list  []models.Order
		total int64
	)
	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID)
	}
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 20
	}
	err := withItems(base()).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&list).Error
	return list, total, err
}
