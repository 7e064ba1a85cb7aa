package repository

import (
	"context"

	"github.com/shawon2210/Online24Pharmacy-sub001/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WishlistRepo interface {
	Add(ctx context.Context, item *models.WishlistItem) error
	ListVisibleByUser(ctx context.Context, userID uuid.UUID) ([]models.WishlistItem, error)
	SetVisibilityByProduct(ctx context.Context, productID uuid.UUID, visible bool) (int64, error)
}

type wishlistRepo struct{ db *gorm.DB }

func NewWishlistRepo(db *gorm.DB) WishlistRepo { return &wishlistRepo{db: db} }

func (r *wishlistRepo) Add(ctx context.Context, item *models.WishlistItem) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(item).Error
}

func (r *wishlistRepo) ListVisibleByUser(ctx context.Context, userID uuid.UUID) ([]models.WishlistItem, error) {
	var list []models.WishlistItem
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_visible = ?", userID, true).
		Order("created_at ASC").
		Find(&list).Error
	return list, err
}

func (r *wishlistRepo) SetVisibilityByProduct(ctx context.Context, productID uuid.UUID, visible bool) (int64, error) {
	tx := r.db.WithContext(ctx).
		Model(&models.WishlistItem{}).
		Where("product_id = ? AND is_visible = ?", productID, !visible).
		Update("is_visible", visible)
	return tx.RowsAffected, tx.Error
}
