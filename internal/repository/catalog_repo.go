package repository

import (
	"context"
	"errors"

	"github.com/shawon2210/Online24Pharmacy-sub001/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CatalogRepo: категории и подкатегории.
type CatalogRepo interface {
	CreateCategory(ctx context.Context, c *models.Category) error
	CreateSubcategory(ctx context.Context, s *models.Subcategory) error
	GetCategory(ctx context.Context, id uuid.UUID) (*models.Category, error)
	GetCategoryForUpdate(ctx context.Context, id uuid.UUID) (*models.Category, error)
	GetSubcategory(ctx context.Context, id uuid.UUID) (*models.Subcategory, error)
	GetSubcategoryForUpdate(ctx context.Context, id uuid.UUID) (*models.Subcategory, error)
	SetCategoryActive(ctx context.Context, id uuid.UUID, active bool) error
	SetSubcategoryActive(ctx context.Context, id uuid.UUID, active bool) error
	// DeactivateSubcategories выключает все активные подкатегории категории и возвращает их id.
	DeactivateSubcategories(ctx context.Context, categoryID uuid.UUID) ([]uuid.UUID, error)
}

type catalogRepo struct{ db *gorm.DB }

func NewCatalogRepo(db *gorm.DB) CatalogRepo { return &catalogRepo{db: db} }

func (r *catalogRepo) CreateCategory(ctx context.Context, c *models.Category) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *catalogRepo) CreateSubcategory(ctx context.Context, s *models.Subcategory) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *catalogRepo) GetCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var c models.Category
	err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &c, err
}

func (r *catalogRepo) GetCategoryForUpdate(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var c models.Category
	err := forUpdate(r.db.WithContext(ctx)).First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &c, err
}

func (r *catalogRepo) GetSubcategory(ctx context.Context, id uuid.UUID) (*models.Subcategory, error) {
	var s models.Subcategory
	err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &s, err
}

func (r *catalogRepo) GetSubcategoryForUpdate(ctx context.Context, id uuid.UUID) (*models.Subcategory, error) {
	var s models.Subcategory
	err := forUpdate(r.db.WithContext(ctx)).First(&s, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &s, err
}

func (r *catalogRepo) SetCategoryActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.db.WithContext(ctx).
		Model(&models.Category{}).
		Where("id = ?", id).
		Update("is_active", active).Error
}

func (r *catalogRepo) SetSubcategoryActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.db.WithContext(ctx).
		Model(&models.Subcategory{}).
		Where("id = ?", id).
		Update("is_active", active).Error
}

func (r *catalogRepo) DeactivateSubcategories(ctx context.Context, categoryID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.Subcategory{}).
		Where("category_id = ? AND is_active = ?", categoryID, true).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	err := r.db.WithContext(ctx).
		Model(&models.Subcategory{}).
		Where("id IN ?", ids).
		Update("is_active", false).Error
	return ids, err
}
