package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shawon2210/Online24Pharmacy-sub001/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProductRepo interface {
	Create(ctx context.Context, p *models.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	// GetForUpdate блокирует строку до конца транзакции (PostgreSQL).
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (bool, error)
	CountActiveByCategory(ctx context.Context, categoryID uuid.UUID) (int64, error)
	CountActiveBySubcategory(ctx context.Context, subcategoryID uuid.UUID) (int64, error)

	// Складские операции (атомарно, одно условное UPDATE):
	// SetStock: stock = n, если n >= reserved
	SetStock(ctx context.Context, id uuid.UUID, n int32) (bool, error)
	// TryReserve: reserved += q, если stock - reserved >= q
	TryReserve(ctx context.Context, id uuid.UUID, q int32) (bool, error)
	// Release: reserved -= q
	Release(ctx context.Context, id uuid.UUID, q int32) (bool, error)
	// Commit: stock -= q; reserved -= q (товар ушёл со склада)
	Commit(ctx context.Context, id uuid.UUID, q int32) (bool, error)
}

type productRepo struct{ db *gorm.DB }

func NewProductRepo(db *gorm.DB) ProductRepo { return &productRepo{db: db} }

func (r *productRepo) Create(ctx context.Context, p *models.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *productRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &p, err
}

func (r *productRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	err := forUpdate(r.db.WithContext(ctx)).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &p, err
}

func (r *productRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error) {
	out := make(map[uuid.UUID]*models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var list []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&list).Error; err != nil {
		return nil, err
	}
	for i := range list {
		out[list[i].ID] = &list[i]
	}
	return out, nil
}

func (r *productRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) (bool, error) {
	tx := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND is_active = ?", id, !active).
		Update("is_active", active)
	return tx.RowsAffected > 0, tx.Error
}

func (r *productRepo) CountActiveByCategory(ctx context.Context, categoryID uuid.UUID) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("category_id = ? AND is_active = ?", categoryID, true).
		Count(&cnt).Error
	return cnt, err
}

func (r *productRepo) CountActiveBySubcategory(ctx context.Context, subcategoryID uuid.UUID) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("subcategory_id = ? AND is_active = ?", subcategoryID, true).
		Count(&cnt).Error
	return cnt, err
}

func (r *productRepo) SetStock(ctx context.Context, id uuid.UUID, n int32) (bool, error) {
	tx := r.db.WithContext(ctx).Exec(`
UPDATE products
SET stock_quantity = @n,
    updated_at = @now
WHERE id = @pid
  AND reserved_quantity <= @n
`, map[string]any{
		"pid": id,
		"n":   n,
		"now": time.Now().UTC(),
	})
	return tx.RowsAffected > 0, tx.Error
}

func (r *productRepo) TryReserve(ctx context.Context, id uuid.UUID, q int32) (bool, error) {
	// атомарно: reserved += q, если доступного хватает
	tx := r.db.WithContext(ctx).Exec(`
UPDATE products
SET reserved_quantity = reserved_quantity + @q,
    updated_at = @now
WHERE id = @pid
  AND stock_quantity - reserved_quantity >= @q
`, map[string]any{
		"pid": id,
		"q":   q,
		"now": time.Now().UTC(),
	})
	return tx.RowsAffected > 0, tx.Error
}

func (r *productRepo) Release(ctx context.Context, id uuid.UUID, q int32) (bool, error) {
	tx := r.db.WithContext(ctx).Exec(`
UPDATE products
SET reserved_quantity = reserved_quantity - @q,
    updated_at = @now
WHERE id = @pid
  AND reserved_quantity >= @q
`, map[string]any{
		"pid": id,
		"q":   q,
		"now": time.Now().UTC(),
	})
	return tx.RowsAffected > 0, tx.Error
}

func (r *productRepo) Commit(ctx context.Context, id uuid.UUID, q int32) (bool, error) {
	// списываем резерв окончательно
	tx := r.db.WithContext(ctx).Exec(`
UPDATE products
SET stock_quantity    = stock_quantity - @q,
    reserved_quantity = reserved_quantity - @q,
    updated_at = @now
WHERE id = @pid
  AND reserved_quantity >= @q
  AND stock_quantity >= @q
`, map[string]any{
		"pid": id,
		"q":   q,
		"now": time.Now().UTC(),
	})
	return tx.RowsAffected > 0, tx.Error
}
