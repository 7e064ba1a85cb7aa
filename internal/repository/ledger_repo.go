package repository

import (
	"context"
	"time"

	"github.com/shawon2210/Online24Pharmacy-sub001/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditRepo: только добавление и чтение. Удаление есть лишь у ретенции.
type AuditRepo interface {
	Append(ctx context.Context, rec *models.AuditRecord) error
	ListByTarget(ctx context.Context, targetType string, targetID uuid.UUID) ([]models.AuditRecord, error)
	DeleteOlderThan(ctx context.Context, targetType string, cutoff time.Time) (int64, error)
}

type auditRepo struct{ db *gorm.DB }

func NewAuditRepo(db *gorm.DB) AuditRepo { return &auditRepo{db: db} }

func (r *auditRepo) Append(ctx context.Context, rec *models.AuditRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *auditRepo) ListByTarget(ctx context.Context, targetType string, targetID uuid.UUID) ([]models.AuditRecord, error) {
	var list []models.AuditRecord
	err := r.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Order("created_at ASC").
		Find(&list).Error
	return list, err
}

func (r *auditRepo) DeleteOlderThan(ctx context.Context, targetType string, cutoff time.Time) (int64, error) {
	tx := r.db.WithContext(ctx).
		Where("target_type = ? AND created_at < ?", targetType, cutoff).
		Delete(&models.AuditRecord{})
	return tx.RowsAffected, tx.Error
}

type StockMovementRepo interface {
	Append(ctx context.Context, m *models.StockMovement) error
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.StockMovement, error)
}

type stockMovementRepo struct{ db *gorm.DB }

func NewStockMovementRepo(db *gorm.DB) StockMovementRepo { return &stockMovementRepo{db: db} }

func (r *stockMovementRepo) Append(ctx context.Context, m *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *stockMovementRepo) ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.StockMovement, error) {
	var list []models.StockMovement
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at ASC").
		Find(&list).Error
	return list, err
}
