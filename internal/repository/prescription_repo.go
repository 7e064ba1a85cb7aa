package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shawon2210/Online24Pharmacy-sub001/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PrescriptionRepo interface {
	Create(ctx context.Context, p *models.Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Prescription, error)
	// Review переводит PENDING в APPROVED/REJECTED; false: рецепт уже рассмотрен.
	Review(ctx context.Context, id uuid.UUID, status models.PrescriptionStatus, reviewerID uuid.UUID, at time.Time, expiresAt *time.Time) (bool, error)
}

type prescriptionRepo struct{ db *gorm.DB }

func NewPrescriptionRepo(db *gorm.DB) PrescriptionRepo { return &prescriptionRepo{db: db} }

func (r *prescriptionRepo) Create(ctx context.Context, p *models.Prescription) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *prescriptionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Prescription, error) {
	var p models.Prescription
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &p, err
}

func (r *prescriptionRepo) Review(ctx context.Context, id uuid.UUID, status models.PrescriptionStatus, reviewerID uuid.UUID, at time.Time, expiresAt *time.Time) (bool, error) {
	fields := map[string]any{
		"status":      status,
		"reviewed_by": reviewerID,
		"reviewed_at": at,
	}
	if expiresAt != nil {
		fields["expires_at"] = *expiresAt
	}
	tx := r.db.WithContext(ctx).
		Model(&models.Prescription{}).
		Where("id = ? AND status = ?", id, models.PrescriptionPending).
		Updates(fields)
	return tx.RowsAffected > 0, tx.Error
}
