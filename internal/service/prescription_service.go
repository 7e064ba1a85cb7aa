package service

import (
	"context"
	"time"

	"github.com/shawon2210/Online24Pharmacy-sub001/internal/events"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/models"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PrescriptionService struct {
	repo *repository.Repository
	bus  events.Bus
	log  *zap.Logger
	now  func() time.Time
}

func NewPrescriptionService(repo *repository.Repository, bus events.Bus, log *zap.Logger) *PrescriptionService {
	return &PrescriptionService{repo: repo, bus: bus, log: log, now: time.Now}
}

// ReviewPrescription: PENDING -> APPROVED | REJECTED. expiresAt, если передан, заменяет сохранённый срок.
func (s *PrescriptionService) ReviewPrescription(ctx context.Context, prescriptionID uuid.UUID, approve bool, reviewerID uuid.UUID, expiresAt *time.Time) (*models.Prescription, error) {
	status := models.PrescriptionRejected
	if approve {
		status = models.PrescriptionApproved
	}
	now := s.now().UTC()

	var rx *models.Prescription
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		p, err := tx.Prescriptions.GetByID(ctx, prescriptionID)
		if err != nil {
			return err
		}
		if p == nil {
			return ErrPrescriptionNotFound
		}
		if p.Status != models.PrescriptionPending {
			return ErrPrescriptionAlreadyReviewed
		}

		ok, err := tx.Prescriptions.Review(ctx, prescriptionID, status, reviewerID, now, expiresAt)
		if err != nil {
			return err
		}
		if !ok {
			return ErrPrescriptionAlreadyReviewed
		}

		if err := appendAudit(ctx, tx.Audit, reviewerID, ActionPrescriptionReviewed, models.TargetPrescription, prescriptionID,
			map[string]any{"status": p.Status},
			map[string]any{"status": status, "expires_at": expiresAt},
		); err != nil {
			return err
		}

		rx, err = tx.Prescriptions.GetByID(ctx, prescriptionID)
		return err
	})
	if err != nil {
		return nil, typed("review prescription", err)
	}

	s.log.Info("prescription reviewed",
		zap.String("prescription_id", prescriptionID.String()),
		zap.String("status", string(status)),
		zap.String("reviewer_id", reviewerID.String()))

	if err := s.bus.Publish(ctx, events.New(events.PrescriptionReviewed, events.PrescriptionReviewedPayload{
		PrescriptionID: prescriptionID,
		UserID:         rx.UserID,
		Status:         status,
		ReviewerID:     reviewerID,
	})); err != nil {
		s.log.Error("prescription reviewed publish failed", zap.String("prescription_id", prescriptionID.String()), zap.Error(err))
	}
	return rx, nil
}
