package retention

import (
	"context"
	"time"

	"github.com/shawon2210/Online24Pharmacy-sub001/internal/models"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/repository"

	"go.uber.org/zap"
)

// DefaultPrescriptionAuditWindow: аудит рецептов хранится два года.
const DefaultPrescriptionAuditWindow = 730 * 24 * time.Hour

type Service struct {
	audit  repository.AuditRepo
	log    *zap.Logger
	window time.Duration
}

func NewService(audit repository.AuditRepo, window time.Duration, log *zap.Logger) *Service {
	if window <= 0 {
		window = DefaultPrescriptionAuditWindow
	}
	return &Service{audit: audit, log: log, window: window}
}

// PurgePrescriptionAudit удаляет записи аудита рецептов старше окна хранения.
// Аудит остальных сущностей не трогается.
func (s *Service) PurgePrescriptionAudit(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.UTC().Add(-s.window)
	n, err := s.audit.DeleteOlderThan(ctx, models.TargetPrescription, cutoff)
	if err != nil {
		s.log.Error("failed to purge prescription audit", zap.Time("cutoff", cutoff), zap.Error(err))
		return 0, err
	}
	if n > 0 {
		s.log.Info("purged prescription audit", zap.Int64("count", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}
