package repository

import (
	"context"
	"time"

	"github.com/shawon2210/Online24Pharmacy-sub001/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationRepo: outbox уведомлений.
type NotificationRepo interface {
	Enqueue(ctx context.Context, n *models.Notification) error
	ListPending(ctx context.Context, limit int) ([]models.Notification, error)
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	// MarkAttemptFailed увеличивает счётчик; при final=true строка уходит в FAILED.
	MarkAttemptFailed(ctx context.Context, id uuid.UUID, lastErr string, final bool) error
	ListByType(ctx context.Context, typ string) ([]models.Notification, error)
}

type notificationRepo struct{ db *gorm.DB }

func NewNotificationRepo(db *gorm.DB) NotificationRepo { return &notificationRepo{db: db} }

func (r *notificationRepo) Enqueue(ctx context.Context, n *models.Notification) error {
	if n.Status == "" {
		n.Status = models.NotificationPending
	}
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *notificationRepo) ListPending(ctx context.Context, limit int) ([]models.Notification, error) {
	var list []models.Notification
	err := r.db.WithContext(ctx).
		Where("status = ?", models.NotificationPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

func (r *notificationRepo) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":   models.NotificationSent,
			"sent_at":  at,
			"attempts": gorm.Expr("attempts + 1"),
		}).Error
}

func (r *notificationRepo) MarkAttemptFailed(ctx context.Context, id uuid.UUID, lastErr string, final bool) error {
	fields := map[string]any{
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": lastErr,
	}
	if final {
		fields["status"] = models.NotificationFailed
	}
	return r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *notificationRepo) ListByType(ctx context.Context, typ string) ([]models.Notification, error) {
	var list []models.Notification
	err := r.db.WithContext(ctx).
		Where("type = ?", typ).
		Order("created_at ASC").
		Find(&list).Error
	return list, err
}
