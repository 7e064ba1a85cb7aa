package service

import (
	"context"

	"github.com/shawon2210/Online24Pharmacy-sub001/internal/events"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/models"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ReasonOutOfStock         = "out_of_stock"
	ReasonProductDeactivated = "product_deactivated"
)

// CartCascade удаляет позиции корзин с товаром, ставшим недоступным.
type CartCascade struct {
	repo *repository.Repository
	bus  events.Bus
	log  *zap.Logger
}

func NewCartCascade(repo *repository.Repository, bus events.Bus, log *zap.Logger) *CartCascade {
	return &CartCascade{repo: repo, bus: bus, log: log}
}

// InvalidateForProduct идемпотентна: без позиций в корзинах: no-op.
func (c *CartCascade) InvalidateForProduct(ctx context.Context, productID uuid.UUID, reason string) ([]uuid.UUID, error) {
	users, err := c.repo.Carts.DeleteByProduct(ctx, productID)
	if err != nil {
		return nil, typed("invalidate carts", err)
	}
	if len(users) == 0 {
		return nil, nil
	}

	// аудит: побочный канал: удаление уже произошло
	if err := c.audit(ctx, c.repo.Audit, productID, reason, users); err != nil {
		c.log.Error("cart invalidation audit failed",
			zap.String("product_id", productID.String()),
			zap.String("reason", reason),
			zap.Int("count", len(users)),
			zap.Error(err))
	}
	c.announce(ctx, productID, reason, users)
	return users, nil
}

// invalidateTx: вариант для транзакции деактивации; событие публикует вызывающий после коммита.
func (c *CartCascade) invalidateTx(ctx context.Context, tx *repository.Repository, productID uuid.UUID, reason string) ([]uuid.UUID, error) {
	users, err := tx.Carts.DeleteByProduct(ctx, productID)
	if err != nil || len(users) == 0 {
		return nil, err
	}
	if err := c.audit(ctx, tx.Audit, productID, reason, users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *CartCascade) audit(ctx context.Context, audit repository.AuditRepo, productID uuid.UUID, reason string, users []uuid.UUID) error {
	return appendAudit(ctx, audit, uuid.Nil, ActionCartsInvalidated, models.TargetProduct, productID, nil,
		map[string]any{"count": len(users), "reason": reason})
}

func (c *CartCascade) announce(ctx context.Context, productID uuid.UUID, reason string, users []uuid.UUID) {
	c.log.Info("carts invalidated",
		zap.String("product_id", productID.String()),
		zap.String("reason", reason),
		zap.Int("count", len(users)))
	if err := c.bus.Publish(ctx, events.New(events.CartsInvalidated, events.CartsInvalidatedPayload{
		ProductID:       productID,
		Reason:          reason,
		AffectedUserIDs: users,
	})); err != nil {
		c.log.Error("carts invalidated publish failed", zap.String("product_id", productID.String()), zap.Error(err))
	}
}
