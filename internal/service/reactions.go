package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shawon2210/Online24Pharmacy-sub001/internal/events"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/models"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/notify"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Reactions: подписчики шины. Каждый работает в своей короткой транзакции и
// не откатывает исходную операцию.
type Reactions struct {
	stock   *StockGuard
	cascade *CartCascade
	queue   notify.Queue
	log     *zap.Logger
	admins  []uuid.UUID

	newBackOff func() backoff.BackOff
}

func NewReactions(stock *StockGuard, cascade *CartCascade, queue notify.Queue, admins []uuid.UUID, log *zap.Logger) *Reactions {
	return &Reactions{
		stock:   stock,
		cascade: cascade,
		queue:   queue,
		log:     log,
		admins:  admins,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 50 * time.Millisecond
			b.MaxElapsedTime = time.Second
			return backoff.WithMaxRetries(b, 3)
		},
	}
}

func (r *Reactions) Register(bus events.Bus) {
	bus.Subscribe(events.ProductOutOfStock, r.onOutOfStock)
	bus.Subscribe(events.ProductLowStock, r.onLowStock)
	bus.Subscribe(events.CartsInvalidated, r.onCartsInvalidated)
	bus.Subscribe(events.OrderCreated, r.onOrderCreated)
	bus.Subscribe(events.OrderStatusChanged, r.onOrderStatusChanged)
	bus.Subscribe(events.PrescriptionReviewed, r.onPrescriptionReviewed)
}

func payloadAs[T any](e events.Event) (T, error) {
	p, ok := e.Payload.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s: unexpected payload %T", e.Type, e.Payload)
	}
	return p, nil
}

// retry повторяет только внутренние сбои; доменные ошибки не лечатся повтором.
func (r *Reactions) retry(ctx context.Context, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if err != nil && !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(r.newBackOff(), ctx))
}

func isRetryable(err error) bool {
	var ie *InternalError
	return errors.As(err, &ie)
}

func (r *Reactions) enqueue(ctx context.Context, msg notify.Message) {
	if err := r.queue.Enqueue(ctx, msg); err != nil {
		r.log.Error("notification enqueue failed",
			zap.String("type", msg.Type),
			zap.Int("recipients", len(msg.UserIDs)),
			zap.Any("payload", msg.Payload),
			zap.Error(err))
	}
}

func (r *Reactions) onOutOfStock(ctx context.Context, e events.Event) error {
	p, err := payloadAs[events.StockLevel](e)
	if err != nil {
		return err
	}
	return r.retry(ctx, func() error {
		_, err := r.cascade.InvalidateForProduct(ctx, p.ProductID, ReasonOutOfStock)
		return err
	})
}

func (r *Reactions) onLowStock(ctx context.Context, e events.Event) error {
	p, err := payloadAs[events.StockLevel](e)
	if err != nil {
		return err
	}
	r.enqueue(ctx, notify.Message{
		Type:    notify.TypeLowStock,
		UserIDs: r.admins,
		Payload: map[string]any{
			"product_id":    p.ProductID.String(),
			"product_name":  p.ProductName,
			"current_stock": p.Current,
			"min_level":     p.MinLevel,
		},
	})
	return nil
}

func (r *Reactions) onCartsInvalidated(ctx context.Context, e events.Event) error {
	p, err := payloadAs[events.CartsInvalidatedPayload](e)
	if err != nil {
		return err
	}
	typ := notify.TypeProductUnavailable
	if p.Reason == ReasonOutOfStock {
		typ = notify.TypeProductOutOfStock
	}
	r.enqueue(ctx, notify.Message{
		Type:    typ,
		UserIDs: p.AffectedUserIDs,
		Payload: map[string]any{"product_id": p.ProductID.String(), "reason": p.Reason},
	})
	return nil
}

func (r *Reactions) onOrderCreated(ctx context.Context, e events.Event) error {
	p, err := payloadAs[events.OrderCreatedPayload](e)
	if err != nil {
		return err
	}
	r.enqueue(ctx, notify.Message{
		Type:    notify.TypeOrderPlaced,
		UserIDs: []uuid.UUID{p.UserID},
		Payload: map[string]any{
			"order_id":     p.OrderID.String(),
			"total_amount": p.TotalAmount.StringFixed(2),
			"items":        p.ItemCount,
		},
	})
	return nil
}

var orderNotificationTypes = map[models.OrderStatus]string{
	models.OrderStatusConfirmed: notify.TypeOrderConfirmed,
	models.OrderStatusShipped:   notify.TypeOrderShipped,
	models.OrderStatusDelivered: notify.TypeOrderDelivered,
	models.OrderStatusCancelled: notify.TypeOrderCancelled,
}

func (r *Reactions) onOrderStatusChanged(ctx context.Context, e events.Event) error {
	p, err := payloadAs[events.OrderStatusChangedPayload](e)
	if err != nil {
		return err
	}

	var stockErr error
	switch p.To {
	case models.OrderStatusCancelled:
		var changes []StockChange
		stockErr = r.retry(ctx, func() error {
			var err error
			changes, err = r.stock.ReleaseForOrder(ctx, p.OrderID, p.ActorID)
			return err
		})
		if stockErr == nil {
			r.stock.Announce(ctx, changes...)
		}
	case models.OrderStatusShipped:
		stockErr = r.retry(ctx, func() error {
			_, err := r.stock.CommitForOrder(ctx, p.OrderID, p.ActorID)
			return err
		})
	}
	if stockErr != nil {
		r.log.Error("reservation reaction failed",
			zap.String("order_id", p.OrderID.String()),
			zap.String("status", string(p.To)),
			zap.Error(stockErr))
	}

	if typ, ok := orderNotificationTypes[p.To]; ok {
		r.enqueue(ctx, notify.Message{
			Type:    typ,
			UserIDs: []uuid.UUID{p.UserID},
			Payload: map[string]any{
				"order_id": p.OrderID.String(),
				"from":     string(p.From),
				"to":       string(p.To),
			},
		})
	}
	return stockErr
}

func (r *Reactions) onPrescriptionReviewed(ctx context.Context, e events.Event) error {
	p, err := payloadAs[events.PrescriptionReviewedPayload](e)
	if err != nil {
		return err
	}
	typ := notify.TypePrescriptionRejected
	if p.Status == models.PrescriptionApproved {
		typ = notify.TypePrescriptionApproved
	}
	r.enqueue(ctx, notify.Message{
		Type:    typ,
		UserIDs: []uuid.UUID{p.UserID},
		Payload: map[string]any{"prescription_id": p.PrescriptionID.String()},
	})
	return nil
}
