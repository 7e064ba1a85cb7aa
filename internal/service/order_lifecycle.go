package service

import (
	"context"

	"github.com/shawon2210/Online24Pharmacy-sub001/internal/events"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/models"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var allowedTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending:    {models.OrderStatusConfirmed, models.OrderStatusCancelled},
	models.OrderStatusConfirmed:  {models.OrderStatusProcessing, models.OrderStatusCancelled},
	models.OrderStatusProcessing: {models.OrderStatusShipped, models.OrderStatusCancelled},
	models.OrderStatusShipped:    {models.OrderStatusDelivered},
}

func CanTransition(from, to models.OrderStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal: из этого статуса переходов нет.
func IsTerminal(s models.OrderStatus) bool {
	switch s {
	case models.OrderStatusDelivered, models.OrderStatusCancelled, models.OrderStatusRefunded:
		return true
	}
	return false
}

type OrderLifecycle struct {
	repo *repository.Repository
	gate *PrescriptionGate
	bus  events.Bus
	log  *zap.Logger
}

func NewOrderLifecycle(repo *repository.Repository, gate *PrescriptionGate, bus events.Bus, log *zap.Logger) *OrderLifecycle {
	return &OrderLifecycle{repo: repo, gate: gate, bus: bus, log: log}
}

func (l *OrderLifecycle) Transition(ctx context.Context, orderID uuid.UUID, target models.OrderStatus, actorID uuid.UUID) (*models.Order, error) {
	ctx, span := otel.Tracer("pharmacy/service").Start(ctx, "OrderLifecycle.Transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", orderID.String()),
		attribute.String("order.target", string(target)),
	)

	var (
		order *models.Order
		from  models.OrderStatus
	)
	err := l.repo.WithTx(ctx, func(tx *repository.Repository) error {
		o, err := tx.Orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return &NotFoundError{Entity: models.TargetOrder, ID: orderID}
		}
		from = o.Status

		if !CanTransition(from, target) {
			return &InvalidTransitionError{From: from, To: target}
		}

		if target == models.OrderStatusConfirmed {
			if err := l.confirmGuard(ctx, tx, o); err != nil {
				return err
			}
		}

		ok, err := tx.Orders.UpdateStatus(ctx, orderID, from, target)
		if err != nil {
			return err
		}
		if !ok {
			// статус сменился параллельно
			return &InvalidTransitionError{From: from, To: target}
		}

		if err := appendAudit(ctx, tx.Audit, actorID, ActionOrderStatusChanged, models.TargetOrder, orderID,
			map[string]any{"status": from},
			map[string]any{"status": target},
		); err != nil {
			return err
		}

		o.Status = target
		order = o
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, typed("transition order", err)
	}

	l.log.Info("order status changed",
		zap.String("order_id", orderID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
		zap.String("actor_id", actorID.String()))

	if err := l.bus.Publish(ctx, events.New(events.OrderStatusChanged, events.OrderStatusChangedPayload{
		OrderID: orderID,
		UserID:  order.UserID,
		From:    from,
		To:      target,
		ActorID: actorID,
	})); err != nil {
		l.log.Error("order status event publish failed", zap.String("order_id", orderID.String()), zap.Error(err))
	}
	return order, nil
}

// confirmGuard: рецепт, затем наличие на складе по позициям слева направо.
func (l *OrderLifecycle) confirmGuard(ctx context.Context, tx *repository.Repository, o *models.Order) error {
	items := make([]GateItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, GateItem{ProductID: it.ProductID, UserID: o.UserID})
	}
	if err := l.gate.check(ctx, tx, items, o.PrescriptionID); err != nil {
		return err
	}

	for _, it := range o.Items {
		p, err := tx.Products.GetByID(ctx, it.ProductID)
		if err != nil {
			return err
		}
		if p == nil {
			return &NotFoundError{Entity: models.TargetProduct, ID: it.ProductID}
		}
		if p.StockQuantity < it.Quantity {
			return &InsufficientStockError{
				ProductID:   it.ProductID,
				ProductName: it.ProductName,
				Available:   p.StockQuantity,
				Requested:   it.Quantity,
			}
		}
	}
	return nil
}
