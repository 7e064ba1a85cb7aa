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

const (
	ReasonOrderReserved  = "order_reserved"
	ReasonOrderCancelled = "order_cancelled"
	ReasonOrderShipped   = "order_shipped"
)

// StockChange: доступный остаток до и после мутации. Публикуется после коммита.
type StockChange struct {
	ProductID   uuid.UUID
	ProductName string
	Before      int32
	After       int32
	MinLevel    int32
}

// Events: сначала пересечение нуля, затем low-stock по новому значению.
func (c StockChange) Events() []events.Event {
	level := events.StockLevel{
		ProductID:   c.ProductID,
		ProductName: c.ProductName,
		Previous:    c.Before,
		Current:     c.After,
		MinLevel:    c.MinLevel,
	}
	var out []events.Event
	switch {
	case c.Before > 0 && c.After == 0:
		out = append(out, events.New(events.ProductOutOfStock, level))
	case c.Before == 0 && c.After > 0:
		out = append(out, events.New(events.ProductBackInStock, level))
	}
	if c.After > 0 && c.After <= c.MinLevel {
		out = append(out, events.New(events.ProductLowStock, level))
	}
	return out
}

func changeOf(p *models.Product, before int32) StockChange {
	return StockChange{
		ProductID:   p.ID,
		ProductName: p.Name,
		Before:      before,
		After:       p.Available(),
		MinLevel:    p.MinStockLevel,
	}
}

// StockGuard: единственный компонент, меняющий остатки.
type StockGuard struct {
	repo *repository.Repository
	bus  events.Bus
	log  *zap.Logger
}

func NewStockGuard(repo *repository.Repository, bus events.Bus, log *zap.Logger) *StockGuard {
	return &StockGuard{repo: repo, bus: bus, log: log}
}

func (g *StockGuard) SetStock(ctx context.Context, productID uuid.UUID, newQuantity int32, reason string, actorID uuid.UUID, orderID *uuid.UUID) (*models.Product, error) {
	ctx, span := otel.Tracer("pharmacy/service").Start(ctx, "StockGuard.SetStock")
	defer span.End()
	span.SetAttributes(
		attribute.String("product.id", productID.String()),
		attribute.Int("stock.new", int(newQuantity)),
	)

	if newQuantity < 0 {
		return nil, &InvalidQuantityError{ProductID: productID, Quantity: newQuantity, Reason: QuantityNegative}
	}

	var (
		updated *models.Product
		change  StockChange
	)
	err := g.repo.WithTx(ctx, func(tx *repository.Repository) error {
		p, err := tx.Products.GetForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if p == nil {
			return &NotFoundError{Entity: models.TargetProduct, ID: productID}
		}

		ok, err := tx.Products.SetStock(ctx, productID, newQuantity)
		if err != nil {
			return err
		}
		if !ok {
			return &InvalidQuantityError{ProductID: productID, Quantity: newQuantity, Reason: QuantityBelowReserved, Limit: p.ReservedQuantity}
		}

		// движение пишется всегда, даже если delta == 0
		if err := tx.StockMovements.Append(ctx, &models.StockMovement{
			ProductID:      productID,
			Delta:          newQuantity - p.StockQuantity,
			Reason:         reason,
			ActorID:        actorID,
			RelatedOrderID: orderID,
		}); err != nil {
			return err
		}

		before := p.Available()
		if updated, err = tx.Products.GetByID(ctx, productID); err != nil {
			return err
		}
		change = changeOf(updated, before)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, typed("set stock", err)
	}

	g.log.Info("stock set",
		zap.String("product_id", productID.String()),
		zap.Int32("available_before", change.Before),
		zap.Int32("available_after", change.After),
		zap.String("reason", reason))
	g.Announce(ctx, change)
	return updated, nil
}

// DecrementForOrder резервирует quantity под заказ внутри транзакции вызывающего.
// Условие и изменение проверяются хранилищем одним UPDATE.
func (g *StockGuard) DecrementForOrder(ctx context.Context, tx *repository.Repository, productID uuid.UUID, quantity int32, orderID, actorID uuid.UUID) (*models.Product, StockChange, error) {
	if quantity <= 0 {
		return nil, StockChange{}, &InvalidQuantityError{ProductID: productID, Quantity: quantity, Reason: QuantityNotPositive, Limit: 1}
	}

	ok, err := tx.Products.TryReserve(ctx, productID, quantity)
	if err != nil {
		return nil, StockChange{}, err
	}

	p, err := tx.Products.GetByID(ctx, productID)
	if err != nil {
		return nil, StockChange{}, err
	}
	if p == nil {
		return nil, StockChange{}, &NotFoundError{Entity: models.TargetProduct, ID: productID}
	}
	if !ok {
		return nil, StockChange{}, &InsufficientStockError{
			ProductID:   productID,
			ProductName: p.Name,
			Available:   p.Available(),
			Requested:   quantity,
		}
	}

	if err := tx.Reservations.Create(ctx, &models.Reservation{
		OrderID:   orderID,
		ProductID: productID,
		Quantity:  quantity,
		Status:    models.ReservationReserved,
	}); err != nil {
		return nil, StockChange{}, err
	}

	oid := orderID
	if err := tx.StockMovements.Append(ctx, &models.StockMovement{
		ProductID:      productID,
		ReservedDelta:  quantity,
		Reason:         ReasonOrderReserved,
		ActorID:        actorID,
		RelatedOrderID: &oid,
	}); err != nil {
		return nil, StockChange{}, err
	}

	return p, changeOf(p, p.Available()+quantity), nil
}

// ReleaseForOrder возвращает зарезервированные единицы в продажу (отмена заказа).
// Повторный вызов ничего не меняет.
func (g *StockGuard) ReleaseForOrder(ctx context.Context, orderID, actorID uuid.UUID) ([]StockChange, error) {
	var changes []StockChange
	err := g.repo.WithTx(ctx, func(tx *repository.Repository) error {
		rows, err := tx.Reservations.ListByOrder(ctx, orderID)
		if err != nil {
			return err
		}
		for _, r := range rows {
			if r.Status != models.ReservationReserved {
				continue
			}
			moved, err := tx.Reservations.Transition(ctx, r.ID, models.ReservationReleased)
			if err != nil {
				return err
			}
			if !moved {
				continue
			}
			ok, err := tx.Products.Release(ctx, r.ProductID, r.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				g.log.Error("reserved quantity below reservation",
					zap.String("order_id", orderID.String()),
					zap.String("product_id", r.ProductID.String()),
					zap.Int32("quantity", r.Quantity))
				continue
			}
			oid := orderID
			if err := tx.StockMovements.Append(ctx, &models.StockMovement{
				ProductID:      r.ProductID,
				ReservedDelta:  -r.Quantity,
				Reason:         ReasonOrderCancelled,
				ActorID:        actorID,
				RelatedOrderID: &oid,
			}); err != nil {
				return err
			}
			p, err := tx.Products.GetByID(ctx, r.ProductID)
			if err != nil {
				return err
			}
			changes = append(changes, changeOf(p, p.Available()-r.Quantity))
		}
		return nil
	})
	if err != nil {
		return nil, typed("release reservation", err)
	}
	return changes, nil
}

// CommitForOrder списывает резерв со склада при отгрузке. Доступный остаток
// не меняется, поэтому событий нет.
func (g *StockGuard) CommitForOrder(ctx context.Context, orderID, actorID uuid.UUID) (int, error) {
	var committed int
	err := g.repo.WithTx(ctx, func(tx *repository.Repository) error {
		rows, err := tx.Reservations.ListByOrder(ctx, orderID)
		if err != nil {
			return err
		}
		for _, r := range rows {
			if r.Status != models.ReservationReserved {
				continue
			}
			moved, err := tx.Reservations.Transition(ctx, r.ID, models.ReservationCommitted)
			if err != nil {
				return err
			}
			if !moved {
				continue
			}
			ok, err := tx.Products.Commit(ctx, r.ProductID, r.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return &InsufficientStockError{ProductID: r.ProductID, Requested: r.Quantity}
			}
			oid := orderID
			if err := tx.StockMovements.Append(ctx, &models.StockMovement{
				ProductID:      r.ProductID,
				Delta:          -r.Quantity,
				ReservedDelta:  -r.Quantity,
				Reason:         ReasonOrderShipped,
				ActorID:        actorID,
				RelatedOrderID: &oid,
			}); err != nil {
				return err
			}
			committed++
		}
		return nil
	})
	if err != nil {
		return 0, typed("commit reservation", err)
	}
	return committed, nil
}

// Announce публикует события по изменениям остатков. Ошибки шины не возвращаются:
// мутация уже закоммичена.
func (g *StockGuard) Announce(ctx context.Context, changes ...StockChange) {
	for _, c := range changes {
		for _, e := range c.Events() {
			if err := g.bus.Publish(ctx, e); err != nil {
				g.log.Error("stock event publish failed",
					zap.String("event", string(e.Type)),
					zap.String("product_id", c.ProductID.String()),
					zap.Error(err))
			}
		}
	}
}
