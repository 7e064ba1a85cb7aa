package service

import (
	"context"
	"strings"

	"github.com/shawon2210/Online24Pharmacy-sub001/internal/events"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/models"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type CreateOrderItem struct {
	ProductID uuid.UUID
	Quantity  int32
}

type CreateOrderInput struct {
	UserID         uuid.UUID
	Items          []CreateOrderItem
	PrescriptionID *uuid.UUID
	PaymentMethod  string
}

type OrderService struct {
	repo  *repository.Repository
	stock *StockGuard
	gate  *PrescriptionGate
	bus   events.Bus
	log   *zap.Logger
}

func NewOrderService(repo *repository.Repository, stock *StockGuard, gate *PrescriptionGate, bus events.Bus, log *zap.Logger) *OrderService {
	return &OrderService{repo: repo, stock: stock, gate: gate, bus: bus, log: log}
}

// mergeItems складывает повторы одного товара, сохраняя порядок первого вхождения.
func mergeItems(items []CreateOrderItem) []CreateOrderItem {
	out := make([]CreateOrderItem, 0, len(items))
	idx := make(map[uuid.UUID]int, len(items))
	for _, it := range items {
		if i, ok := idx[it.ProductID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		idx[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out
}

// CreateOrder: одна транзакция: заказ, позиции, резерв остатков, аудит.
// Любой отказ откатывает всё.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	ctx, span := otel.Tracer("pharmacy/service").Start(ctx, "OrderService.CreateOrder")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", in.UserID.String()), attribute.Int("order.items", len(in.Items)))

	if len(in.Items) == 0 {
		return nil, &InvalidQuantityError{Reason: QuantityNoItems}
	}
	for _, it := range in.Items {
		if it.Quantity < 1 {
			return nil, &InvalidQuantityError{ProductID: it.ProductID, Quantity: it.Quantity, Reason: QuantityNotPositive, Limit: 1}
		}
	}
	items := mergeItems(in.Items)

	order := &models.Order{
		UserID:         in.UserID,
		Status:         models.OrderStatusPending,
		PrescriptionID: in.PrescriptionID,
		PaymentMethod:  strings.TrimSpace(in.PaymentMethod),
	}
	var changes []StockChange

	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		ids := make([]uuid.UUID, 0, len(items))
		for _, it := range items {
			ids = append(ids, it.ProductID)
		}
		products, err := tx.Products.GetByIDs(ctx, ids)
		if err != nil {
			return err
		}

		total := decimal.Zero
		order.Items = make([]models.OrderItem, 0, len(items))
		for pos, it := range items {
			p, ok := products[it.ProductID]
			if !ok {
				return &NotFoundError{Entity: models.TargetProduct, ID: it.ProductID}
			}
			if !p.IsActive {
				return ErrProductInactive
			}
			if it.Quantity > p.MaxOrderQuantity {
				return &InvalidQuantityError{ProductID: p.ID, Quantity: it.Quantity, Reason: QuantityAboveMax, Limit: p.MaxOrderQuantity}
			}
			unit := p.SellingPrice()
			line := unit.Mul(decimal.NewFromInt32(it.Quantity))
			total = total.Add(line)
			order.Items = append(order.Items, models.OrderItem{
				ProductID:   p.ID,
				ProductName: p.Name,
				Position:    pos,
				Quantity:    it.Quantity,
				UnitPrice:   unit,
				TotalPrice:  line,
			})
		}
		order.TotalAmount = total

		// рецепт проверяется при создании только если он приложен; обязательная проверка: на CONFIRMED
		if in.PrescriptionID != nil {
			gateItems := make([]GateItem, 0, len(items))
			for _, it := range items {
				gateItems = append(gateItems, GateItem{ProductID: it.ProductID, UserID: in.UserID})
			}
			if err := s.gate.check(ctx, tx, gateItems, in.PrescriptionID); err != nil {
				return err
			}
		}

		if err := tx.Orders.Create(ctx, order); err != nil {
			return err
		}

		for _, it := range order.Items {
			_, change, err := s.stock.DecrementForOrder(ctx, tx, it.ProductID, it.Quantity, order.ID, in.UserID)
			if err != nil {
				return err
			}
			changes = append(changes, change)
		}

		return appendAudit(ctx, tx.Audit, in.UserID, ActionOrderCreated, models.TargetOrder, order.ID, nil,
			map[string]any{
				"status":       order.Status,
				"total_amount": order.TotalAmount.StringFixed(2),
				"items":        len(order.Items),
			})
	})
	if err != nil {
		span.RecordError(err)
		return nil, typed("create order", err)
	}

	s.log.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", in.UserID.String()),
		zap.String("total", order.TotalAmount.StringFixed(2)))

	s.stock.Announce(ctx, changes...)
	if err := s.bus.Publish(ctx, events.New(events.OrderCreated, events.OrderCreatedPayload{
		OrderID:     order.ID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		ItemCount:   len(order.Items),
	})); err != nil {
		s.log.Error("order created event publish failed", zap.String("order_id", order.ID.String()), zap.Error(err))
	}
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	o, err := s.repo.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, typed("get order", err)
	}
	if o == nil {
		return nil, &NotFoundError{Entity: models.TargetOrder, ID: orderID}
	}
	return o, nil
}
