package service

import (
	"context"
	"time"

	"github.com/shawon2210/Online24Pharmacy-sub001/internal/events"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/models"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/notify"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine собирает компоненты целостности заказов и остатков и подписывает
// реакции на шину. Внешние слои (HTTP, gRPC) работают только через него.
type Engine struct {
	Stock         *StockGuard
	Gate          *PrescriptionGate
	Lifecycle     *OrderLifecycle
	Orders        *OrderService
	Cascade       *CartCascade
	Catalog       *CatalogService
	Prescriptions *PrescriptionService
	Reactions     *Reactions
}

type EngineOptions struct {
	// AdminUserIDs получают LOW_STOCK.
	AdminUserIDs []uuid.UUID
}

func NewEngine(repo *repository.Repository, bus events.Bus, queue notify.Queue, log *zap.Logger, opt EngineOptions) *Engine {
	stock := NewStockGuard(repo, bus, log.Named("stock"))
	gate := NewPrescriptionGate(repo)
	cascade := NewCartCascade(repo, bus, log.Named("cart"))

	e := &Engine{
		Stock:         stock,
		Gate:          gate,
		Lifecycle:     NewOrderLifecycle(repo, gate, bus, log.Named("lifecycle")),
		Orders:        NewOrderService(repo, stock, gate, bus, log.Named("orders")),
		Cascade:       cascade,
		Catalog:       NewCatalogService(repo, cascade, bus, log.Named("catalog")),
		Prescriptions: NewPrescriptionService(repo, bus, log.Named("prescriptions")),
		Reactions:     NewReactions(stock, cascade, queue, opt.AdminUserIDs, log.Named("reactions")),
	}
	e.Reactions.Register(bus)
	return e
}

func (e *Engine) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	return e.Orders.CreateOrder(ctx, in)
}

func (e *Engine) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return e.Orders.GetOrder(ctx, orderID)
}

func (e *Engine) TransitionOrder(ctx context.Context, orderID uuid.UUID, target models.OrderStatus, actorID uuid.UUID) (*models.Order, error) {
	return e.Lifecycle.Transition(ctx, orderID, target, actorID)
}

// SetProductStock: ручная корректировка остатка администратором.
func (e *Engine) SetProductStock(ctx context.Context, productID uuid.UUID, quantity int32, reason string, actorID uuid.UUID) (*models.Product, error) {
	if reason == "" {
		reason = ActionStockSet
	}
	return e.Stock.SetStock(ctx, productID, quantity, reason, actorID, nil)
}

func (e *Engine) CheckPrescriptionRequirement(ctx context.Context, items []GateItem, prescriptionID *uuid.UUID) error {
	return e.Gate.CheckRequirement(ctx, items, prescriptionID)
}

func (e *Engine) DeactivateProduct(ctx context.Context, productID, actorID uuid.UUID) error {
	return e.Catalog.DeactivateProduct(ctx, productID, actorID)
}

func (e *Engine) ActivateProduct(ctx context.Context, productID, actorID uuid.UUID) error {
	return e.Catalog.ActivateProduct(ctx, productID, actorID)
}

func (e *Engine) DeactivateCategory(ctx context.Context, categoryID, actorID uuid.UUID) error {
	return e.Catalog.DeactivateCategory(ctx, categoryID, actorID)
}

func (e *Engine) DeactivateSubcategory(ctx context.Context, subcategoryID, actorID uuid.UUID) error {
	return e.Catalog.DeactivateSubcategory(ctx, subcategoryID, actorID)
}

func (e *Engine) ReviewPrescription(ctx context.Context, prescriptionID uuid.UUID, approve bool, reviewerID uuid.UUID, expiresAt *time.Time) (*models.Prescription, error) {
	return e.Prescriptions.ReviewPrescription(ctx, prescriptionID, approve, reviewerID, expiresAt)
}
