package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shawon2210/Online24Pharmacy-sub001/internal/events"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/migrate"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/models"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/notify"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/repository"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/testutil"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockQueue struct {
	EnqueueFunc func(ctx context.Context, msg notify.Message) error

	mu   sync.Mutex
	msgs []notify.Message
}

func (m *MockQueue) Enqueue(ctx context.Context, msg notify.Message) error {
	if m.EnqueueFunc != nil {
		if err := m.EnqueueFunc(ctx, msg); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.msgs = append(m.msgs, msg)
	m.mu.Unlock()
	return nil
}

func (m *MockQueue) OfType(typ string) []notify.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []notify.Message
	for _, msg := range m.msgs {
		if msg.Type == typ {
			out = append(out, msg)
		}
	}
	return out
}

type fixture struct {
	ctx    context.Context
	repo   *repository.Repository
	bus    *events.Recorder
	queue  *MockQueue
	engine *Engine
	admin  uuid.UUID

	category    *models.Category
	subcategory *models.Subcategory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	require.NoError(t, migrate.MigrateDB(ctx, db, zap.NewNop(), migrate.DefaultMigrateOptions()))

	repo := repository.New(db)
	bus := events.NewRecorder(events.NewSyncBus(zap.NewNop()))
	queue := &MockQueue{}
	admin := uuid.New()
	engine := NewEngine(repo, bus, queue, zap.NewNop(), EngineOptions{AdminUserIDs: []uuid.UUID{admin}})
	// без задержек между повторами
	engine.Reactions.newBackOff = func() backoff.BackOff { return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 1) }

	f := &fixture{ctx: ctx, repo: repo, bus: bus, queue: queue, engine: engine, admin: admin}
	f.category = &models.Category{Name: "Pain relief", IsActive: true}
	require.NoError(t, repo.Catalog.CreateCategory(ctx, f.category))
	f.subcategory = &models.Subcategory{CategoryID: f.category.ID, Name: "Analgesics", IsActive: true}
	require.NoError(t, repo.Catalog.CreateSubcategory(ctx, f.subcategory))
	return f
}

type productOpt func(*models.Product)

func withRx() productOpt { return func(p *models.Product) { p.RequiresPrescription = true } }

func withMinLevel(n int32) productOpt { return func(p *models.Product) { p.MinStockLevel = n } }

func withPrice(price string) productOpt {
	return func(p *models.Product) { p.Price = decimal.RequireFromString(price) }
}

func withDiscount(price string) productOpt {
	return func(p *models.Product) { p.DiscountPrice = decimal.NewNullDecimal(decimal.RequireFromString(price)) }
}

func (f *fixture) product(t *testing.T, name string, stock int32, opts ...productOpt) *models.Product {
	t.Helper()
	p := &models.Product{
		CategoryID:       f.category.ID,
		SubcategoryID:    f.subcategory.ID,
		Name:             name,
		Price:            decimal.RequireFromString("100.00"),
		StockQuantity:    stock,
		MaxOrderQuantity: 10,
		IsActive:         true,
	}
	for _, o := range opts {
		o(p)
	}
	require.NoError(t, f.repo.Products.Create(f.ctx, p))
	return p
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *models.Product {
	t.Helper()
	p, err := f.repo.Products.GetByID(f.ctx, id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func (f *fixture) prescription(t *testing.T, userID uuid.UUID, status models.PrescriptionStatus, expiresAt *time.Time) *models.Prescription {
	t.Helper()
	rx := &models.Prescription{UserID: userID, Status: status, ExpiresAt: expiresAt}
	require.NoError(t, f.repo.Prescriptions.Create(f.ctx, rx))
	return rx
}

func (f *fixture) addToCart(t *testing.T, userID, productID uuid.UUID, qty int32) {
	t.Helper()
	require.NoError(t, f.repo.Carts.Upsert(f.ctx, &models.CartItem{UserID: userID, ProductID: productID, Quantity: qty}))
}

func (f *fixture) order(t *testing.T, userID uuid.UUID, items ...CreateOrderItem) *models.Order {
	t.Helper()
	o, err := f.engine.CreateOrder(f.ctx, CreateOrderInput{UserID: userID, Items: items, PaymentMethod: "cod"})
	require.NoError(t, err)
	return o
}

func (f *fixture) advance(t *testing.T, orderID uuid.UUID, statuses ...models.OrderStatus) {
	t.Helper()
	for _, s := range statuses {
		_, err := f.engine.TransitionOrder(f.ctx, orderID, s, f.admin)
		require.NoError(t, err, "transition to %s", s)
	}
}

func item(p *models.Product, qty int32) CreateOrderItem {
	return CreateOrderItem{ProductID: p.ID, Quantity: qty}
}
