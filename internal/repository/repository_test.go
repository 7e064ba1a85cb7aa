package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shawon2210/Online24Pharmacy-sub001/internal/migrate"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/models"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/repository"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := testutil.SetupTestDB(t)
	if err := migrate.MigrateDB(context.Background(), db, zap.NewNop(), migrate.DefaultMigrateOptions()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedProduct(t *testing.T, repo *repository.Repository, stock int32) *models.Product {
	t.Helper()
	ctx := context.Background()
	cat := &models.Category{Name: "Vitamins", IsActive: true}
	require.NoError(t, repo.Catalog.CreateCategory(ctx, cat))
	sub := &models.Subcategory{CategoryID: cat.ID, Name: "Vitamin C", IsActive: true}
	require.NoError(t, repo.Catalog.CreateSubcategory(ctx, sub))
	p := &models.Product{
		CategoryID:       cat.ID,
		SubcategoryID:    sub.ID,
		Name:             "Ascorbic acid 500mg",
		Price:            decimal.RequireFromString("120.50"),
		StockQuantity:    stock,
		MinStockLevel:    2,
		MaxOrderQuantity: 10,
		IsActive:         true,
	}
	require.NoError(t, repo.Products.Create(ctx, p))
	return p
}

func TestProductRepo_StockOperations(t *testing.T) {
	repo := repository.New(setupDB(t))
	ctx := context.Background()
	p := seedProduct(t, repo, 5)

	ok, err := repo.Products.TryReserve(ctx, p.ID, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	// доступно 2, просим 3
	ok, err = repo.Products.TryReserve(ctx, p.ID, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.Products.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 5, got.StockQuantity)
	assert.EqualValues(t, 3, got.ReservedQuantity)
	assert.EqualValues(t, 2, got.Available())

	// ниже резерва ставить нельзя
	ok, err = repo.Products.SetStock(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Products.Commit(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Products.Release(ctx, p.ID, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	got, _ = repo.Products.GetByID(ctx, p.ID)
	assert.EqualValues(t, 3, got.StockQuantity)
	assert.EqualValues(t, 0, got.ReservedQuantity)

	ok, err = repo.Products.Release(ctx, p.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok, "nothing left to release")

	missing, err := repo.Products.GetByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestProductRepo_ActiveCounts(t *testing.T) {
	repo := repository.New(setupDB(t))
	ctx := context.Background()
	p := seedProduct(t, repo, 1)

	cnt, err := repo.Products.CountActiveByCategory(ctx, p.CategoryID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, cnt)

	changed, err := repo.Products.SetActive(ctx, p.ID, false)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.Products.SetActive(ctx, p.ID, false)
	require.NoError(t, err)
	assert.False(t, changed)

	cnt, err = repo.Products.CountActiveBySubcategory(ctx, p.SubcategoryID)
	require.NoError(t, err)
	assert.Zero(t, cnt)

	ids, err := repo.Catalog.DeactivateSubcategories(ctx, p.CategoryID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{p.SubcategoryID}, ids)
}

func TestCartRepo_DeleteByProduct(t *testing.T) {
	repo := repository.New(setupDB(t))
	ctx := context.Background()
	p := seedProduct(t, repo, 10)
	other := seedProduct(t, repo, 10)

	u1, u2 := uuid.New(), uuid.New()
	require.NoError(t, repo.Carts.Upsert(ctx, &models.CartItem{UserID: u1, ProductID: p.ID, Quantity: 1}))
	require.NoError(t, repo.Carts.Upsert(ctx, &models.CartItem{UserID: u2, ProductID: p.ID, Quantity: 2}))
	require.NoError(t, repo.Carts.Upsert(ctx, &models.CartItem{UserID: u1, ProductID: other.ID, Quantity: 1}))
	// повторное добавление обновляет количество
	require.NoError(t, repo.Carts.Upsert(ctx, &models.CartItem{UserID: u1, ProductID: p.ID, Quantity: 4}))

	items, err := repo.Carts.ListByUser(ctx, u1)
	require.NoError(t, err)
	require.Len(t, items, 2)

	users, err := repo.Carts.DeleteByProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{u1, u2}, users)

	cnt, err := repo.Carts.CountByProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, cnt)

	users, err = repo.Carts.DeleteByProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, users)

	items, _ = repo.Carts.ListByUser(ctx, u1)
	require.Len(t, items, 1)
	assert.Equal(t, other.ID, items[0].ProductID)
}

func TestOrderRepo_CreateAndStatusCAS(t *testing.T) {
	repo := repository.New(setupDB(t))
	ctx := context.Background()
	p := seedProduct(t, repo, 10)

	o := &models.Order{
		UserID:        uuid.New(),
		Status:        models.OrderStatusPending,
		TotalAmount:   decimal.RequireFromString("241.00"),
		PaymentMethod: "COD",
		Items: []models.OrderItem{{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    2,
			UnitPrice:   p.Price,
			TotalPrice:  p.Price.Mul(decimal.NewFromInt(2)),
		}},
	}
	require.NoError(t, repo.Orders.Create(ctx, o))

	got, err := repo.Orders.GetByID(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("241")))

	ok, err := repo.Orders.UpdateStatus(ctx, o.ID, models.OrderStatusPending, models.OrderStatusConfirmed)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Orders.UpdateStatus(ctx, o.ID, models.OrderStatusPending, models.OrderStatusCancelled)
	require.NoError(t, err)
	assert.False(t, ok, "stale from-status must not match")

	list, total, err := repo.Orders.ListByUser(ctx, o.UserID, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, models.OrderStatusConfirmed, list[0].Status)
}

func TestReservationRepo_TransitionOnce(t *testing.T) {
	repo := repository.New(setupDB(t))
	ctx := context.Background()
	p := seedProduct(t, repo, 10)

	orderID := uuid.New()
	res := &models.Reservation{OrderID: orderID, ProductID: p.ID, Quantity: 3, Status: models.ReservationReserved}
	require.NoError(t, repo.Reservations.Create(ctx, res))

	sum, err := repo.Reservations.SumReservedByProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, sum)

	ok, err := repo.Reservations.Transition(ctx, res.ID, models.ReservationReleased)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Reservations.Transition(ctx, res.ID, models.ReservationCommitted)
	require.NoError(t, err)
	assert.False(t, ok)

	sum, _ = repo.Reservations.SumReservedByProduct(ctx, p.ID)
	assert.Zero(t, sum)
}

func TestAuditRepo_DeleteOlderThan(t *testing.T) {
	repo := repository.New(setupDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	old := &models.AuditRecord{ActorID: uuid.New(), Action: "PRESCRIPTION_REVIEWED", TargetType: models.TargetPrescription, TargetID: uuid.New(), CreatedAt: now.AddDate(-3, 0, 0)}
	fresh := &models.AuditRecord{ActorID: uuid.New(), Action: "PRESCRIPTION_REVIEWED", TargetType: models.TargetPrescription, TargetID: uuid.New(), CreatedAt: now}
	oldOrder := &models.AuditRecord{ActorID: uuid.New(), Action: "ORDER_CREATED", TargetType: models.TargetOrder, TargetID: uuid.New(), CreatedAt: now.AddDate(-3, 0, 0)}
	for _, rec := range []*models.AuditRecord{old, fresh, oldOrder} {
		require.NoError(t, repo.Audit.Append(ctx, rec))
	}

	n, err := repo.Audit.DeleteOlderThan(ctx, models.TargetPrescription, now.AddDate(-2, 0, 0))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	left, err := repo.Audit.ListByTarget(ctx, models.TargetOrder, oldOrder.TargetID)
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestNotificationRepo_Lifecycle(t *testing.T) {
	repo := repository.New(setupDB(t))
	ctx := context.Background()

	n := &models.Notification{Type: "ORDER_CONFIRMED", UserIDs: []string{uuid.NewString()}, Payload: []byte(`{"order_id":"x"}`)}
	require.NoError(t, repo.Notifications.Enqueue(ctx, n))

	pending, err := repo.Notifications.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, n.UserIDs, pending[0].UserIDs)

	require.NoError(t, repo.Notifications.MarkAttemptFailed(ctx, n.ID, "broker down", false))
	require.NoError(t, repo.Notifications.MarkSent(ctx, n.ID, time.Now().UTC()))

	pending, _ = repo.Notifications.ListPending(ctx, 10)
	assert.Empty(t, pending)

	all, err := repo.Notifications.ListByType(ctx, "ORDER_CONFIRMED")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.NotificationSent, all[0].Status)
	assert.Equal(t, 2, all[0].Attempts)
	assert.Equal(t, "broker down", all[0].LastError)
}

func TestRepository_WithTxRollback(t *testing.T) {
	repo := repository.New(setupDB(t))
	ctx := context.Background()
	p := seedProduct(t, repo, 5)

	boom := errors.New("boom")
	err := repo.WithTx(ctx, func(tx *repository.Repository) error {
		ok, err := tx.Products.TryReserve(ctx, p.ID, 5)
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, _ := repo.Products.GetByID(ctx, p.ID)
	assert.EqualValues(t, 0, got.ReservedQuantity)
}
