package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shawon2210/Online24Pharmacy-sub001/internal/events"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/models"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/notify"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrder_TotalsAndReservation(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, "Omeprazole 20mg", 10, withPrice("120.50"))
	b := f.product(t, "Loratadine 10mg", 4, withPrice("80.00"), withDiscount("64.25"))
	u := uuid.New()

	o := f.order(t, u, item(a, 2), item(b, 1), item(a, 1))
	assert.Equal(t, models.OrderStatusPending, o.Status)
	require.Len(t, o.Items, 2, "repeated product lines are merged")

	sum := decimal.Zero
	for _, it := range o.Items {
		assert.True(t, it.UnitPrice.Mul(decimal.NewFromInt32(it.Quantity)).Equal(it.TotalPrice))
		sum = sum.Add(it.TotalPrice)
	}
	assert.True(t, sum.Equal(o.TotalAmount))
	assert.True(t, decimal.RequireFromString("425.75").Equal(o.TotalAmount), "got %s", o.TotalAmount)

	stored, err := f.engine.GetOrder(f.ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	assert.Equal(t, a.ID, stored.Items[0].ProductID)
	assert.True(t, decimal.RequireFromString("425.75").Equal(stored.TotalAmount))

	pa := f.reload(t, a.ID)
	assert.EqualValues(t, 10, pa.StockQuantity)
	assert.EqualValues(t, 3, pa.ReservedQuantity)
	assert.EqualValues(t, 7, pa.Available())

	res, err := f.repo.Reservations.ListByOrder(f.ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, res, 2)

	assert.Len(t, f.bus.OfType(events.OrderCreated), 1)
	placed := f.queue.OfType(notify.TypeOrderPlaced)
	require.Len(t, placed, 1)
	assert.Equal(t, []uuid.UUID{u}, placed[0].UserIDs)

	audit, err := f.repo.Audit.ListByTarget(f.ctx, models.TargetOrder, o.ID)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, ActionOrderCreated, audit[0].Action)
}

func TestCreateOrder_InsufficientStockRollsBack(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, "Metformin 500mg", 5)
	b := f.product(t, "Insulin pen", 1)
	u := uuid.New()

	_, err := f.engine.CreateOrder(f.ctx, CreateOrderInput{UserID: u, Items: []CreateOrderItem{item(a, 2), item(b, 3)}})
	var se *InsufficientStockError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, b.ID, se.ProductID)
	assert.Equal(t, "Insulin pen", se.ProductName)
	assert.EqualValues(t, 1, se.Available)
	assert.EqualValues(t, 3, se.Requested)

	// первая позиция тоже откатилась
	assert.EqualValues(t, 0, f.reload(t, a.ID).ReservedQuantity)
	orders, total, err := f.repo.Orders.ListByUser(f.ctx, u, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, orders)
	assert.Empty(t, f.bus.OfType(events.OrderCreated))
}

func TestCreateOrder_QuantityValidation(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Vitamin D3", 50)
	u := uuid.New()

	var qe *InvalidQuantityError
	_, err := f.engine.CreateOrder(f.ctx, CreateOrderInput{UserID: u})
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, QuantityNoItems, qe.Reason)

	_, err = f.engine.CreateOrder(f.ctx, CreateOrderInput{UserID: u, Items: []CreateOrderItem{item(p, 0)}})
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, QuantityNotPositive, qe.Reason)

	_, err = f.engine.CreateOrder(f.ctx, CreateOrderInput{UserID: u, Items: []CreateOrderItem{item(p, 11)}})
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, QuantityAboveMax, qe.Reason)
	assert.EqualValues(t, 10, qe.Limit)

	_, err = f.engine.CreateOrder(f.ctx, CreateOrderInput{UserID: u, Items: []CreateOrderItem{{ProductID: uuid.New(), Quantity: 1}}})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.engine.DeactivateProduct(f.ctx, p.ID, f.admin))
	_, err = f.engine.CreateOrder(f.ctx, CreateOrderInput{UserID: u, Items: []CreateOrderItem{item(p, 1)}})
	assert.ErrorIs(t, err, ErrProductInactive)
}

func TestCreateOrder_ConcurrentLastUnit(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Amoxicillin 250mg", 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.CreateOrder(f.ctx, CreateOrderInput{
				UserID: uuid.New(),
				Items:  []CreateOrderItem{item(p, 1)},
			})
		}(i)
	}
	wg.Wait()

	var failed int
	for _, err := range errs {
		if err != nil {
			require.ErrorIs(t, err, ErrInsufficientStock)
			failed++
		}
	}
	assert.Equal(t, 1, failed)

	got := f.reload(t, p.ID)
	assert.EqualValues(t, 1, got.ReservedQuantity)
	assert.EqualValues(t, 0, got.Available())
	assert.Len(t, f.bus.OfType(events.ProductOutOfStock), 1)
}

func TestTransition_ShipCommitsReservation(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Salbutamol inhaler", 5)
	u := uuid.New()
	o := f.order(t, u, item(p, 2))

	f.advance(t, o.ID, models.OrderStatusConfirmed, models.OrderStatusProcessing, models.OrderStatusShipped)

	got := f.reload(t, p.ID)
	assert.EqualValues(t, 3, got.StockQuantity)
	assert.EqualValues(t, 0, got.ReservedQuantity)

	res, _ := f.repo.Reservations.ListByOrder(f.ctx, o.ID)
	require.Len(t, res, 1)
	assert.Equal(t, models.ReservationCommitted, res[0].Status)

	_, err := f.engine.TransitionOrder(f.ctx, o.ID, models.OrderStatusCancelled, f.admin)
	var te *InvalidTransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, models.OrderStatusShipped, te.From)
	assert.Equal(t, models.OrderStatusCancelled, te.To)

	f.advance(t, o.ID, models.OrderStatusDelivered)
	_, err = f.engine.TransitionOrder(f.ctx, o.ID, models.OrderStatusProcessing, f.admin)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.engine.TransitionOrder(f.ctx, o.ID, models.OrderStatusRefunded, f.admin)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	stored, _ := f.engine.GetOrder(f.ctx, o.ID)
	assert.Equal(t, models.OrderStatusDelivered, stored.Status)

	for _, typ := range []string{notify.TypeOrderConfirmed, notify.TypeOrderShipped, notify.TypeOrderDelivered} {
		assert.Len(t, f.queue.OfType(typ), 1, typ)
	}
	assert.Len(t, f.bus.OfType(events.OrderStatusChanged), 4)

	audit, _ := f.repo.Audit.ListByTarget(f.ctx, models.TargetOrder, o.ID)
	assert.Len(t, audit, 5, "create plus four transitions")
}

func TestTransition_CancelReleasesReservation(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Diclofenac gel", 2)
	o := f.order(t, uuid.New(), item(p, 2))
	require.Len(t, f.bus.OfType(events.ProductOutOfStock), 1)

	f.advance(t, o.ID, models.OrderStatusConfirmed, models.OrderStatusCancelled)

	got := f.reload(t, p.ID)
	assert.EqualValues(t, 2, got.StockQuantity)
	assert.EqualValues(t, 0, got.ReservedQuantity)
	assert.Len(t, f.bus.OfType(events.ProductBackInStock), 1)

	res, _ := f.repo.Reservations.ListByOrder(f.ctx, o.ID)
	require.Len(t, res, 1)
	assert.Equal(t, models.ReservationReleased, res[0].Status)

	// повторное освобождение ничего не меняет
	changes, err := f.engine.Stock.ReleaseForOrder(f.ctx, o.ID, f.admin)
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.EqualValues(t, 0, f.reload(t, p.ID).ReservedQuantity)

	_, err = f.engine.TransitionOrder(f.ctx, o.ID, models.OrderStatusConfirmed, f.admin)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Len(t, f.queue.OfType(notify.TypeOrderCancelled), 1)
}

func TestTransition_TableAndUnknownOrder(t *testing.T) {
	assert.True(t, CanTransition(models.OrderStatusPending, models.OrderStatusConfirmed))
	assert.True(t, CanTransition(models.OrderStatusProcessing, models.OrderStatusCancelled))
	assert.False(t, CanTransition(models.OrderStatusPending, models.OrderStatusShipped))
	assert.False(t, CanTransition(models.OrderStatusShipped, models.OrderStatusCancelled))
	assert.False(t, CanTransition(models.OrderStatusCancelled, models.OrderStatusPending))
	assert.False(t, CanTransition(models.OrderStatusRefunded, models.OrderStatusDelivered))
	for _, s := range []models.OrderStatus{models.OrderStatusDelivered, models.OrderStatusCancelled, models.OrderStatusRefunded} {
		assert.True(t, IsTerminal(s), s)
		for _, to := range []models.OrderStatus{models.OrderStatusPending, models.OrderStatusConfirmed, models.OrderStatusRefunded, models.OrderStatusCancelled} {
			assert.False(t, CanTransition(s, to), "%s -> %s", s, to)
		}
	}
	assert.False(t, IsTerminal(models.OrderStatusShipped))

	f := newFixture(t)
	_, err := f.engine.TransitionOrder(f.ctx, uuid.New(), models.OrderStatusConfirmed, f.admin)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, models.TargetOrder, nf.Entity)
}

func TestConfirm_RequiresPrescription(t *testing.T) {
	f := newFixture(t)
	rxProduct := f.product(t, "Tramadol 50mg", 10, withRx())
	plain := f.product(t, "Saline spray", 10)
	u := uuid.New()

	o := f.order(t, u, item(plain, 1), item(rxProduct, 1))
	assert.Equal(t, models.OrderStatusPending, o.Status, "creation does not demand a prescription")

	_, err := f.engine.TransitionOrder(f.ctx, o.ID, models.OrderStatusConfirmed, f.admin)
	var pe *PrescriptionRequiredError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, []string{"Tramadol 50mg"}, pe.ProductNames)

	stored, _ := f.engine.GetOrder(f.ctx, o.ID)
	assert.Equal(t, models.OrderStatusPending, stored.Status)
}

func TestConfirm_WithApprovedPrescription(t *testing.T) {
	f := newFixture(t)
	rxProduct := f.product(t, "Codeine syrup", 10, withRx())
	u := uuid.New()
	expires := time.Now().Add(30 * 24 * time.Hour)
	rx := f.prescription(t, u, models.PrescriptionApproved, &expires)

	o, err := f.engine.CreateOrder(f.ctx, CreateOrderInput{
		UserID:         u,
		Items:          []CreateOrderItem{item(rxProduct, 1)},
		PrescriptionID: &rx.ID,
	})
	require.NoError(t, err)

	confirmed, err := f.engine.TransitionOrder(f.ctx, o.ID, models.OrderStatusConfirmed, f.admin)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, confirmed.Status)
}

func TestConfirm_RechecksPrescriptionAfterCreation(t *testing.T) {
	f := newFixture(t)
	rxProduct := f.product(t, "Morphine sulfate 10mg", 10, withRx())
	u := uuid.New()
	expires := time.Now().Add(24 * time.Hour)

	place := func(t *testing.T) (*models.Order, *models.Prescription) {
		rx := f.prescription(t, u, models.PrescriptionApproved, &expires)
		o, err := f.engine.CreateOrder(f.ctx, CreateOrderInput{
			UserID:         u,
			Items:          []CreateOrderItem{item(rxProduct, 1)},
			PrescriptionID: &rx.ID,
		})
		require.NoError(t, err)
		return o, rx
	}

	t.Run("expired", func(t *testing.T) {
		o, _ := place(t)
		f.engine.Gate.now = func() time.Time { return expires.Add(time.Hour) }
		defer func() { f.engine.Gate.now = time.Now }()

		_, err := f.engine.TransitionOrder(f.ctx, o.ID, models.OrderStatusConfirmed, f.admin)
		assert.ErrorIs(t, err, ErrPrescriptionExpired)
		stored, _ := f.engine.GetOrder(f.ctx, o.ID)
		assert.Equal(t, models.OrderStatusPending, stored.Status)
	})

	t.Run("rejected", func(t *testing.T) {
		o, rx := place(t)
		require.NoError(t, f.repo.DB.Model(&models.Prescription{}).
			Where("id = ?", rx.ID).
			Update("status", models.PrescriptionRejected).Error)

		_, err := f.engine.TransitionOrder(f.ctx, o.ID, models.OrderStatusConfirmed, f.admin)
		assert.ErrorIs(t, err, ErrPrescriptionNotApproved)
		stored, _ := f.engine.GetOrder(f.ctx, o.ID)
		assert.Equal(t, models.OrderStatusPending, stored.Status)
	})
}

func TestCreateOrder_AttachedPrescriptionIsChecked(t *testing.T) {
	f := newFixture(t)
	rxProduct := f.product(t, "Alprazolam 0.5mg", 10, withRx())
	u := uuid.New()
	past := time.Now().Add(-time.Hour)

	tests := []struct {
		name string
		rx   *models.Prescription
		want error
	}{
		{"pending", f.prescription(t, u, models.PrescriptionPending, nil), ErrPrescriptionNotApproved},
		{"rejected", f.prescription(t, u, models.PrescriptionRejected, nil), ErrPrescriptionNotApproved},
		{"expired", f.prescription(t, u, models.PrescriptionApproved, &past), ErrPrescriptionExpired},
		{"other user", f.prescription(t, uuid.New(), models.PrescriptionApproved, nil), ErrPrescriptionOwnershipMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.CreateOrder(f.ctx, CreateOrderInput{
				UserID:         u,
				Items:          []CreateOrderItem{item(rxProduct, 1)},
				PrescriptionID: &tt.rx.ID,
			})
			assert.ErrorIs(t, err, tt.want)
		})
	}

	missing := uuid.New()
	_, err := f.engine.CreateOrder(f.ctx, CreateOrderInput{UserID: u, Items: []CreateOrderItem{item(rxProduct, 1)}, PrescriptionID: &missing})
	assert.ErrorIs(t, err, ErrPrescriptionNotFound)

	assert.EqualValues(t, 0, f.reload(t, rxProduct.ID).ReservedQuantity)
}

func TestReactions_EnqueueFailureDoesNotFailOrder(t *testing.T) {
	f := newFixture(t)
	f.queue.EnqueueFunc = func(_ context.Context, _ notify.Message) error { return errors.New("outbox down") }
	p := f.product(t, "Zinc tablets", 3)

	o, err := f.engine.CreateOrder(f.ctx, CreateOrderInput{UserID: uuid.New(), Items: []CreateOrderItem{item(p, 1)}})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, o.ID)
	assert.Empty(t, f.queue.OfType(notify.TypeOrderPlaced))
}
