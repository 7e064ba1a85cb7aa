package events

import (
	"time"

	"github.com/shawon2210/Online24Pharmacy-sub001/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Type string

const (
	ProductOutOfStock      Type = "ProductOutOfStock"
	ProductBackInStock     Type = "ProductBackInStock"
	ProductLowStock        Type = "ProductLowStock"
	ProductDeactivated     Type = "ProductDeactivated"
	ProductActivated       Type = "ProductActivated"
	CategoryDeactivated    Type = "CategoryDeactivated"
	SubcategoryDeactivated Type = "SubcategoryDeactivated"
	OrderCreated           Type = "OrderCreated"
	OrderStatusChanged     Type = "OrderStatusChanged"
	CartsInvalidated       Type = "CartsInvalidated"
	PrescriptionReviewed   Type = "PrescriptionReviewed"
)

type Event struct {
	Type       Type
	Payload    any
	OccurredAt time.Time
}

func New(t Type, payload any) Event {
	return Event{Type: t, Payload: payload, OccurredAt: time.Now().UTC()}
}

// StockLevel: payload трёх складских событий. Уровни считаются по доступному
// остатку (stock - reserved).
type StockLevel struct {
	ProductID   uuid.UUID
	ProductName string
	Previous    int32
	Current     int32
	MinLevel    int32
}

type ProductStatus struct {
	ProductID uuid.UUID
	ActorID   uuid.UUID
}

type CategoryStatus struct {
	CategoryID     uuid.UUID
	SubcategoryIDs []uuid.UUID
	ActorID        uuid.UUID
}

type OrderCreatedPayload struct {
	OrderID     uuid.UUID
	UserID      uuid.UUID
	TotalAmount decimal.Decimal
	ItemCount   int
}

type OrderStatusChangedPayload struct {
	OrderID uuid.UUID
	UserID  uuid.UUID
	From    models.OrderStatus
	To      models.OrderStatus
	ActorID uuid.UUID
}

type CartsInvalidatedPayload struct {
	ProductID       uuid.UUID
	Reason          string
	AffectedUserIDs []uuid.UUID
}

type PrescriptionReviewedPayload struct {
	PrescriptionID uuid.UUID
	UserID         uuid.UUID
	Status         models.PrescriptionStatus
	ReviewerID     uuid.UUID
}
