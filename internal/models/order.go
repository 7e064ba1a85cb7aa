package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
	OrderStatusRefunded   OrderStatus = "REFUNDED"
)

type Order struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	Status         OrderStatus     `gorm:"type:text;not null;default:'PENDING';index"`
	TotalAmount    decimal.Decimal `gorm:"type:numeric(12,2);not null;check:chk_orders_total_non_negative,total_amount >= 0"`
	PrescriptionID *uuid.UUID      `gorm:"type:uuid;index"`
	PaymentMethod  string          `gorm:"type:text;not null"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error { ensureID(&o.ID); return nil }

type OrderItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:ux_order_items_order_product"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:ux_order_items_order_product"`
	ProductName string          `gorm:"type:text;not null"`
	Position    int             `gorm:"not null;default:0"`
	Quantity    int32           `gorm:"not null;check:chk_order_items_quantity_positive,quantity > 0"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	TotalPrice  decimal.Decimal `gorm:"type:numeric(12,2);not null"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
}

func (OrderItem) TableName() string { return "order_items" }

func (i *OrderItem) BeforeCreate(*gorm.DB) error { ensureID(&i.ID); return nil }

type ReservationStatus string

const (
	ReservationReserved  ReservationStatus = "RESERVED"
	ReservationReleased  ReservationStatus = "RELEASED"
	ReservationCommitted ReservationStatus = "COMMITTED"
)

// Reservation: единицы товара, удерживаемые заказом с момента создания.
type Reservation struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey"`
	OrderID   uuid.UUID         `gorm:"type:uuid;not null;index;uniqueIndex:ux_reservations_order_product"`
	ProductID uuid.UUID         `gorm:"type:uuid;not null;index;uniqueIndex:ux_reservations_order_product"`
	Quantity  int32             `gorm:"not null;check:chk_reservations_quantity_gt_zero,quantity > 0"`
	Status    ReservationStatus `gorm:"type:text;not null;default:'RESERVED';index"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`
}

func (Reservation) TableName() string { return "reservations" }

func (r *Reservation) BeforeCreate(*gorm.DB) error { ensureID(&r.ID); return nil }
