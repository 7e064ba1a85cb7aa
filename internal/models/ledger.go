package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TargetProduct      = "product"
	TargetCategory     = "category"
	TargetSubcategory  = "subcategory"
	TargetOrder        = "order"
	TargetPrescription = "prescription"
	TargetCart         = "cart"
)

// AuditRecord: append-only. Удаляет только задача ретенции.
type AuditRecord struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ActorID    uuid.UUID      `gorm:"type:uuid;not null;index"`
	Action     string         `gorm:"type:text;not null"`
	TargetType string         `gorm:"type:text;not null;index:ix_audit_target,priority:1"`
	TargetID   uuid.UUID      `gorm:"type:uuid;not null;index:ix_audit_target,priority:2"`
	Before     datatypes.JSON `gorm:"type:json"`
	After      datatypes.JSON `gorm:"type:json"`

	CreatedAt time.Time `gorm:"not null;index"`
}

func (AuditRecord) TableName() string { return "audit_records" }

func (a *AuditRecord) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return nil
}

// StockMovement: одна запись на каждую мутацию остатков.
type StockMovement struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ProductID      uuid.UUID  `gorm:"type:uuid;not null;index"`
	Delta          int32      `gorm:"not null"`
	ReservedDelta  int32      `gorm:"not null;default:0"`
	Reason         string     `gorm:"type:text;not null"`
	ActorID        uuid.UUID  `gorm:"type:uuid;not null"`
	RelatedOrderID *uuid.UUID `gorm:"type:uuid;index"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"`
}

func (StockMovement) TableName() string { return "stock_movements" }

func (m *StockMovement) BeforeCreate(*gorm.DB) error { ensureID(&m.ID); return nil }

type NotificationStatus string

const (
	NotificationPending NotificationStatus = "PENDING"
	NotificationSent    NotificationStatus = "SENT"
	NotificationFailed  NotificationStatus = "FAILED"
)

// Notification: строка outbox; доставку выполняет relay.
type Notification struct {
	ID        uuid.UUID                   `gorm:"type:uuid;primaryKey"`
	Type      string                      `gorm:"type:text;not null;index"`
	UserIDs   datatypes.JSONSlice[string] `gorm:"type:json;not null"`
	Payload   datatypes.JSON              `gorm:"type:json"`
	Status    NotificationStatus          `gorm:"type:text;not null;default:'PENDING';index"`
	Attempts  int                         `gorm:"not null;default:0"`
	LastError string                      `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"`
	SentAt    *time.Time
}

func (Notification) TableName() string { return "notifications" }

func (n *Notification) BeforeCreate(*gorm.DB) error { ensureID(&n.ID); return nil }
