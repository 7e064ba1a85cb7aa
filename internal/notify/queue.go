package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shawon2210/Online24Pharmacy-sub001/internal/models"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/repository"

	"github.com/google/uuid"
)

const (
	TypeProductOutOfStock    = "PRODUCT_OUT_OF_STOCK"
	TypeProductUnavailable   = "PRODUCT_UNAVAILABLE"
	TypeLowStock             = "LOW_STOCK"
	TypeOrderPlaced          = "ORDER_PLACED"
	TypeOrderConfirmed       = "ORDER_CONFIRMED"
	TypeOrderShipped         = "ORDER_SHIPPED"
	TypeOrderDelivered       = "ORDER_DELIVERED"
	TypeOrderCancelled       = "ORDER_CANCELLED"
	TypePrescriptionApproved = "PRESCRIPTION_APPROVED"
	TypePrescriptionRejected = "PRESCRIPTION_REJECTED"
)

type Message struct {
	Type    string
	UserIDs []uuid.UUID
	Payload map[string]any
}

// Queue принимает уведомление к отправке. Доставка никогда не выполняется inline.
type Queue interface {
	Enqueue(ctx context.Context, msg Message) error
}

// Outbox пишет уведомления в таблицу notifications; отправляет их Relay.
type Outbox struct {
	repo repository.NotificationRepo
}

func NewOutbox(repo repository.NotificationRepo) *Outbox {
	return &Outbox{repo: repo}
}

func (o *Outbox) Enqueue(ctx context.Context, msg Message) error {
	if len(msg.UserIDs) == 0 {
		return nil
	}
	payload, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", msg.Type, err)
	}
	ids := make([]string, 0, len(msg.UserIDs))
	for _, id := range msg.UserIDs {
		ids = append(ids, id.String())
	}
	return o.repo.Enqueue(ctx, &models.Notification{
		Type:    msg.Type,
		UserIDs: ids,
		Payload: payload,
		Status:  models.NotificationPending,
	})
}

// Envelope: формат сообщения во внешнем брокере.
type Envelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	UserIDs   []string        `json:"user_ids"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func envelopeOf(n *models.Notification) Envelope {
	return Envelope{
		ID:        n.ID.String(),
		Type:      n.Type,
		UserIDs:   []string(n.UserIDs),
		Payload:   json.RawMessage(n.Payload),
		CreatedAt: n.CreatedAt,
	}
}
