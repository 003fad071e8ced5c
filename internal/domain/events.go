/**
 * @description
 * Message payloads exchanged over RabbitMQ and the push provider, plus the
 * in-app notification row created during fan-out.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentSettledEvent is published after a successful settlement so that
// downstream services (analytics, activity feeds) can react without being in
// the settlement path. Publishing is a secondary effect.
type PaymentSettledEvent struct {
	TransactionID     *uuid.UUID      `json:"transaction_id,omitempty"`
	SubscriptionID    *uuid.UUID      `json:"subscription_id,omitempty"`
	OrderType         string          `json:"order_type"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	TransactionNumber string          `json:"transaction_number"`
	SettledAt         time.Time       `json:"settled_at"`
}

// ContentCreatedEvent announces that a cause, event, or announcement was
// created somewhere in the platform. The payment-service consumes these and
// fans them out into per-user notifications.
type ContentCreatedEvent struct {
	ContentType string    `json:"content_type"` // 'cause' | 'event' | 'announcement'
	ContentID   uuid.UUID `json:"content_id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	ActorID     uuid.UUID `json:"actor_id"`
}

// InAppNotification is one row created per recipient during fan-out.
type InAppNotification struct {
	ID                uuid.UUID `json:"id"`
	UserID            uuid.UUID `json:"user_id"`
	Category          string    `json:"category"`
	Title             string    `json:"title"`
	Body              string    `json:"body"`
	RelatedEntityType string    `json:"related_entity_type"`
	RelatedEntityID   uuid.UUID `json:"related_entity_id"`
	CreatedAt         time.Time `json:"created_at"`
}
