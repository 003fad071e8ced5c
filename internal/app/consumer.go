package app

import (
	"context"
	"encoding/json"
	"log"

	"github.com/causewayapp/payment-service/internal/domain"
)

// ContentEventConsumer adapts the notification fan-out to the message-queue
// handler contract: returning false nacks and requeues the delivery.
type ContentEventConsumer struct {
	notifications *NotificationService
}

// NewContentEventConsumer creates a consumer for content.created events.
func NewContentEventConsumer(notifications *NotificationService) *ContentEventConsumer {
	return &ContentEventConsumer{notifications: notifications}
}

// HandleMessage processes one content.created delivery.
func (c *ContentEventConsumer) HandleMessage(body []byte) bool {
	var event domain.ContentCreatedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		// Malformed payloads will never parse; ack to drop instead of looping.
		log.Printf("level=warn component=content_consumer msg=\"malformed content event; dropping\" err=%v", err)
		return true
	}
	if err := c.notifications.FanOut(context.Background(), event); err != nil {
		log.Printf("level=error component=content_consumer msg=\"fan-out failed; requeuing\" content_id=%s err=%v", event.ContentID, err)
		return false
	}
	return true
}
