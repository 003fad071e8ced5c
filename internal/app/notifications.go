/**
 * @description
 * Notification fan-out for platform content events (new causes, events, and
 * announcements). One event becomes one in-app notification row per recipient
 * plus a best-effort push delivery. The recipient set is every user except
 * the actor whose settings enable the category; a missing settings row counts
 * as enabled. Per-recipient push failures are isolated: they never block the
 * remaining recipients and never undo the rows already written.
 *
 * @dependencies
 * - internal/domain, internal/store, internal/metrics.
 * - pkg/pushclient: The external push-delivery provider client.
 */

package app

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/causewayapp/payment-service/internal/domain"
	"github.com/causewayapp/payment-service/internal/metrics"
	"github.com/causewayapp/payment-service/internal/store"
	"github.com/causewayapp/payment-service/pkg/pushclient"
)

// PushSender is the slice of the push client fan-out needs.
type PushSender interface {
	Send(ctx context.Context, userID string, payload pushclient.Payload) error
}

// NotificationService turns content events into per-user notifications.
type NotificationService struct {
	repo store.Repository
	push PushSender
}

// NewNotificationService creates a fan-out service. push may be nil, in which
// case only in-app rows are created.
func NewNotificationService(repo store.Repository, push PushSender) *NotificationService {
	return &NotificationService{repo: repo, push: push}
}

func categoryForContent(contentType string) string {
	switch contentType {
	case "cause":
		return "causes"
	case "event":
		return "events"
	case "announcement":
		return "announcements"
	default:
		return ""
	}
}

// FanOut distributes one content event to all eligible recipients. A returned
// error means the in-app rows were not created and the event should be
// redelivered; push failures are never returned.
func (n *NotificationService) FanOut(ctx context.Context, event domain.ContentCreatedEvent) error {
	category := categoryForContent(event.ContentType)
	if category == "" {
		log.Printf("level=warn component=notifications msg=\"unknown content type; dropping event\" content_type=%s content_id=%s", event.ContentType, event.ContentID)
		return nil
	}

	recipients, err := n.repo.ListNotificationRecipients(ctx, event.ActorID, category)
	if err != nil {
		return fmt.Errorf("failed to resolve recipients: %w", err)
	}
	if len(recipients) == 0 {
		return nil
	}

	items := make([]domain.InAppNotification, 0, len(recipients))
	for _, userID := range recipients {
		items = append(items, domain.InAppNotification{
			ID:                uuid.New(),
			UserID:            userID,
			Category:          category,
			Title:             event.Title,
			Body:              event.Body,
			RelatedEntityType: event.ContentType,
			RelatedEntityID:   event.ContentID,
		})
	}
	if err := n.repo.CreateInAppNotifications(ctx, items); err != nil {
		return fmt.Errorf("failed to create notification rows: %w", err)
	}

	if n.push == nil {
		return nil
	}
	payload := pushclient.Payload{
		Type:  event.ContentType,
		ID:    event.ContentID.String(),
		Title: event.Title,
		Body:  event.Body,
	}
	failed := 0
	for _, userID := range recipients {
		if err := n.push.Send(ctx, userID.String(), payload); err != nil {
			failed++
			metrics.PushDeliveryFailures.Inc()
			log.Printf("level=warn component=notifications msg=\"push delivery failed; continuing with remaining recipients\" user_id=%s err=%v", userID, err)
		}
	}
	if failed > 0 {
		log.Printf("level=warn component=notifications msg=\"fan-out completed with push failures\" content_id=%s recipients=%d failed=%d", event.ContentID, len(recipients), failed)
	}
	return nil
}
