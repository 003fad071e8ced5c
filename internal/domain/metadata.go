/**
 * @description
 * Typed views over the open metadata map carried by payment transactions.
 * The checkout flow stores ad hoc cross-references (subscription id, billing
 * frequency, event id, ticket count) as loose JSON; settlement decodes them
 * into per-order-type structs at the boundary so downstream code never
 * touches the raw map. Decoding is tolerant: a missing or malformed value
 * degrades to the documented default, never to an error.
 */

package domain

import (
	"strings"

	"github.com/google/uuid"
)

// MembershipMetadata carries the optional cross-references a membership
// transaction may have: a back-reference to the PaymentSubscription that will
// bill it going forward, an explicit billing frequency, and a tier label.
type MembershipMetadata struct {
	SubscriptionID *uuid.UUID
	Frequency      Frequency
	Tier           string
}

// MembershipMetadataFromMap decodes membership metadata from the stored map.
// Frequency defaults to monthly and tier to "standard".
func MembershipMetadataFromMap(raw map[string]interface{}) MembershipMetadata {
	meta := MembershipMetadata{
		Frequency: ParseFrequency(metadataString(raw, "frequency")),
		Tier:      "standard",
	}
	if tier := strings.TrimSpace(metadataString(raw, "tier")); tier != "" {
		meta.Tier = tier
	}
	if id, ok := metadataUUID(raw, "subscription_id"); ok {
		meta.SubscriptionID = &id
	}
	return meta
}

// EventMetadata carries the optional event cross-references on an
// event-registration transaction.
type EventMetadata struct {
	EventID     *uuid.UUID
	TicketCount int
}

// EventMetadataFromMap decodes event metadata. TicketCount defaults to 1.
func EventMetadataFromMap(raw map[string]interface{}) EventMetadata {
	meta := EventMetadata{TicketCount: 1}
	if id, ok := metadataUUID(raw, "event_id"); ok {
		meta.EventID = &id
	}
	if count, ok := metadataNumber(raw, "ticket_count"); ok && count >= 1 {
		meta.TicketCount = count
	}
	return meta
}

func metadataString(raw map[string]interface{}, key string) string {
	if raw == nil {
		return ""
	}
	if v, ok := raw[key].(string); ok {
		return v
	}
	return ""
}

func metadataUUID(raw map[string]interface{}, key string) (uuid.UUID, bool) {
	value := strings.TrimSpace(metadataString(raw, key))
	if value == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func metadataNumber(raw map[string]interface{}, key string) (int, bool) {
	if raw == nil {
		return 0, false
	}
	switch v := raw[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}
