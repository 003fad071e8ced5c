/**
 * @description
 * This file defines the core payment ledger models for the payment-service.
 * A `PaymentTransaction` is the single-use ledger record behind a one-time
 * purchase; a `PaymentSubscription` is the long-lived record behind a
 * recurring billing agreement. Both are created elsewhere in the platform
 * (the checkout/token-issuance flow) and are only ever transitioned forward
 * by this service.
 *
 * @notes
 * - Amounts are `decimal.Decimal` values in JMD. Currency math must never go
 *   through floats; the gateway charges exactly what the record says, and the
 *   cause aggregate is incremented with the same exact value.
 * - Once a transaction reaches `completed` it must never return to `pending`.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderType is the business category of a one-time payment.
type OrderType string

const (
	OrderTypeEventRegistration      OrderType = "event_registration"
	OrderTypeDonation               OrderType = "donation"
	OrderTypeMembership             OrderType = "membership"
	OrderTypeOrganizationMembership OrderType = "organization_membership"
	OrderTypeRecurringDonation      OrderType = "recurring_donation"
)

// SubscriptionType is the business category of a recurring billing agreement.
type SubscriptionType string

const (
	SubscriptionTypeRecurringDonation      SubscriptionType = "recurring_donation"
	SubscriptionTypeMembership             SubscriptionType = "membership"
	SubscriptionTypeOrganizationMembership SubscriptionType = "organization_membership"
)

// TransactionStatus is the ledger state of a one-time payment.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
)

// FulfillmentStatus records whether the domain mutations that follow a ledger
// commit succeeded. A transaction stuck at `unfulfilled` has a settled ledger
// row but incomplete domain state and needs reconciliation.
type FulfillmentStatus string

const (
	FulfillmentStatusFulfilled   FulfillmentStatus = "fulfilled"
	FulfillmentStatusUnfulfilled FulfillmentStatus = "unfulfilled"
)

// SubscriptionStatus is the state of a recurring billing agreement.
type SubscriptionStatus string

const (
	SubscriptionStatusPending SubscriptionStatus = "pending"
	SubscriptionStatusActive  SubscriptionStatus = "active"
)

// PaymentTransaction represents a one-time payment attempt. It maps directly
// to the `payment_transactions` table.
type PaymentTransaction struct {
	ID                uuid.UUID              `json:"id"`
	OrderType         OrderType              `json:"order_type"`
	ReferenceID       *uuid.UUID             `json:"reference_id,omitempty"`
	UserID            *uuid.UUID             `json:"user_id,omitempty"`
	Amount            decimal.Decimal        `json:"amount"`
	Currency          string                 `json:"currency"`
	CustomerEmail     string                 `json:"customer_email"`
	CustomerName      string                 `json:"customer_name"`
	Description       string                 `json:"description"`
	Status            TransactionStatus      `json:"status"`
	FulfillmentStatus FulfillmentStatus      `json:"fulfillment_status"`
	TransactionNumber *string                `json:"transaction_number,omitempty"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
	CompletedAt       *time.Time             `json:"completed_at,omitempty"`
}

// PaymentSubscription represents a recurring billing agreement. Unlike a
// PaymentTransaction it is settled many times, once per billing cycle.
type PaymentSubscription struct {
	ID                uuid.UUID          `json:"id"`
	SubscriptionType  SubscriptionType   `json:"subscription_type"`
	ReferenceID       *uuid.UUID         `json:"reference_id,omitempty"`
	UserID            uuid.UUID          `json:"user_id"`
	Amount            decimal.Decimal    `json:"amount"`
	Currency          string             `json:"currency"`
	Frequency         Frequency          `json:"frequency"`
	NextBillingDate   *time.Time         `json:"next_billing_date,omitempty"`
	LastBillingDate   *time.Time         `json:"last_billing_date,omitempty"`
	Status            SubscriptionStatus `json:"status"`
	TransactionNumber *string            `json:"transaction_number,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// PaymentConfirmation is the resolved form of an inbound gateway confirmation.
// Exactly one of TransactionID/SubscriptionID is set; TransactionNumber is the
// provider-assigned reference and is always required.
type PaymentConfirmation struct {
	TransactionID     *uuid.UUID
	SubscriptionID    *uuid.UUID
	TransactionNumber string
}
