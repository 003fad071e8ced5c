/**
 * @description
 * Domain records mutated by settlement: donations, event registrations,
 * recurring donation agreements, and the membership-bearing fields on users.
 * These structs map to their respective tables; the settlement engine only
 * ever moves them forward (pending -> completed, Pending -> Registered).
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Donation is a record of money given to a cause. A completed donation
// corresponds to exactly one increment of its cause's raised-amount aggregate.
type Donation struct {
	ID                  uuid.UUID       `json:"id"`
	CauseID             uuid.UUID       `json:"cause_id"`
	UserID              *uuid.UUID      `json:"user_id,omitempty"`
	Amount              decimal.Decimal `json:"amount"`
	Currency            string          `json:"currency"`
	IsAnonymous         bool            `json:"is_anonymous"`
	PaymentStatus       string          `json:"payment_status"` // 'pending' | 'completed'
	RecurringDonationID *uuid.UUID      `json:"recurring_donation_id,omitempty"`
	TransactionNumber   *string         `json:"transaction_number,omitempty"`
	CompletedAt         *time.Time      `json:"completed_at,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
}

// EventRegistration is a ticketed attendance record tied 1:1 to a
// PaymentTransaction via reference_id.
type EventRegistration struct {
	ID                uuid.UUID       `json:"id"`
	EventID           uuid.UUID       `json:"event_id"`
	UserID            uuid.UUID       `json:"user_id"`
	PaymentStatus     string          `json:"payment_status"`
	Status            string          `json:"status"` // 'Registered' once paid
	TransactionNumber *string         `json:"transaction_number,omitempty"`
	AmountPaid        decimal.Decimal `json:"amount_paid"`
}

// RecurringDonation is the standing agreement behind repeated donation
// charges. Both the first-charge transaction path and the subscription
// billing path resolve it to learn the cause and anonymity flag.
type RecurringDonation struct {
	ID          uuid.UUID  `json:"id"`
	CauseID     uuid.UUID  `json:"cause_id"`
	UserID      *uuid.UUID `json:"user_id,omitempty"`
	IsAnonymous bool       `json:"is_anonymous"`
	Status      string     `json:"status"` // 'pending' | 'active'
}

// AccountType distinguishes the two membership field sets on a user.
type AccountType string

const (
	AccountTypeIndividual   AccountType = "individual"
	AccountTypeOrganization AccountType = "organization"
)

// User is the slice of the users table the payment-service needs: the account
// type and the membership-bearing fields mutated on membership settlement.
type User struct {
	ID                    uuid.UUID   `json:"id"`
	AccountType           AccountType `json:"account_type"`
	MembershipStatus      string      `json:"membership_status"`
	IsPremium             bool        `json:"is_premium"`
	IsPartnerOrganization bool        `json:"is_partner_organization"`
	MembershipTier        *string     `json:"membership_tier,omitempty"`
	MembershipExpiresAt   *time.Time  `json:"membership_expires_at,omitempty"`
	SubscriptionStartDate *time.Time  `json:"subscription_start_date,omitempty"`
}

// MembershipUpdate carries the membership-field mutation for one user.
// Organization accounts get the partner flag; individual accounts get the
// premium flag and a tier.
type MembershipUpdate struct {
	UserID      uuid.UUID
	AccountType AccountType
	Tier        string
	ExpiresAt   time.Time
	StartedAt   time.Time
}
