/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access the payment-service performs. The settlement engine is written
 * against this interface so that unit tests can run on deterministic stubs
 * and so that the PostgreSQL implementation stays swappable.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid, github.com/shopspring/decimal.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/causewayapp/payment-service/internal/domain"
)

var (
	ErrTransactionNotFound       = errors.New("payment transaction not found")
	ErrSubscriptionNotFound      = errors.New("payment subscription not found")
	ErrDonationNotFound          = errors.New("donation not found")
	ErrRegistrationNotFound      = errors.New("event registration not found")
	ErrRecurringDonationNotFound = errors.New("recurring donation not found")
	ErrUserNotFound              = errors.New("user not found")
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Payment transaction ledger
	FindPaymentTransactionByID(ctx context.Context, id uuid.UUID) (*domain.PaymentTransaction, error)
	// CompletePaymentTransaction flips a pending transaction to completed and
	// stamps the provider transaction number. It returns false when no pending
	// row matched, which means a concurrent delivery already settled it.
	CompletePaymentTransaction(ctx context.Context, id uuid.UUID, transactionNumber string) (bool, error)
	// MarkTransactionUnfulfilled records that the ledger committed but a fatal
	// domain mutation failed afterwards, so reconciliation tooling can find it.
	MarkTransactionUnfulfilled(ctx context.Context, id uuid.UUID, reason string) error

	// Payment subscription ledger
	FindPaymentSubscriptionByID(ctx context.Context, id uuid.UUID) (*domain.PaymentSubscription, error)
	// ConfirmSubscriptionBilling activates the subscription, moves
	// last_billing_date to now and next_billing_date to the given date.
	ConfirmSubscriptionBilling(ctx context.Context, id uuid.UUID, transactionNumber string, nextBillingDate time.Time) error

	// Donations
	// CompleteDonation marks the donation paid and returns the updated row,
	// including its cause_id for the aggregate increment.
	CompleteDonation(ctx context.Context, donationID uuid.UUID, transactionNumber string) (*domain.Donation, error)
	CreateDonation(ctx context.Context, donation *domain.Donation) error

	// Event registrations
	CompleteEventRegistration(ctx context.Context, registrationID uuid.UUID, transactionNumber string, amountPaid decimal.Decimal) error

	// Recurring donations
	// ActivateRecurringDonation sets the agreement active and returns it so the
	// caller can learn the cause and anonymity flag.
	ActivateRecurringDonation(ctx context.Context, id uuid.UUID) (*domain.RecurringDonation, error)

	// Users and memberships
	FindUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	ApplyMembership(ctx context.Context, update domain.MembershipUpdate) error

	// Cause aggregate. Implementations must use a server-side atomic increment,
	// never read-modify-write.
	IncrementCauseRaisedAmount(ctx context.Context, causeID uuid.UUID, amount decimal.Decimal) error

	// Notification fan-out
	// ListNotificationRecipients returns every user except the actor whose
	// settings enable the given category. A missing settings row counts as
	// enabled.
	ListNotificationRecipients(ctx context.Context, actorID uuid.UUID, category string) ([]uuid.UUID, error)
	CreateInAppNotifications(ctx context.Context, items []domain.InAppNotification) error
}
