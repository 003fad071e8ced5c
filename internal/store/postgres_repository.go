/**
 * @description
 * PostgreSQL implementation of the Repository interface using pgx. All status
 * transitions are forward-only and expressed as conditional UPDATEs so that a
 * transaction can never regress from completed back to pending, and so that
 * two concurrent deliveries of the same confirmation cannot both settle.
 *
 * @notes
 * - NUMERIC columns are read and written as text and converted through
 *   shopspring/decimal; amounts never pass through float64.
 * - The cause raised-amount aggregate is mutated only with a single
 *   `SET amount_raised = amount_raised + $n` statement, never read-modify-write.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/causewayapp/payment-service/internal/domain"
)

// PostgresRepository is the pgx-backed implementation of Repository.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new repository backed by the given pool.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindPaymentTransactionByID(ctx context.Context, id uuid.UUID) (*domain.PaymentTransaction, error) {
	query := `
		SELECT id, order_type, reference_id, user_id, amount::text, currency,
		       customer_email, customer_name, description, status,
		       fulfillment_status, transaction_number, metadata,
		       created_at, updated_at, completed_at
		FROM payment_transactions
		WHERE id = $1
	`
	var (
		tx          domain.PaymentTransaction
		amountText  string
		metadataRaw []byte
	)
	err := r.db.QueryRow(ctx, query, id).Scan(
		&tx.ID,
		&tx.OrderType,
		&tx.ReferenceID,
		&tx.UserID,
		&amountText,
		&tx.Currency,
		&tx.CustomerEmail,
		&tx.CustomerName,
		&tx.Description,
		&tx.Status,
		&tx.FulfillmentStatus,
		&tx.TransactionNumber,
		&metadataRaw,
		&tx.CreatedAt,
		&tx.UpdatedAt,
		&tx.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	tx.Amount, err = decimal.NewFromString(amountText)
	if err != nil {
		return nil, fmt.Errorf("invalid stored amount for transaction %s: %w", id, err)
	}
	if len(metadataRaw) > 0 {
		if err := json.Unmarshal(metadataRaw, &tx.Metadata); err != nil {
			return nil, fmt.Errorf("invalid metadata for transaction %s: %w", id, err)
		}
	}
	return &tx, nil
}

func (r *PostgresRepository) CompletePaymentTransaction(ctx context.Context, id uuid.UUID, transactionNumber string) (bool, error) {
	query := `
		UPDATE payment_transactions
		SET status = 'completed',
		    transaction_number = $2,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	tag, err := r.db.Exec(ctx, query, id, transactionNumber)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) MarkTransactionUnfulfilled(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE payment_transactions
		SET fulfillment_status = 'unfulfilled',
		    fulfillment_failure_reason = $2,
		    updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query, id, reason)
	return err
}

func (r *PostgresRepository) FindPaymentSubscriptionByID(ctx context.Context, id uuid.UUID) (*domain.PaymentSubscription, error) {
	query := `
		SELECT id, subscription_type, reference_id, user_id, amount::text, currency,
		       frequency, next_billing_date, last_billing_date, status,
		       transaction_number, created_at, updated_at
		FROM payment_subscriptions
		WHERE id = $1
	`
	var (
		sub           domain.PaymentSubscription
		amountText    string
		frequencyText string
	)
	err := r.db.QueryRow(ctx, query, id).Scan(
		&sub.ID,
		&sub.SubscriptionType,
		&sub.ReferenceID,
		&sub.UserID,
		&amountText,
		&sub.Currency,
		&frequencyText,
		&sub.NextBillingDate,
		&sub.LastBillingDate,
		&sub.Status,
		&sub.TransactionNumber,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	sub.Amount, err = decimal.NewFromString(amountText)
	if err != nil {
		return nil, fmt.Errorf("invalid stored amount for subscription %s: %w", id, err)
	}
	sub.Frequency = domain.ParseFrequency(frequencyText)
	return &sub, nil
}

func (r *PostgresRepository) ConfirmSubscriptionBilling(ctx context.Context, id uuid.UUID, transactionNumber string, nextBillingDate time.Time) error {
	query := `
		UPDATE payment_subscriptions
		SET status = 'active',
		    transaction_number = $2,
		    last_billing_date = NOW(),
		    next_billing_date = $3,
		    updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, id, transactionNumber, nextBillingDate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (r *PostgresRepository) CompleteDonation(ctx context.Context, donationID uuid.UUID, transactionNumber string) (*domain.Donation, error) {
	query := `
		UPDATE donations
		SET payment_status = 'completed',
		    transaction_number = $2,
		    completed_at = NOW()
		WHERE id = $1
		RETURNING id, cause_id, user_id, amount::text, currency, is_anonymous,
		          payment_status, recurring_donation_id, transaction_number,
		          completed_at, created_at
	`
	var (
		donation   domain.Donation
		amountText string
	)
	err := r.db.QueryRow(ctx, query, donationID, transactionNumber).Scan(
		&donation.ID,
		&donation.CauseID,
		&donation.UserID,
		&amountText,
		&donation.Currency,
		&donation.IsAnonymous,
		&donation.PaymentStatus,
		&donation.RecurringDonationID,
		&donation.TransactionNumber,
		&donation.CompletedAt,
		&donation.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDonationNotFound
		}
		return nil, err
	}
	donation.Amount, err = decimal.NewFromString(amountText)
	if err != nil {
		return nil, fmt.Errorf("invalid stored amount for donation %s: %w", donationID, err)
	}
	return &donation, nil
}

func (r *PostgresRepository) CreateDonation(ctx context.Context, donation *domain.Donation) error {
	query := `
		INSERT INTO donations (
			id, cause_id, user_id, amount, currency, is_anonymous,
			payment_status, recurring_donation_id, transaction_number,
			completed_at, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	`
	_, err := r.db.Exec(ctx, query,
		donation.ID,
		donation.CauseID,
		donation.UserID,
		donation.Amount.String(),
		donation.Currency,
		donation.IsAnonymous,
		donation.PaymentStatus,
		donation.RecurringDonationID,
		donation.TransactionNumber,
		donation.CompletedAt,
	)
	return err
}

func (r *PostgresRepository) CompleteEventRegistration(ctx context.Context, registrationID uuid.UUID, transactionNumber string, amountPaid decimal.Decimal) error {
	query := `
		UPDATE event_registrations
		SET payment_status = 'Completed',
		    status = 'Registered',
		    transaction_number = $2,
		    amount_paid = $3
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, registrationID, transactionNumber, amountPaid.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRegistrationNotFound
	}
	return nil
}

func (r *PostgresRepository) ActivateRecurringDonation(ctx context.Context, id uuid.UUID) (*domain.RecurringDonation, error) {
	query := `
		UPDATE recurring_donations
		SET status = 'active',
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id, cause_id, user_id, is_anonymous, status
	`
	var rd domain.RecurringDonation
	err := r.db.QueryRow(ctx, query, id).Scan(
		&rd.ID,
		&rd.CauseID,
		&rd.UserID,
		&rd.IsAnonymous,
		&rd.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecurringDonationNotFound
		}
		return nil, err
	}
	return &rd, nil
}

func (r *PostgresRepository) FindUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `
		SELECT id, account_type, membership_status, is_premium,
		       is_partner_organization, membership_tier,
		       membership_expires_at, subscription_start_date
		FROM users
		WHERE id = $1
	`
	var user domain.User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.AccountType,
		&user.MembershipStatus,
		&user.IsPremium,
		&user.IsPartnerOrganization,
		&user.MembershipTier,
		&user.MembershipExpiresAt,
		&user.SubscriptionStartDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *PostgresRepository) ApplyMembership(ctx context.Context, update domain.MembershipUpdate) error {
	var query string
	if update.AccountType == domain.AccountTypeOrganization {
		query = `
			UPDATE users
			SET membership_status = 'active',
			    is_partner_organization = TRUE,
			    membership_expires_at = $2,
			    subscription_start_date = COALESCE(subscription_start_date, $3),
			    updated_at = NOW()
			WHERE id = $1
		`
		tag, err := r.db.Exec(ctx, query, update.UserID, update.ExpiresAt, update.StartedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrUserNotFound
		}
		return nil
	}

	query = `
		UPDATE users
		SET membership_status = 'active',
		    is_premium = TRUE,
		    membership_tier = $2,
		    membership_expires_at = $3,
		    subscription_start_date = COALESCE(subscription_start_date, $4),
		    updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, update.UserID, update.Tier, update.ExpiresAt, update.StartedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PostgresRepository) IncrementCauseRaisedAmount(ctx context.Context, causeID uuid.UUID, amount decimal.Decimal) error {
	// Single-statement atomic increment; concurrent donations to the same cause
	// must not lose updates.
	query := `
		UPDATE causes
		SET amount_raised = amount_raised + $2,
		    updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, causeID, amount.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cause %s not found for aggregate increment", causeID)
	}
	return nil
}

func (r *PostgresRepository) ListNotificationRecipients(ctx context.Context, actorID uuid.UUID, category string) ([]uuid.UUID, error) {
	// A user with no settings row for the category is treated as opted in.
	query := `
		SELECT u.id
		FROM users u
		LEFT JOIN user_notification_settings s
		  ON s.user_id = u.id AND s.category = $2
		WHERE u.id <> $1
		  AND COALESCE(s.enabled, TRUE)
	`
	rows, err := r.db.Query(ctx, query, actorID, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recipients []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		recipients = append(recipients, id)
	}
	return recipients, rows.Err()
}

func (r *PostgresRepository) CreateInAppNotifications(ctx context.Context, items []domain.InAppNotification) error {
	if len(items) == 0 {
		return nil
	}
	query := `
		INSERT INTO in_app_notifications (
			id, user_id, category, title, body,
			related_entity_type, related_entity_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`
	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(query,
			item.ID,
			item.UserID,
			item.Category,
			item.Title,
			item.Body,
			item.RelatedEntityType,
			item.RelatedEntityID,
		)
	}
	results := r.db.SendBatch(ctx, batch)
	defer results.Close()
	for range items {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
