/**
 * @description
 * This file contains the settlement engine, the state machine that converts a
 * resolved confirmation into committed ledger and domain state. Settlement
 * runs in a strict order: primary ledger update, order-type dispatch, then
 * best-effort receipt and event publication. The primary update is a
 * conditional write (pending -> completed) so a concurrent double delivery
 * cannot settle twice; secondary failures are recorded on the result and
 * logged, never raised.
 *
 * @dependencies
 * - internal/domain, internal/store, internal/metrics.
 * - pkg/rabbitmq: For the post-settlement event publish.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/causewayapp/payment-service/internal/domain"
	"github.com/causewayapp/payment-service/internal/metrics"
	"github.com/causewayapp/payment-service/internal/store"
	"github.com/causewayapp/payment-service/pkg/rabbitmq"
)

const settledEventsExchange = "causeway.events"

type settlementFunc func(ctx context.Context, tx *domain.PaymentTransaction, transactionNumber string, result *SettlementResult) error

// SettlementEngine performs the ledger transition and the order-type-specific
// domain mutations for each settlement event.
type SettlementEngine struct {
	repo         store.Repository
	orchestrator *Orchestrator
	producer     rabbitmq.Publisher
	now          func() time.Time
	handlers     map[domain.OrderType]settlementFunc
}

// NewSettlementEngine creates a settlement engine with the closed order-type
// dispatch table. Adding an order type means adding a handler here.
func NewSettlementEngine(repo store.Repository, orchestrator *Orchestrator, producer rabbitmq.Publisher) *SettlementEngine {
	e := &SettlementEngine{
		repo:         repo,
		orchestrator: orchestrator,
		producer:     producer,
		now:          time.Now,
	}
	e.handlers = map[domain.OrderType]settlementFunc{
		domain.OrderTypeEventRegistration:      e.settleEventRegistration,
		domain.OrderTypeDonation:               e.settleDonation,
		domain.OrderTypeMembership:             e.settleMembership,
		domain.OrderTypeOrganizationMembership: e.settleMembership,
		domain.OrderTypeRecurringDonation:      e.settleRecurringDonation,
	}
	return e
}

// SettleTransaction settles a one-time payment. The caller has already
// verified the transaction is not completed; the conditional update here
// closes the remaining race against a concurrent delivery.
func (e *SettlementEngine) SettleTransaction(ctx context.Context, tx *domain.PaymentTransaction, transactionNumber string) (*SettlementResult, error) {
	result := &SettlementResult{TransactionID: &tx.ID}

	settled, err := e.repo.CompletePaymentTransaction(ctx, tx.ID, transactionNumber)
	if err != nil {
		// No domain mutation happened yet; safe for the caller to retry.
		metrics.SettlementsFailed.Inc()
		return nil, fmt.Errorf("primary ledger update failed: %w", err)
	}
	if !settled {
		log.Printf("level=warn component=settlement msg=\"no pending row matched; concurrent delivery already settled\" transaction_id=%s", tx.ID)
		result.AlreadyProcessed = true
		metrics.SettlementsAlreadyProcessed.Inc()
		return result, nil
	}

	now := e.now().UTC()
	tx.Status = domain.TransactionStatusCompleted
	tx.TransactionNumber = &transactionNumber
	tx.CompletedAt = &now

	if handler, ok := e.handlers[tx.OrderType]; ok {
		if err := handler(ctx, tx, transactionNumber, result); err != nil {
			// The ledger is already committed; re-running settlement would be a
			// no-op under the idempotency short-circuit, so stamp the gap for
			// reconciliation tooling.
			log.Printf("level=error component=settlement msg=\"CRITICAL: domain mutation failed after ledger commit\" transaction_id=%s order_type=%s err=%v", tx.ID, tx.OrderType, err)
			if markErr := e.repo.MarkTransactionUnfulfilled(ctx, tx.ID, err.Error()); markErr != nil {
				log.Printf("level=error component=settlement msg=\"CRITICAL: failed to mark transaction unfulfilled\" transaction_id=%s err=%v", tx.ID, markErr)
			}
			metrics.SettlementsFailed.Inc()
			return nil, fmt.Errorf("domain mutation failed for order type %s: %w", tx.OrderType, err)
		}
	} else {
		// The ledger update already committed, so an unknown order type still
		// settles successfully; there is just no domain state to move.
		log.Printf("level=warn component=settlement msg=\"unknown order type; no domain mutation\" transaction_id=%s order_type=%s", tx.ID, tx.OrderType)
	}

	if err := e.orchestrator.IssueReceipt(ctx, tx, transactionNumber); err != nil {
		e.recordSecondary(result, "receipt_issuance", err)
	}
	e.publishSettledEvent(ctx, domain.PaymentSettledEvent{
		TransactionID:     &tx.ID,
		OrderType:         string(tx.OrderType),
		Amount:            tx.Amount,
		Currency:          tx.Currency,
		TransactionNumber: transactionNumber,
		SettledAt:         now,
	}, result)

	metrics.SettlementsCompleted.Inc()
	return result, nil
}

// SettleSubscription settles one billing cycle of a recurring agreement.
// Every confirmation moves last_billing_date forward, sets the subscription
// active, and creates a fresh donation row for donation subscriptions.
func (e *SettlementEngine) SettleSubscription(ctx context.Context, sub *domain.PaymentSubscription, transactionNumber string) (*SettlementResult, error) {
	result := &SettlementResult{SubscriptionID: &sub.ID}
	now := e.now().UTC()
	nextBilling := sub.Frequency.AdvanceFrom(now)

	if err := e.repo.ConfirmSubscriptionBilling(ctx, sub.ID, transactionNumber, nextBilling); err != nil {
		metrics.SettlementsFailed.Inc()
		return nil, fmt.Errorf("primary ledger update failed: %w", err)
	}

	switch sub.SubscriptionType {
	case domain.SubscriptionTypeRecurringDonation:
		if sub.ReferenceID == nil {
			log.Printf("level=warn component=settlement msg=\"donation subscription missing recurring donation reference\" subscription_id=%s", sub.ID)
			break
		}
		rd, err := e.repo.ActivateRecurringDonation(ctx, *sub.ReferenceID)
		if err != nil {
			log.Printf("level=error component=settlement msg=\"CRITICAL: billing confirmed but recurring donation activation failed\" subscription_id=%s err=%v", sub.ID, err)
			metrics.SettlementsFailed.Inc()
			return nil, fmt.Errorf("failed to activate recurring donation: %w", err)
		}
		if err := e.createRecurringCharge(ctx, rd, sub.Amount, sub.Currency, transactionNumber, result); err != nil {
			log.Printf("level=error component=settlement msg=\"CRITICAL: billing confirmed but charge recording failed\" subscription_id=%s err=%v", sub.ID, err)
			metrics.SettlementsFailed.Inc()
			return nil, err
		}
	case domain.SubscriptionTypeMembership, domain.SubscriptionTypeOrganizationMembership:
		if err := e.applyMembershipForSubscription(ctx, sub, nextBilling, now); err != nil {
			log.Printf("level=error component=settlement msg=\"CRITICAL: billing confirmed but membership update failed\" subscription_id=%s err=%v", sub.ID, err)
			metrics.SettlementsFailed.Inc()
			return nil, err
		}
	default:
		log.Printf("level=warn component=settlement msg=\"unknown subscription type; no domain mutation\" subscription_id=%s subscription_type=%s", sub.ID, sub.SubscriptionType)
	}

	e.publishSettledEvent(ctx, domain.PaymentSettledEvent{
		SubscriptionID:    &sub.ID,
		OrderType:         string(sub.SubscriptionType),
		Amount:            sub.Amount,
		Currency:          sub.Currency,
		TransactionNumber: transactionNumber,
		SettledAt:         now,
	}, result)

	metrics.SettlementsCompleted.Inc()
	return result, nil
}

func (e *SettlementEngine) settleEventRegistration(ctx context.Context, tx *domain.PaymentTransaction, transactionNumber string, _ *SettlementResult) error {
	if tx.ReferenceID == nil {
		// Legacy or malformed checkout records can miss the reference; the
		// payment itself is still settled.
		log.Printf("level=warn component=settlement msg=\"event registration transaction missing reference; skipping domain update\" transaction_id=%s", tx.ID)
		return nil
	}
	if err := e.repo.CompleteEventRegistration(ctx, *tx.ReferenceID, transactionNumber, tx.Amount); err != nil {
		return fmt.Errorf("failed to complete event registration %s: %w", *tx.ReferenceID, err)
	}
	return nil
}

func (e *SettlementEngine) settleDonation(ctx context.Context, tx *domain.PaymentTransaction, transactionNumber string, result *SettlementResult) error {
	if tx.ReferenceID == nil {
		log.Printf("level=warn component=settlement msg=\"donation transaction missing reference; skipping domain update\" transaction_id=%s", tx.ID)
		return nil
	}
	donation, err := e.repo.CompleteDonation(ctx, *tx.ReferenceID, transactionNumber)
	if err != nil {
		return fmt.Errorf("failed to complete donation %s: %w", *tx.ReferenceID, err)
	}
	// The donation is durably recorded as paid; the cause aggregate is a
	// derived value, so a failed increment is swallowed.
	if err := e.repo.IncrementCauseRaisedAmount(ctx, donation.CauseID, tx.Amount); err != nil {
		e.recordSecondary(result, "cause_aggregate_increment", err)
	}
	return nil
}

func (e *SettlementEngine) settleMembership(ctx context.Context, tx *domain.PaymentTransaction, _ string, _ *SettlementResult) error {
	if tx.UserID == nil {
		log.Printf("level=warn component=settlement msg=\"membership transaction missing user; skipping domain update\" transaction_id=%s", tx.ID)
		return nil
	}
	meta := domain.MembershipMetadataFromMap(tx.Metadata)
	now := e.now().UTC()

	expiresAt := meta.Frequency.AdvanceFrom(now)
	if meta.SubscriptionID != nil {
		sub, err := e.repo.FindPaymentSubscriptionByID(ctx, *meta.SubscriptionID)
		if err != nil {
			log.Printf("level=warn component=settlement msg=\"subscription back-reference unresolved; using frequency expiry\" transaction_id=%s subscription_id=%s err=%v", tx.ID, *meta.SubscriptionID, err)
		} else if sub.NextBillingDate != nil {
			expiresAt = *sub.NextBillingDate
		}
	}

	user, err := e.repo.FindUserByID(ctx, *tx.UserID)
	if err != nil {
		return fmt.Errorf("failed to resolve member account %s: %w", *tx.UserID, err)
	}
	update := domain.MembershipUpdate{
		UserID:      user.ID,
		AccountType: user.AccountType,
		Tier:        meta.Tier,
		ExpiresAt:   expiresAt,
		StartedAt:   now,
	}
	if err := e.repo.ApplyMembership(ctx, update); err != nil {
		return fmt.Errorf("failed to apply membership for user %s: %w", user.ID, err)
	}
	return nil
}

func (e *SettlementEngine) settleRecurringDonation(ctx context.Context, tx *domain.PaymentTransaction, transactionNumber string, result *SettlementResult) error {
	if tx.ReferenceID == nil {
		log.Printf("level=warn component=settlement msg=\"recurring donation transaction missing reference; skipping domain update\" transaction_id=%s", tx.ID)
		return nil
	}
	rd, err := e.repo.ActivateRecurringDonation(ctx, *tx.ReferenceID)
	if err != nil {
		return fmt.Errorf("failed to activate recurring donation %s: %w", *tx.ReferenceID, err)
	}
	return e.createRecurringCharge(ctx, rd, tx.Amount, tx.Currency, transactionNumber, result)
}

// createRecurringCharge records one charge of a recurring donation as a fresh
// donation row and increments the cause aggregate. Shared by the first-charge
// transaction path and the subscription billing path; a single donation row is
// never reused across billing cycles.
func (e *SettlementEngine) createRecurringCharge(ctx context.Context, rd *domain.RecurringDonation, amount decimal.Decimal, currency, transactionNumber string, result *SettlementResult) error {
	now := e.now().UTC()
	donation := &domain.Donation{
		ID:                  uuid.New(),
		CauseID:             rd.CauseID,
		UserID:              rd.UserID,
		Amount:              amount,
		Currency:            currency,
		IsAnonymous:         rd.IsAnonymous,
		PaymentStatus:       "completed",
		RecurringDonationID: &rd.ID,
		TransactionNumber:   &transactionNumber,
		CompletedAt:         &now,
	}
	if err := e.repo.CreateDonation(ctx, donation); err != nil {
		return fmt.Errorf("failed to record recurring charge for donation agreement %s: %w", rd.ID, err)
	}
	if err := e.repo.IncrementCauseRaisedAmount(ctx, rd.CauseID, amount); err != nil {
		e.recordSecondary(result, "cause_aggregate_increment", err)
	}
	return nil
}

func (e *SettlementEngine) applyMembershipForSubscription(ctx context.Context, sub *domain.PaymentSubscription, expiresAt, now time.Time) error {
	user, err := e.repo.FindUserByID(ctx, sub.UserID)
	if err != nil {
		return fmt.Errorf("failed to resolve member account %s: %w", sub.UserID, err)
	}
	tier := "standard"
	if user.MembershipTier != nil && *user.MembershipTier != "" {
		tier = *user.MembershipTier
	}
	update := domain.MembershipUpdate{
		UserID:      user.ID,
		AccountType: user.AccountType,
		Tier:        tier,
		ExpiresAt:   expiresAt,
		StartedAt:   now,
	}
	if err := e.repo.ApplyMembership(ctx, update); err != nil {
		return fmt.Errorf("failed to apply membership for user %s: %w", user.ID, err)
	}
	return nil
}

func (e *SettlementEngine) publishSettledEvent(ctx context.Context, event domain.PaymentSettledEvent, result *SettlementResult) {
	if e.producer == nil {
		return
	}
	if err := e.producer.Publish(ctx, settledEventsExchange, "payment.settled", event); err != nil {
		e.recordSecondary(result, "settled_event_publish", err)
	}
}

func (e *SettlementEngine) recordSecondary(result *SettlementResult, effect string, err error) {
	log.Printf("level=warn component=settlement msg=\"secondary effect failed; continuing\" effect=%s err=%v", effect, err)
	metrics.SecondaryFailures.WithLabelValues(effect).Inc()
	result.Secondary = append(result.Secondary, SecondaryError{Effect: effect, Err: err})
}
