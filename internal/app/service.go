/**
 * @description
 * This file contains the payment event router, the entry point of the
 * confirmation pipeline. It validates the inbound confirmation, resolves the
 * ledger record it refers to, short-circuits re-deliveries of already
 * completed transactions, and dispatches to the settlement engine.
 *
 * Key features:
 * - Exactly one of transaction id / subscription id must be present, and the
 *   provider transaction number is always required.
 * - Idempotency short-circuit: a completed transaction is never re-settled.
 *   Subscriptions deliberately have no such short-circuit, because every
 *   subscription confirmation represents a new billing cycle.
 *
 * @dependencies
 * - internal/domain, internal/store: Domain models and data access.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/causewayapp/payment-service/internal/domain"
	"github.com/causewayapp/payment-service/internal/store"
)

// ErrInvalidRequest is returned for confirmations with missing or conflicting
// identifiers. It is terminal; the caller maps it to a 400.
var ErrInvalidRequest = errors.New("invalid confirmation request")

// Service routes inbound payment confirmations into the settlement engine.
type Service struct {
	repo   store.Repository
	engine *SettlementEngine
}

// NewService creates a new payment event router.
func NewService(repo store.Repository, engine *SettlementEngine) *Service {
	return &Service{repo: repo, engine: engine}
}

// HandleConfirmation validates and settles one gateway confirmation.
func (s *Service) HandleConfirmation(ctx context.Context, confirmation domain.PaymentConfirmation) (*SettlementResult, error) {
	if strings.TrimSpace(confirmation.TransactionNumber) == "" {
		return nil, fmt.Errorf("%w: transaction_number is required", ErrInvalidRequest)
	}
	if (confirmation.TransactionID == nil) == (confirmation.SubscriptionID == nil) {
		return nil, fmt.Errorf("%w: exactly one of transaction_id or subscription_id is required", ErrInvalidRequest)
	}

	if confirmation.TransactionID != nil {
		tx, err := s.repo.FindPaymentTransactionByID(ctx, *confirmation.TransactionID)
		if err != nil {
			return nil, err
		}
		if tx.Status == domain.TransactionStatusCompleted {
			// Gateways retry confirmations; the first delivery already settled
			// everything, so this one is a no-op.
			log.Printf("level=info component=router msg=\"transaction already completed; skipping settlement\" transaction_id=%s transaction_number=%s", tx.ID, confirmation.TransactionNumber)
			return &SettlementResult{AlreadyProcessed: true, TransactionID: &tx.ID}, nil
		}
		return s.engine.SettleTransaction(ctx, tx, confirmation.TransactionNumber)
	}

	// Subscriptions always re-enter settlement: each confirmation is a new
	// charge for a new billing cycle, not a re-delivery of the same one.
	sub, err := s.repo.FindPaymentSubscriptionByID(ctx, *confirmation.SubscriptionID)
	if err != nil {
		return nil, err
	}
	return s.engine.SettleSubscription(ctx, sub, confirmation.TransactionNumber)
}
