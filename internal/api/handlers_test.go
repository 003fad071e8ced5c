package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/causewayapp/payment-service/internal/app"
	"github.com/causewayapp/payment-service/internal/domain"
	"github.com/causewayapp/payment-service/internal/store"
	"github.com/causewayapp/payment-service/pkg/rabbitmq"
)

type handlerRepoStub struct {
	store.Repository

	tx       *domain.PaymentTransaction
	donation *domain.Donation
}

func (s *handlerRepoStub) FindPaymentTransactionByID(ctx context.Context, id uuid.UUID) (*domain.PaymentTransaction, error) {
	if s.tx == nil {
		return nil, store.ErrTransactionNotFound
	}
	return s.tx, nil
}

func (s *handlerRepoStub) FindPaymentSubscriptionByID(ctx context.Context, id uuid.UUID) (*domain.PaymentSubscription, error) {
	return nil, store.ErrSubscriptionNotFound
}

func (s *handlerRepoStub) CompletePaymentTransaction(ctx context.Context, id uuid.UUID, transactionNumber string) (bool, error) {
	return true, nil
}

func (s *handlerRepoStub) CompleteDonation(ctx context.Context, donationID uuid.UUID, transactionNumber string) (*domain.Donation, error) {
	return s.donation, nil
}

func (s *handlerRepoStub) IncrementCauseRaisedAmount(ctx context.Context, causeID uuid.UUID, amount decimal.Decimal) error {
	return nil
}

func newTestHandlers(repo *handlerRepoStub) *PaymentHandlers {
	orchestrator := app.NewOrchestrator(nil, decimal.NewFromInt(135), decimal.NewFromFloat(0.03))
	engine := app.NewSettlementEngine(repo, orchestrator, &rabbitmq.EventProducerFallback{})
	return NewPaymentHandlers(app.NewService(repo, engine))
}

func postConfirm(t *testing.T, h *PaymentHandlers, body map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/payments/confirm", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	h.ConfirmPaymentHandler(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) confirmPaymentResponse {
	t.Helper()
	var resp confirmPaymentResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestConfirmPaymentHandler_RejectsMissingTransactionNumber(t *testing.T) {
	h := newTestHandlers(&handlerRepoStub{})

	rec := postConfirm(t, h, map[string]string{"transaction_id": uuid.NewString()})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp.Success || resp.Error == "" {
		t.Fatalf("expected an error envelope, got %+v", resp)
	}
}

func TestConfirmPaymentHandler_RejectsBothIdentifiers(t *testing.T) {
	h := newTestHandlers(&handlerRepoStub{})

	rec := postConfirm(t, h, map[string]string{
		"transaction_id":     uuid.NewString(),
		"subscription_id":    uuid.NewString(),
		"transaction_number": "TXN-5001",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestConfirmPaymentHandler_RejectsMalformedIdentifier(t *testing.T) {
	h := newTestHandlers(&handlerRepoStub{})

	rec := postConfirm(t, h, map[string]string{
		"transaction_id":     "not-a-uuid",
		"transaction_number": "TXN-5002",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestConfirmPaymentHandler_UnknownTransactionReturns404(t *testing.T) {
	h := newTestHandlers(&handlerRepoStub{})

	rec := postConfirm(t, h, map[string]string{
		"transaction_id":     uuid.NewString(),
		"transaction_number": "TXN-5003",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp.Error != "Transaction not found" {
		t.Fatalf("expected not-found message, got %q", resp.Error)
	}
}

func TestConfirmPaymentHandler_SettlesPendingDonation(t *testing.T) {
	txID := uuid.New()
	refID := uuid.New()
	repo := &handlerRepoStub{
		tx: &domain.PaymentTransaction{
			ID:          txID,
			OrderType:   domain.OrderTypeDonation,
			ReferenceID: &refID,
			Amount:      decimal.NewFromInt(1500),
			Currency:    "JMD",
			Status:      domain.TransactionStatusPending,
		},
		donation: &domain.Donation{ID: refID, CauseID: uuid.New()},
	}
	h := newTestHandlers(repo)

	rec := postConfirm(t, h, map[string]string{
		"transaction_id":     txID.String(),
		"transaction_number": "TXN-5004",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	if !resp.Success || resp.Message != "Payment processed successfully" {
		t.Fatalf("expected success envelope, got %+v", resp)
	}
	if resp.TransactionID != txID.String() {
		t.Fatalf("expected transaction id %s, got %q", txID, resp.TransactionID)
	}
}

func TestConfirmPaymentHandler_CompletedTransactionShortCircuits(t *testing.T) {
	txID := uuid.New()
	repo := &handlerRepoStub{
		tx: &domain.PaymentTransaction{
			ID:        txID,
			OrderType: domain.OrderTypeDonation,
			Amount:    decimal.NewFromInt(1500),
			Currency:  "JMD",
			Status:    domain.TransactionStatusCompleted,
		},
	}
	h := newTestHandlers(repo)

	rec := postConfirm(t, h, map[string]string{
		"transaction_id":     txID.String(),
		"transaction_number": "TXN-5005",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if !resp.Success || resp.Message != "Transaction already processed" {
		t.Fatalf("expected already-processed envelope, got %+v", resp)
	}
}
