/**
 * @description
 * This file contains the HTTP handler for the payment confirmation endpoint.
 * The handler parses and validates the gateway's confirmation body, applies
 * the per-transaction-number rate limit, calls the payment event router, and
 * maps the outcome onto the flat success/error envelope the gateway expects.
 *
 * @dependencies
 * - encoding/json, errors, log, net/http, strings, time: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: Service logic, models, and
 *   sentinel errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/causewayapp/payment-service/internal/app"
	"github.com/causewayapp/payment-service/internal/domain"
	"github.com/causewayapp/payment-service/internal/store"
)

// PaymentHandlers holds the application service that handlers will use.
type PaymentHandlers struct {
	service        *app.Service
	limiter        *app.ConfirmRateLimiter
	limitPerMinute int
}

// NewPaymentHandlers creates a new instance of PaymentHandlers.
func NewPaymentHandlers(service *app.Service) *PaymentHandlers {
	return &PaymentHandlers{service: service}
}

// SetRateLimiter attaches the optional Redis-backed rate limiter. Without it
// the endpoint runs unlimited.
func (h *PaymentHandlers) SetRateLimiter(limiter *app.ConfirmRateLimiter, perMinute int) {
	h.limiter = limiter
	h.limitPerMinute = perMinute
}

type confirmPaymentRequest struct {
	TransactionID     string `json:"transaction_id"`
	SubscriptionID    string `json:"subscription_id"`
	TransactionNumber string `json:"transaction_number"`
}

type confirmPaymentResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message,omitempty"`
	TransactionID  string `json:"transaction_id,omitempty"`
	SubscriptionID string `json:"subscription_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

// ConfirmPaymentHandler handles POST /payments/confirm.
func (h *PaymentHandlers) ConfirmPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req confirmPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.TransactionID = strings.TrimSpace(req.TransactionID)
	req.SubscriptionID = strings.TrimSpace(req.SubscriptionID)
	req.TransactionNumber = strings.TrimSpace(req.TransactionNumber)

	if req.TransactionNumber == "" {
		h.writeError(w, http.StatusBadRequest, "transaction_number is required")
		return
	}
	if (req.TransactionID == "") == (req.SubscriptionID == "") {
		h.writeError(w, http.StatusBadRequest, "exactly one of transaction_id or subscription_id is required")
		return
	}

	if h.limiter != nil {
		allowed, retryAfter, err := h.limiter.Consume(r.Context(), req.TransactionNumber, h.limitPerMinute, time.Minute)
		if err != nil {
			// Limiter trouble must not block settlements; fail open.
			log.Printf("level=warn component=api msg=\"rate limiter unavailable; allowing request\" err=%v", err)
		} else if !allowed {
			if retryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			}
			h.writeError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
	}

	confirmation := domain.PaymentConfirmation{TransactionNumber: req.TransactionNumber}
	if req.TransactionID != "" {
		id, err := uuid.Parse(req.TransactionID)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "transaction_id is not a valid identifier")
			return
		}
		confirmation.TransactionID = &id
	}
	if req.SubscriptionID != "" {
		id, err := uuid.Parse(req.SubscriptionID)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "subscription_id is not a valid identifier")
			return
		}
		confirmation.SubscriptionID = &id
	}

	result, err := h.service.HandleConfirmation(r.Context(), confirmation)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidRequest):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrTransactionNotFound):
			h.writeError(w, http.StatusNotFound, "Transaction not found")
		case errors.Is(err, store.ErrSubscriptionNotFound):
			h.writeError(w, http.StatusNotFound, "Subscription not found")
		default:
			log.Printf("level=error component=api msg=\"settlement failed\" transaction_number=%s err=%v", req.TransactionNumber, err)
			h.writeError(w, http.StatusInternalServerError, "Failed to process payment confirmation")
		}
		return
	}

	switch {
	case result.AlreadyProcessed:
		h.writeJSON(w, http.StatusOK, confirmPaymentResponse{
			Success: true,
			Message: "Transaction already processed",
		})
	case result.TransactionID != nil:
		h.writeJSON(w, http.StatusOK, confirmPaymentResponse{
			Success:       true,
			Message:       "Payment processed successfully",
			TransactionID: result.TransactionID.String(),
		})
	default:
		h.writeJSON(w, http.StatusOK, confirmPaymentResponse{
			Success:        true,
			Message:        "Subscription payment processed successfully",
			SubscriptionID: result.SubscriptionID.String(),
		})
	}
}

func (h *PaymentHandlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("level=error component=api msg=\"failed to encode response\" err=%v", err)
	}
}

func (h *PaymentHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, confirmPaymentResponse{Success: false, Error: message})
}
