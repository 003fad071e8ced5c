/**
 * @description
 * Receipt orchestration for settled transactions. Receipts are a customer
 * courtesy, not part of the payment record: a missing email or transaction
 * number skips issuance silently, and an issuer failure is reported to the
 * caller as a secondary error, never as a settlement failure.
 *
 * @dependencies
 * - github.com/shopspring/decimal: Fee arithmetic.
 * - pkg/receiptclient: The external Receipt Issuer client.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/causewayapp/payment-service/internal/domain"
	"github.com/causewayapp/payment-service/pkg/receiptclient"
)

// ReceiptIssuer is the slice of the receipt client the orchestrator needs.
type ReceiptIssuer interface {
	CreateReceipt(ctx context.Context, params receiptclient.CreateReceiptParams) error
}

// Orchestrator derives receipt line items and the processing fee from a
// settled transaction and submits them to the Receipt Issuer.
type Orchestrator struct {
	receipts   ReceiptIssuer
	feeMinimum decimal.Decimal
	feePercent decimal.Decimal
}

// NewOrchestrator creates a receipt orchestrator. feeMinimum is the provider's
// flat minimum fee in JMD; feePercent is the proportional rate (e.g. 0.03).
func NewOrchestrator(receipts ReceiptIssuer, feeMinimum, feePercent decimal.Decimal) *Orchestrator {
	return &Orchestrator{receipts: receipts, feeMinimum: feeMinimum, feePercent: feePercent}
}

// CalculateProcessingFee returns the provider's fee for an amount: the flat
// minimum or the proportional rate, whichever is larger.
func (o *Orchestrator) CalculateProcessingFee(amount decimal.Decimal) decimal.Decimal {
	return decimal.Max(o.feeMinimum, amount.Mul(o.feePercent))
}

// IssueReceipt builds and submits the receipt for a settled transaction.
// Returns nil both on success and on a deliberate skip.
func (o *Orchestrator) IssueReceipt(ctx context.Context, tx *domain.PaymentTransaction, transactionNumber string) error {
	if o == nil || o.receipts == nil {
		return nil
	}
	if strings.TrimSpace(transactionNumber) == "" || strings.TrimSpace(tx.CustomerEmail) == "" {
		// Guest or incomplete records cannot receive receipts.
		log.Printf("level=info component=receipts msg=\"skipping receipt; missing email or transaction number\" transaction_id=%s", tx.ID)
		return nil
	}

	description := strings.TrimSpace(tx.Description)
	if description == "" {
		description = fmt.Sprintf("%s payment", tx.OrderType)
	}

	params := receiptclient.CreateReceiptParams{
		TransactionID:     tx.ID.String(),
		TransactionNumber: transactionNumber,
		CustomerEmail:     tx.CustomerEmail,
		CustomerName:      tx.CustomerName,
		Currency:          tx.Currency,
		LineItems: []receiptclient.LineItem{
			{Description: description, Quantity: 1, UnitPrice: tx.Amount},
		},
		ProcessingFee: o.CalculateProcessingFee(tx.Amount),
	}
	return o.receipts.CreateReceipt(ctx, params)
}
