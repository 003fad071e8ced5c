/**
 * @description
 * This package provides a client for the external Receipt Issuer service. It
 * encapsulates the logic for making authenticated HTTP requests to create a
 * receipt document for a settled transaction. Receipt creation is keyed by
 * transaction id and transaction number on the issuer side, so re-submitting
 * the same receipt is safe.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, io, net/http, time: Standard Go libraries.
 * - github.com/shopspring/decimal: Monetary amounts on the receipt.
 */
package receiptclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// Client is a client for the Receipt Issuer API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new Receipt Issuer client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// LineItem is one line on a receipt.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// CreateReceiptParams is the payload for creating a receipt.
type CreateReceiptParams struct {
	TransactionID     string          `json:"transaction_id"`
	TransactionNumber string          `json:"transaction_number"`
	CustomerEmail     string          `json:"customer_email"`
	CustomerName      string          `json:"customer_name,omitempty"`
	Currency          string          `json:"currency"`
	LineItems         []LineItem      `json:"line_items"`
	ProcessingFee     decimal.Decimal `json:"processing_fee"`
}

// CreateReceipt submits a receipt to the issuer.
func (c *Client) CreateReceipt(ctx context.Context, params CreateReceiptParams) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal receipt payload: %w", err)
	}

	url := fmt.Sprintf("%s/v1/receipts", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("receipt issuer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("receipt issuer returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
