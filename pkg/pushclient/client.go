/**
 * @description
 * This package provides a client for the external push-delivery provider.
 * Delivery is best-effort: the caller treats any returned error as a
 * per-recipient failure to log and skip, never as something to roll back.
 * Transient provider errors are retried a few times with a short delay
 * before giving up.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, io, net/http, time: Standard Go libraries.
 * - github.com/avast/retry-go: Bounded retry on transient failures.
 */
package pushclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	retry "github.com/avast/retry-go"
)

// Client is a client for the push-delivery provider API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new push-delivery client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Payload is the typed notification content delivered to one recipient.
type Payload struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

type sendRequest struct {
	UserID  string  `json:"user_id"`
	Payload Payload `json:"payload"`
}

var errPushRejected = errors.New("push provider rejected the delivery")

// Send attempts push delivery to one recipient. Provider 5xx responses and
// network errors are retried; 4xx responses are not, since re-sending the
// same payload cannot succeed.
func (c *Client) Send(ctx context.Context, userID string, payload Payload) error {
	body, err := json.Marshal(sendRequest{UserID: userID, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal push payload: %w", err)
	}

	url := fmt.Sprintf("%s/v1/push", c.BaseURL)
	return retry.Do(
		func() error {
			return c.post(ctx, url, body)
		},
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.MaxDelay(time.Second),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, errPushRejected)
		}),
	)
}

func (c *Client) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("push provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return fmt.Errorf("%w: status %d: %s", errPushRejected, resp.StatusCode, string(respBody))
	}
	return fmt.Errorf("push provider returned status %d: %s", resp.StatusCode, string(respBody))
}
