package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

const defaultBaseURL = "https://api.razorpay.com/v1"

// Order is the gateway-side order created before redirecting the user to
// the hosted payment page.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"` // smallest currency unit (paise)
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// Client talks to the Razorpay Orders API and verifies redirect signatures.
type Client struct {
	keyID     string
	keySecret string
	baseURL   string
	http      *http.Client
}

// Option customizes a Client (test servers inject their own URL/transport).
type Option func(*Client)

func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func NewClient(keyID, keySecret string, opts ...Option) *Client {
	c := &Client{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   defaultBaseURL,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateOrder registers an order with the gateway. Amount is converted from
// rupees to paise; the gateway only accepts integral smallest-unit amounts.
func (c *Client) CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (*Order, error) {
	payload := map[string]interface{}{
		"amount":   ToPaise(amount),
		"currency": currency,
		"receipt":  receipt,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode order payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return nil, fmt.Errorf("gateway rejected order (%d): %s %s", resp.StatusCode, apiErr.Error.Code, apiErr.Error.Description)
	}

	var order Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("failed to decode order response: %w", err)
	}

	return &order, nil
}

// VerifySignature checks the HMAC-SHA256 the gateway computes over
// "orderID|paymentID" with the key secret. Constant-time comparison.
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(c.keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ToPaise converts a rupee amount to integral paise, rounding half-up to
// the nearest paisa.
func ToPaise(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
