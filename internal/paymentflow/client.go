package paymentflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// TokenStore abstracts where the session token lives (cookie jar, local
// storage, memory). Injected so nothing here touches ambient globals.
type TokenStore interface {
	Get() (string, error)
	Set(token string) error
	Clear() error
}

// MemoryTokenStore is the default in-process TokenStore.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token string
}

func (s *MemoryTokenStore) Get() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

func (s *MemoryTokenStore) Set(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

// Session carries authentication for outbound API calls. It is passed
// explicitly to the client rather than read from globals.
type Session struct {
	store TokenStore
}

func NewSession(store TokenStore) *Session {
	if store == nil {
		store = &MemoryTokenStore{}
	}
	return &Session{store: store}
}

func (s *Session) Token() (string, error)  { return s.store.Get() }
func (s *Session) SetToken(t string) error { return s.store.Set(t) }
func (s *Session) Clear() error            { return s.store.Clear() }

// APIClient implements the Verifier, FailureNotifier and StatusChecker
// contracts against the booking REST API.
type APIClient struct {
	baseURL string
	session *Session
	http    *http.Client
}

func NewAPIClient(baseURL string, session *Session) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		session: session,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// envelope mirrors the server's pkg/response format.
type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
}

type verifyPayload struct {
	Success   bool   `json:"success"`
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

func (c *APIClient) Verify(ctx context.Context, orderID, paymentID, signature string) (VerificationResult, error) {
	body := map[string]string{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
		"razorpay_signature":  signature,
	}

	var env envelope
	if err := c.post(ctx, "/api/payments/verify", body, &env); err != nil {
		return VerificationResult{}, err
	}
	if env.Status != "success" {
		return VerificationResult{}, fmt.Errorf("verification rejected: %s", env.Error)
	}

	var payload verifyPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return VerificationResult{}, fmt.Errorf("malformed verification response: %w", err)
	}
	if !payload.Success {
		msg := payload.Message
		if msg == "" {
			msg = "payment verification failed"
		}
		return VerificationResult{}, fmt.Errorf("%s", msg)
	}

	return VerificationResult{BookingID: payload.BookingID, Status: payload.Status}, nil
}

func (c *APIClient) NotifyFailure(ctx context.Context, orderID, errorCode, errorDescription string) error {
	body := map[string]string{
		"razorpay_order_id": orderID,
		"error_code":        errorCode,
		"error_description": errorDescription,
	}
	var env envelope
	return c.post(ctx, "/api/payments/failed", body, &env)
}

func (c *APIClient) CheckStatus(ctx context.Context, orderID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/payments/status/"+orderID, nil)
	if err != nil {
		return "", err
	}
	if err := c.authorize(req); err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("status check failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return "", fmt.Errorf("malformed status response: %w", err)
	}
	if env.Status != "success" {
		return "", fmt.Errorf("status check rejected: %s", env.Error)
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return "", fmt.Errorf("malformed status payload: %w", err)
	}
	return payload.Status, nil
}

func (c *APIClient) post(ctx context.Context, path string, body interface{}, out *envelope) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.authorize(req); err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("malformed response from %s: %w", path, err)
	}
	return nil
}

func (c *APIClient) authorize(req *http.Request) error {
	if c.session == nil {
		return nil
	}
	token, err := c.session.Token()
	if err != nil {
		return fmt.Errorf("session token unavailable: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}
