package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "key_id", user)
		assert.Equal(t, "key_secret", pass)

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, float64(149999), payload["amount"], "1499.99 rupees in paise")
		assert.Equal(t, "INR", payload["currency"])
		assert.Equal(t, "bk_123", payload["receipt"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Order{
			ID:       "order_abc",
			Amount:   149999,
			Currency: "INR",
			Receipt:  "bk_123",
			Status:   "created",
		})
	}))
	defer server.Close()

	client := NewClient("key_id", "key_secret", WithBaseURL(server.URL))

	order, err := client.CreateOrder(context.Background(), decimal.RequireFromString("1499.99"), "INR", "bk_123")

	require.NoError(t, err)
	assert.Equal(t, "order_abc", order.ID)
	assert.Equal(t, "created", order.Status)
}

func TestCreateOrder_GatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount too small"}}`))
	}))
	defer server.Close()

	client := NewClient("key_id", "key_secret", WithBaseURL(server.URL))

	_, err := client.CreateOrder(context.Background(), decimal.NewFromInt(1), "INR", "bk_1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "BAD_REQUEST_ERROR")
	assert.Contains(t, err.Error(), "amount too small")
}

func TestVerifySignature(t *testing.T) {
	client := NewClient("key_id", "key_secret")

	mac := hmac.New(sha256.New, []byte("key_secret"))
	mac.Write([]byte("order_abc|pay_xyz"))
	good := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, client.VerifySignature("order_abc", "pay_xyz", good))
	assert.False(t, client.VerifySignature("order_abc", "pay_xyz", "deadbeef"))
	assert.False(t, client.VerifySignature("order_other", "pay_xyz", good), "signature bound to the order")
}

func TestToPaise(t *testing.T) {
	assert.Equal(t, int64(100000), ToPaise(decimal.NewFromInt(1000)))
	assert.Equal(t, int64(149999), ToPaise(decimal.RequireFromString("1499.99")))
	assert.Equal(t, int64(101), ToPaise(decimal.RequireFromString("1.005")), "half paisa rounds up")
	assert.Equal(t, int64(0), ToPaise(decimal.Zero))
}
