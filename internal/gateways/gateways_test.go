package gateways

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jogardn/order-fulfillment/internal/circuitbreaker"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func newBreakers() *circuitbreaker.Manager {
	return circuitbreaker.NewManager(testLogger())
}

func TestGetUserByID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/1", r.URL.Path)
		json.NewEncoder(w).Encode(User{ID: 1, AccountName: "alice", Email: "alice@example.com"})
	}))
	defer server.Close()

	client := NewUserClient(server.URL, newBreakers(), nil, testLogger())
	user, err := client.GetUserByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.AccountName)
	assert.Equal(t, "alice@example.com", user.Email)
}

func TestGetUserByIDNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewUserClient(server.URL, newBreakers(), nil, testLogger())
	_, err := client.GetUserByID(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServerErrorMapsToUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewUserClient(server.URL, newBreakers(), nil, testLogger())
	_, err := client.GetUserByID(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewUserClient(server.URL, newBreakers(), nil, testLogger())

	// The shared gateway config opens after 5 consecutive failures.
	for i := 0; i < 5; i++ {
		_, err := client.GetUserByID(context.Background(), 1)
		assert.ErrorIs(t, err, ErrUnavailable)
	}

	_, err := client.GetUserByID(context.Background(), 1)
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitBreakerOpen)
}

func TestNotFoundDoesNotOpenBreaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewUserClient(server.URL, newBreakers(), nil, testLogger())

	// A missing resource is a valid answer from a healthy remote; it must
	// keep mapping to ErrNotFound instead of tripping the breaker.
	for i := 0; i < 10; i++ {
		_, err := client.GetUserByID(context.Background(), 1)
		require.ErrorIs(t, err, ErrNotFound)
	}
}

func TestClientErrorDoesNotOpenBreaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewUserClient(server.URL, newBreakers(), nil, testLogger())

	// A 4xx is an answer from a healthy remote; it surfaces as an error
	// but must never trip the breaker.
	for i := 0; i < 10; i++ {
		_, err := client.GetUserByID(context.Background(), 1)
		require.Error(t, err)
		require.NotErrorIs(t, err, circuitbreaker.ErrCircuitBreakerOpen)
		require.NotErrorIs(t, err, ErrUnavailable)
	}
}

func TestCartDeleteAndRestore(t *testing.T) {
	var gotDelete []UserAndProductID
	var gotRestore []CartLine

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/carts/delete":
			json.NewDecoder(r.Body).Decode(&gotDelete)
		case "/carts/restore":
			json.NewDecoder(r.Body).Decode(&gotRestore)
		default:
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]bool{"success": true})
	}))
	defer server.Close()

	client := NewCartClient(server.URL, newBreakers(), nil, testLogger())

	err := client.DeleteByIDs(context.Background(), []UserAndProductID{{UserID: 1, ProductID: 100}})
	require.NoError(t, err)
	require.Len(t, gotDelete, 1)
	assert.Equal(t, int64(100), gotDelete[0].ProductID)

	err = client.Restore(context.Background(), []CartLine{
		{UserID: 1, ProductID: 100, Quantity: 2, UnitPrice: decimal.RequireFromString("19.99")},
	})
	require.NoError(t, err)
	require.Len(t, gotRestore, 1)
	assert.Equal(t, 2, gotRestore[0].Quantity)
}

func TestGetOrderSummary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/order-1/summary", r.URL.Path)
		json.NewEncoder(w).Encode(OrderSummary{
			ID:         "order-1",
			UserID:     1,
			Email:      "alice@example.com",
			TotalPrice: decimal.RequireFromString("74.98"),
		})
	}))
	defer server.Close()

	client := NewOrderClient(server.URL, newBreakers(), nil, testLogger())
	summary, err := client.GetOrderByID(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, "order-1", summary.ID)
	assert.True(t, summary.TotalPrice.Equal(decimal.RequireFromString("74.98")))
}

func TestCreatePayment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req PaymentRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "PAYPAL", req.PaymentMethod)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(PaymentInitiation{RedirectURL: "https://pay.example.com/x"})
	}))
	defer server.Close()

	client := NewPaymentClient(server.URL, newBreakers(), nil, testLogger())
	redirect, err := client.CreatePayment(context.Background(), PaymentRequest{
		OrderID:       "order-1",
		PaymentMethod: "PAYPAL",
		ReturnURL:     "https://shop.example.com/return",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/x", redirect)
}
