package gateways

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/jogardn/order-fulfillment/internal/circuitbreaker"
	"github.com/jogardn/order-fulfillment/internal/metrics"
	"github.com/jogardn/order-fulfillment/pkg/models"
)

// Collaborator DTOs. These are the narrow contracts the platform consumes;
// anything else the remote services expose is ignored.

type User struct {
	ID          int64  `json:"id"`
	AccountName string `json:"account_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
}

type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
}

type CartLine struct {
	UserID    int64           `json:"user_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type UserAndProductID struct {
	UserID    int64 `json:"user_id"`
	ProductID int64 `json:"product_id"`
}

// OrderSummary is the order context the payment service fetches from the
// order service.
type OrderSummary struct {
	ID         string               `json:"id"`
	UserID     int64                `json:"user_id"`
	Email      string               `json:"email"`
	TotalPrice decimal.Decimal      `json:"total_price"`
	Status     models.OrderStatus   `json:"status"`
	Details    []models.OrderDetail `json:"details"`
}

var (
	ErrNotFound    = errors.New("resource not found")
	ErrUnavailable = errors.New("remote dependency unavailable")
)

// client is the shared HTTP plumbing behind every gateway: explicit
// timeout, JSON codec, not-found mapping, and a circuit breaker per
// gateway name.
type client struct {
	name       string
	baseURL    string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	metrics    *metrics.GatewayMetrics
	logger     *logrus.Logger
}

func newClient(name, baseURL string, breakers *circuitbreaker.Manager, gm *metrics.GatewayMetrics, logger *logrus.Logger) client {
	return client{
		name:    name,
		baseURL: baseURL,
		metrics: gm,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		breaker: breakers.GetOrCreate(name, circuitbreaker.Config{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
			MaxRequests: 2,
		}),
		logger: logger,
	}
}

// doJSON issues the request through the circuit breaker. Only transport
// failures and 5xx count against the breaker; any 4xx is an answer from a
// healthy remote, with 404 mapped to ErrNotFound.
func (c client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var notFound bool
	var clientErr error
	err := c.breaker.Execute(func() error {
		var reqBody *bytes.Buffer
		if body != nil {
			data, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("failed to marshal %s request: %w", c.name, err)
			}
			reqBody = bytes.NewBuffer(data)
		} else {
			reqBody = &bytes.Buffer{}
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
		if err != nil {
			return fmt.Errorf("failed to create %s request: %w", c.name, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.WithError(err).WithField("gateway", c.name).Error("Gateway call failed")
			return fmt.Errorf("%w: %s: %v", ErrUnavailable, c.name, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			notFound = true
			return nil
		case resp.StatusCode >= 500:
			return fmt.Errorf("%w: %s returned status %d", ErrUnavailable, c.name, resp.StatusCode)
		case resp.StatusCode >= 400:
			clientErr = fmt.Errorf("%s returned status %d", c.name, resp.StatusCode)
			return nil
		}

		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("failed to decode %s response: %w", c.name, err)
			}
		}
		return nil
	})
	if err != nil {
		if c.metrics != nil {
			c.metrics.Failures.WithLabelValues(c.name).Inc()
		}
		return err
	}
	if notFound {
		return fmt.Errorf("%w: %s%s", ErrNotFound, c.name, path)
	}
	return clientErr
}
