package gateways

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/jogardn/order-fulfillment/internal/circuitbreaker"
	"github.com/jogardn/order-fulfillment/internal/metrics"
)

// OrderClient is consumed by the payment service to fetch order context.
type OrderClient struct {
	client
}

func NewOrderClient(baseURL string, breakers *circuitbreaker.Manager, gm *metrics.GatewayMetrics, logger *logrus.Logger) *OrderClient {
	return &OrderClient{newClient("order-service", baseURL, breakers, gm, logger)}
}

func (c *OrderClient) GetOrderByID(ctx context.Context, id string) (*OrderSummary, error) {
	var summary OrderSummary
	if err := c.doJSON(ctx, http.MethodGet, "/orders/"+id+"/summary", nil, &summary); err != nil {
		return nil, err
	}

	c.logger.WithField("order_id", id).Debug("Fetched order summary from order service")
	return &summary, nil
}

// PaymentClient is consumed by the order service to start a payment as the
// final step of order creation.
type PaymentClient struct {
	client
}

func NewPaymentClient(baseURL string, breakers *circuitbreaker.Manager, gm *metrics.GatewayMetrics, logger *logrus.Logger) *PaymentClient {
	return &PaymentClient{newClient("payment-service", baseURL, breakers, gm, logger)}
}

type PaymentRequest struct {
	OrderID       string `json:"order_id"`
	PaymentMethod string `json:"payment_method"`
	ReturnURL     string `json:"return_url"`
}

type PaymentInitiation struct {
	RedirectURL string `json:"redirect_url"`
}

func (c *PaymentClient) CreatePayment(ctx context.Context, req PaymentRequest) (string, error) {
	var out PaymentInitiation
	if err := c.doJSON(ctx, http.MethodPost, "/payments", req, &out); err != nil {
		return "", err
	}

	c.logger.WithField("order_id", req.OrderID).Info("Payment initiated")
	return out.RedirectURL, nil
}
