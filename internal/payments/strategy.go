package payments

import (
	"context"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/jogardn/order-fulfillment/internal/gateways"
	"github.com/jogardn/order-fulfillment/pkg/models"
)

// Strategy produces the provider-specific redirect URL that starts a
// checkout. Provider protocol details beyond this call contract live
// outside the platform.
type Strategy interface {
	CreatePayment(ctx context.Context, order *gateways.OrderSummary, returnURL string) (string, error)
}

type PaypalStrategy struct {
	checkoutBaseURL string
	logger          *logrus.Logger
}

func NewPaypalStrategy(checkoutBaseURL string, logger *logrus.Logger) *PaypalStrategy {
	return &PaypalStrategy{checkoutBaseURL: checkoutBaseURL, logger: logger}
}

func (s *PaypalStrategy) CreatePayment(ctx context.Context, order *gateways.OrderSummary, returnURL string) (string, error) {
	params := url.Values{}
	params.Set("cmd", "_express-checkout")
	params.Set("order_id", order.ID)
	params.Set("amount", order.TotalPrice.StringFixed(2))
	params.Set("currency", "USD")
	params.Set("return_url", returnURL)

	redirect := s.checkoutBaseURL + "?" + params.Encode()
	s.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"provider": models.MethodPaypal,
	}).Info("Created PayPal checkout redirect")
	return redirect, nil
}

type VnpayStrategy struct {
	checkoutBaseURL string
	terminalCode    string
	logger          *logrus.Logger
}

func NewVnpayStrategy(checkoutBaseURL, terminalCode string, logger *logrus.Logger) *VnpayStrategy {
	return &VnpayStrategy{checkoutBaseURL: checkoutBaseURL, terminalCode: terminalCode, logger: logger}
}

func (s *VnpayStrategy) CreatePayment(ctx context.Context, order *gateways.OrderSummary, returnURL string) (string, error) {
	params := url.Values{}
	params.Set("vnp_TmnCode", s.terminalCode)
	params.Set("vnp_TxnRef", order.ID)
	// VNPay expects the amount in minor units
	params.Set("vnp_Amount", order.TotalPrice.Mul(hundred).StringFixed(0))
	params.Set("vnp_ReturnUrl", returnURL)

	redirect := s.checkoutBaseURL + "?" + params.Encode()
	s.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"provider": models.MethodVnpay,
	}).Info("Created VNPay checkout redirect")
	return redirect, nil
}
