package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
)

// PaymentMethod is a closed set. Unknown method strings are a validation
// error, never a silent no-op.
type PaymentMethod string

const (
	MethodPaypal PaymentMethod = "PAYPAL"
	MethodVnpay  PaymentMethod = "VNPAY"
)

var ErrUnknownPaymentMethod = errors.New("unknown payment method")

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(strings.ToUpper(strings.TrimSpace(s))) {
	case MethodPaypal:
		return MethodPaypal, nil
	case MethodVnpay:
		return MethodVnpay, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, s)
	}
}

type Payment struct {
	ID      string          `json:"id"`
	OrderID string          `json:"order_id"`
	UserID  int64           `json:"user_id"`
	Amount  decimal.Decimal `json:"amount"`
	Status  PaymentStatus   `json:"status"`
	PaidAt  time.Time       `json:"paid_at"`
}
