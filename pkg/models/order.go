package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus values form a fixed total order. Transitions may only move
// forward along the rank, except Cancel which is reachable from any live
// state and is terminal once entered.
type OrderStatus string

const (
	StatusCreated    OrderStatus = "created"
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipping   OrderStatus = "shipping"
	StatusDelivered  OrderStatus = "delivered"
	StatusComplete   OrderStatus = "complete"
	StatusCancel     OrderStatus = "cancel"
)

var statusRank = map[OrderStatus]int{
	StatusCreated:    0,
	StatusPending:    1,
	StatusProcessing: 2,
	StatusShipping:   3,
	StatusDelivered:  4,
	StatusComplete:   5,
	StatusCancel:     6,
}

var ErrInvalidTransition = errors.New("invalid status transition")

func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(s)
	if _, ok := statusRank[status]; !ok {
		return "", fmt.Errorf("unknown order status %q", s)
	}
	return status, nil
}

func (s OrderStatus) Rank() int {
	return statusRank[s]
}

// CanTransition reports whether an order in status s may move to target.
// The error names both statuses so callers can surface it directly.
func (s OrderStatus) CanTransition(target OrderStatus) error {
	if _, ok := statusRank[target]; !ok {
		return fmt.Errorf("unknown order status %q", string(target))
	}
	if s == StatusCancel {
		return fmt.Errorf("%w: order is cancelled, cannot change to %s", ErrInvalidTransition, target)
	}
	if statusRank[target] < statusRank[s] {
		return fmt.Errorf("%w: cannot change status from %s to %s", ErrInvalidTransition, s, target)
	}
	return nil
}

type Order struct {
	ID            string          `json:"id"`
	Code          string          `json:"code"`
	UserID        int64           `json:"user_id"`
	Status        OrderStatus     `json:"status"`
	PaymentMethod string          `json:"payment_method"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	Details       []OrderDetail   `json:"details,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// OrderDetail is identified by (OrderID, ProductID) and has no lifecycle of
// its own; deleting the order cascades to its details.
type OrderDetail struct {
	OrderID            string          `json:"order_id"`
	ProductID          int64           `json:"product_id"`
	Quantity           int             `json:"quantity"`
	ReturnableQuantity int             `json:"returnable_quantity"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	TotalPrice         decimal.Decimal `json:"total_price"`
}

func (d OrderDetail) LineTotal() decimal.Decimal {
	return d.UnitPrice.Mul(decimal.NewFromInt(int64(d.Quantity)))
}

// Feedback is requested once per order detail line when an order completes.
type Feedback struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	ProductID int64     `json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}
