package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jogardn/order-fulfillment/internal/events"
	"github.com/jogardn/order-fulfillment/internal/gateways"
	"github.com/jogardn/order-fulfillment/pkg/models"
)

type OrderGateway interface {
	GetOrderByID(ctx context.Context, id string) (*gateways.OrderSummary, error)
}

// Publisher is the producer side of the event bus. Publishing is
// fire-and-forget for the confirming caller; failures are logged here.
type Publisher interface {
	PublishNotification(event events.NotificationEvent) error
	PublishOrderStatusChanged(event events.OrderStatusChangedEvent) error
}

type Service struct {
	repo       Repository
	orders     OrderGateway
	publisher  Publisher
	strategies map[models.PaymentMethod]Strategy
	logger     *logrus.Logger
}

func NewService(repo Repository, orders OrderGateway, publisher Publisher, paypal, vnpay Strategy, logger *logrus.Logger) *Service {
	return &Service{
		repo:      repo,
		orders:    orders,
		publisher: publisher,
		strategies: map[models.PaymentMethod]Strategy{
			models.MethodPaypal: paypal,
			models.MethodVnpay:  vnpay,
		},
		logger: logger,
	}
}

// Initiate fetches the order context and dispatches to the matching
// payment strategy. Method dispatch is exhaustive over the closed set;
// an unknown method is a validation error, not a silent no-op.
func (s *Service) Initiate(ctx context.Context, orderID, paymentMethod, returnURL string) (string, error) {
	method, err := models.ParsePaymentMethod(paymentMethod)
	if err != nil {
		return "", err
	}

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return "", err
	}

	strategy, ok := s.strategies[method]
	if !ok {
		return "", fmt.Errorf("%w: %q", models.ErrUnknownPaymentMethod, paymentMethod)
	}

	redirect, err := strategy.CreatePayment(ctx, order, returnURL)
	if err != nil {
		return "", fmt.Errorf("payment initiation failed: %w", err)
	}
	return redirect, nil
}

// RecordPending creates the PENDING payment row by re-fetching the order
// context. This is how the order/payment linkage is established; the
// order's existence is the order service's responsibility, not enforced
// here.
func (s *Service) RecordPending(ctx context.Context, orderID string) (*models.Payment, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		ID:      uuid.New().String(),
		OrderID: orderID,
		UserID:  order.UserID,
		Amount:  order.TotalPrice,
		Status:  models.PaymentPending,
		PaidAt:  time.Now(),
	}

	if err := s.repo.Insert(ctx, payment); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"order_id":   orderID,
		"amount":     payment.Amount.String(),
	}).Info("Pending payment recorded")
	return payment, nil
}

// Confirm settles the payment and propagates the outcome. A successful
// confirmation emits exactly one send-notification event; the
// order-status-changed event is emitted regardless of the outcome. Event
// ordering between the two is not guaranteed.
func (s *Service) Confirm(ctx context.Context, orderID string, succeeded bool) error {
	status := models.PaymentFailed
	if succeeded {
		status = models.PaymentCompleted
	}

	if err := s.repo.UpdateStatus(ctx, orderID, status, time.Now()); err != nil {
		return err
	}

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}

	if succeeded {
		if err := s.publisher.PublishNotification(events.NotificationEvent{
			UserID: order.UserID,
			Email:  order.Email,
			Amount: order.TotalPrice.IntPart(),
		}); err != nil {
			s.logger.WithError(err).WithField("order_id", orderID).Error("Failed to publish notification event")
		}
	}

	if err := s.publisher.PublishOrderStatusChanged(events.OrderStatusChangedEvent{
		OrderID:   orderID,
		Succeeded: succeeded,
	}); err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Error("Failed to publish order status changed event")
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":  orderID,
		"succeeded": succeeded,
		"status":    status,
	}).Info("Payment confirmed")
	return nil
}

func (s *Service) GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	return s.repo.GetByOrderID(ctx, orderID)
}

// ListByUser pages through a user's payments. Page is 1-based.
func (s *Service) ListByUser(ctx context.Context, userID int64, page, limit int) ([]models.Payment, error) {
	if page < 1 || limit < 1 {
		return nil, errors.New("page and limit must be positive")
	}
	return s.repo.ListByUser(ctx, userID, limit, (page-1)*limit)
}
