package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jogardn/order-fulfillment/internal/events"
)

// Dispatcher consumes the notification topics and turns events into
// emails. Handler errors propagate to the consumer so failed sends are
// retried and eventually dead-lettered instead of being dropped.
type Dispatcher struct {
	mailer Mailer
	logger *logrus.Logger
}

func NewDispatcher(mailer Mailer, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{mailer: mailer, logger: logger}
}

func (d *Dispatcher) Topics() []string {
	return []string{events.NotificationTopic, events.ForgotPasswordTopic}
}

func (d *Dispatcher) Handle(topic string, payload []byte) error {
	switch topic {
	case events.NotificationTopic:
		var event events.NotificationEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return fmt.Errorf("failed to unmarshal notification event: %w", err)
		}
		return d.sendOrderConfirmation(event)

	case events.ForgotPasswordTopic:
		var event events.ForgotPasswordEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return fmt.Errorf("failed to unmarshal forgot password event: %w", err)
		}
		return d.sendForgotPassword(event)

	default:
		d.logger.WithField("topic", topic).Warn("Unknown topic received")
		return nil
	}
}

// IsRetryable: malformed payloads can never succeed; delivery trouble can.
func (d *Dispatcher) IsRetryable(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return !errors.As(err, &syntaxErr) && !errors.As(err, &typeErr)
}

func (d *Dispatcher) sendOrderConfirmation(event events.NotificationEvent) error {
	d.logger.WithFields(logrus.Fields{
		"user_id": event.UserID,
		"email":   event.Email,
		"amount":  event.Amount,
	}).Info("Processing order confirmation notification")

	subject := "Your order has been confirmed"
	body := fmt.Sprintf(
		"Hello,\n\nYour payment of %d was received and your order is confirmed.\n\nThank you for shopping with us.",
		event.Amount)

	return d.mailer.Send(context.Background(), event.Email, subject, body)
}

func (d *Dispatcher) sendForgotPassword(event events.ForgotPasswordEvent) error {
	d.logger.WithFields(logrus.Fields{
		"user_id": event.UserID,
		"email":   event.Email,
	}).Info("Processing forgot password notification")

	subject := "Password reset request"
	body := fmt.Sprintf(
		"Hello,\n\nUse this code to reset your password: %s\n\nIf you did not request a reset, ignore this email.",
		event.SecretKey)

	return d.mailer.Send(context.Background(), event.Email, subject, body)
}
