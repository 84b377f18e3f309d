package events

import "time"

// Topic names. Each topic has a matching dead letter topic derived by
// DLQTopic. Delivery is at-least-once; handlers must tolerate duplicates.
const (
	NotificationTopic       = "notification.send"
	ForgotPasswordTopic     = "notification.forgot-password"
	OrderStatusChangedTopic = "order.status.changed"
)

func DLQTopic(topic string) string {
	return topic + ".dlq"
}

// NotificationEvent asks the notification service to send an order
// confirmation email. Amount is the whole-unit order total.
type NotificationEvent struct {
	UserID    int64     `json:"user_id"`
	Email     string    `json:"email"`
	Amount    int64     `json:"amount"`
	EventTime time.Time `json:"event_time"`
}

// ForgotPasswordEvent carries the minimum context to render a password
// reset email.
type ForgotPasswordEvent struct {
	UserID    int64     `json:"user_id"`
	Email     string    `json:"email"`
	SecretKey string    `json:"secret_key"`
	EventTime time.Time `json:"event_time"`
}

// OrderStatusChangedEvent reports a payment outcome back toward the order
// service. It is emitted on both success and failure.
type OrderStatusChangedEvent struct {
	OrderID   string    `json:"order_id"`
	Succeeded bool      `json:"succeeded"`
	EventTime time.Time `json:"event_time"`
}
