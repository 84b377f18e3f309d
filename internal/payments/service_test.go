package payments

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jogardn/order-fulfillment/internal/events"
	"github.com/jogardn/order-fulfillment/internal/gateways"
	"github.com/jogardn/order-fulfillment/pkg/models"
)

type fakePaymentRepo struct {
	payments map[string]*models.Payment
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: make(map[string]*models.Payment)}
}

func (r *fakePaymentRepo) Insert(ctx context.Context, payment *models.Payment) error {
	copied := *payment
	r.payments[payment.OrderID] = &copied
	return nil
}

func (r *fakePaymentRepo) GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	payment, ok := r.payments[orderID]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	copied := *payment
	return &copied, nil
}

func (r *fakePaymentRepo) UpdateStatus(ctx context.Context, orderID string, status models.PaymentStatus, paidAt time.Time) error {
	payment, ok := r.payments[orderID]
	if !ok {
		return ErrPaymentNotFound
	}
	payment.Status = status
	payment.PaidAt = paidAt
	return nil
}

func (r *fakePaymentRepo) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]models.Payment, error) {
	var out []models.Payment
	for _, p := range r.payments {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

type fakeOrderGateway struct {
	orders map[string]*gateways.OrderSummary
}

func (f *fakeOrderGateway) GetOrderByID(ctx context.Context, id string) (*gateways.OrderSummary, error) {
	if order, ok := f.orders[id]; ok {
		return order, nil
	}
	return nil, gateways.ErrNotFound
}

type fakePublisher struct {
	notifications  []events.NotificationEvent
	statusChanges  []events.OrderStatusChangedEvent
	notifyErr      error
	statusChainErr error
}

func (f *fakePublisher) PublishNotification(event events.NotificationEvent) error {
	if f.notifyErr != nil {
		return f.notifyErr
	}
	f.notifications = append(f.notifications, event)
	return nil
}

func (f *fakePublisher) PublishOrderStatusChanged(event events.OrderStatusChangedEvent) error {
	if f.statusChainErr != nil {
		return f.statusChainErr
	}
	f.statusChanges = append(f.statusChanges, event)
	return nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func newTestPaymentService() (*Service, *fakePaymentRepo, *fakePublisher) {
	repo := newFakePaymentRepo()
	orders := &fakeOrderGateway{orders: map[string]*gateways.OrderSummary{
		"order-1": {
			ID:         "order-1",
			UserID:     1,
			Email:      "alice@example.com",
			TotalPrice: decimal.RequireFromString("74.98"),
			Status:     models.StatusCreated,
		},
	}}
	publisher := &fakePublisher{}
	logger := quietLogger()

	paypal := NewPaypalStrategy("https://paypal.example.com/checkout", logger)
	vnpay := NewVnpayStrategy("https://vnpay.example.com/pay", "TESTCODE", logger)
	service := NewService(repo, orders, publisher, paypal, vnpay, logger)
	return service, repo, publisher
}

func TestInitiatePaypal(t *testing.T) {
	service, _, _ := newTestPaymentService()

	redirect, err := service.Initiate(context.Background(), "order-1", "paypal", "https://shop.example.com/return")
	require.NoError(t, err)
	assert.Contains(t, redirect, "https://paypal.example.com/checkout?")
	assert.Contains(t, redirect, "amount=74.98")
	assert.Contains(t, redirect, "order_id=order-1")
}

func TestInitiateVnpayUsesMinorUnits(t *testing.T) {
	service, _, _ := newTestPaymentService()

	redirect, err := service.Initiate(context.Background(), "order-1", "VNPAY", "https://shop.example.com/return")
	require.NoError(t, err)
	assert.Contains(t, redirect, "https://vnpay.example.com/pay?")
	assert.Contains(t, redirect, "vnp_Amount=7498")
	assert.Contains(t, redirect, "vnp_TmnCode=TESTCODE")
}

func TestInitiateUnknownMethod(t *testing.T) {
	service, _, _ := newTestPaymentService()

	_, err := service.Initiate(context.Background(), "order-1", "bitcoin", "")
	assert.ErrorIs(t, err, models.ErrUnknownPaymentMethod)
}

func TestInitiateUnknownOrder(t *testing.T) {
	service, _, _ := newTestPaymentService()

	_, err := service.Initiate(context.Background(), "missing", "paypal", "")
	assert.ErrorIs(t, err, gateways.ErrNotFound)
}

func TestRecordPending(t *testing.T) {
	service, repo, _ := newTestPaymentService()

	payment, err := service.RecordPending(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, payment.Status)
	assert.Equal(t, int64(1), payment.UserID)
	assert.True(t, payment.Amount.Equal(decimal.RequireFromString("74.98")))
	assert.NotEmpty(t, payment.ID)

	stored, err := repo.GetByOrderID(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, stored.Status)
}

func TestConfirmSuccessEmitsBothEvents(t *testing.T) {
	service, repo, publisher := newTestPaymentService()

	_, err := service.RecordPending(context.Background(), "order-1")
	require.NoError(t, err)

	require.NoError(t, service.Confirm(context.Background(), "order-1", true))

	stored, err := repo.GetByOrderID(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, stored.Status)

	require.Len(t, publisher.notifications, 1)
	assert.Equal(t, "alice@example.com", publisher.notifications[0].Email)
	assert.Equal(t, int64(74), publisher.notifications[0].Amount)

	require.Len(t, publisher.statusChanges, 1)
	assert.True(t, publisher.statusChanges[0].Succeeded)
	assert.Equal(t, "order-1", publisher.statusChanges[0].OrderID)
}

func TestConfirmFailureSkipsNotification(t *testing.T) {
	service, repo, publisher := newTestPaymentService()

	_, err := service.RecordPending(context.Background(), "order-1")
	require.NoError(t, err)

	require.NoError(t, service.Confirm(context.Background(), "order-1", false))

	stored, err := repo.GetByOrderID(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, stored.Status)

	assert.Empty(t, publisher.notifications, "no confirmation email for a failed payment")
	require.Len(t, publisher.statusChanges, 1)
	assert.False(t, publisher.statusChanges[0].Succeeded)
}

func TestConfirmUnknownPayment(t *testing.T) {
	service, _, publisher := newTestPaymentService()

	err := service.Confirm(context.Background(), "order-1", true)
	assert.ErrorIs(t, err, ErrPaymentNotFound)
	assert.Empty(t, publisher.statusChanges)
}

func TestConfirmPublishFailureDoesNotFailConfirmation(t *testing.T) {
	service, repo, publisher := newTestPaymentService()
	publisher.notifyErr = assert.AnError
	publisher.statusChainErr = assert.AnError

	_, err := service.RecordPending(context.Background(), "order-1")
	require.NoError(t, err)

	require.NoError(t, service.Confirm(context.Background(), "order-1", true),
		"publish trouble is logged, not surfaced")

	stored, err := repo.GetByOrderID(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, stored.Status)
}

func TestListByUserValidatesPaging(t *testing.T) {
	service, _, _ := newTestPaymentService()

	_, err := service.ListByUser(context.Background(), 1, 0, 10)
	assert.Error(t, err)

	_, err = service.ListByUser(context.Background(), 1, 1, 0)
	assert.Error(t, err)
}
