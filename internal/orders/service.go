package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/jogardn/order-fulfillment/internal/events"
	"github.com/jogardn/order-fulfillment/internal/gateways"
	"github.com/jogardn/order-fulfillment/internal/search"
	"github.com/jogardn/order-fulfillment/pkg/models"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrCreateFailed = errors.New("error while creating order")
	ErrEmptyCart    = errors.New("cart is empty")
)

const codeAttempts = 5

type UserGateway interface {
	GetUserByID(ctx context.Context, id int64) (*gateways.User, error)
}

type CartGateway interface {
	DeleteByIDs(ctx context.Context, ids []gateways.UserAndProductID) error
	Restore(ctx context.Context, lines []gateways.CartLine) error
}

type PaymentGateway interface {
	CreatePayment(ctx context.Context, req gateways.PaymentRequest) (string, error)
}

type ProductGateway interface {
	GetProductsByIDs(ctx context.Context, ids []int64) ([]gateways.Product, error)
}

// Broadcaster feeds the live order dashboard. A nil broadcaster disables
// the feed.
type Broadcaster interface {
	Broadcast(eventType string, data any, source string)
}

type CartItem struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type CreateOrderRequest struct {
	UserID        int64      `json:"user_id"`
	PaymentMethod string     `json:"payment_method"`
	ReturnURL     string     `json:"return_url"`
	CartItems     []CartItem `json:"cart_items"`
}

type Service struct {
	repo     Repository
	users    UserGateway
	carts    CartGateway
	payments PaymentGateway
	products ProductGateway
	feed     Broadcaster
	logger   *logrus.Logger
}

func NewService(repo Repository, users UserGateway, carts CartGateway, payments PaymentGateway, products ProductGateway, feed Broadcaster, logger *logrus.Logger) *Service {
	return &Service{
		repo:     repo,
		users:    users,
		carts:    carts,
		payments: payments,
		products: products,
		feed:     feed,
		logger:   logger,
	}
}

// CreateOrder runs the order-creation saga and returns the payment
// redirect URL. Cart line prices are trusted as-is: price integrity at
// order time is the cart service's responsibility.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (string, error) {
	if len(req.CartItems) == 0 {
		return "", ErrEmptyCart
	}
	if _, err := models.ParsePaymentMethod(req.PaymentMethod); err != nil {
		return "", err
	}

	// Nothing is persisted before the user check, so an unknown user
	// leaves no trace.
	user, err := s.users.GetUserByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, gateways.ErrNotFound) {
			return "", fmt.Errorf("%w: id %d", ErrUserNotFound, req.UserID)
		}
		return "", err
	}

	code, err := s.generateUniqueCode(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}

	now := time.Now()
	order := &models.Order{
		ID:            uuid.New().String(),
		Code:          code,
		UserID:        req.UserID,
		Status:        models.StatusCreated,
		PaymentMethod: strings.ToUpper(req.PaymentMethod),
		TotalPrice:    decimal.Zero,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	details := make([]models.OrderDetail, 0, len(req.CartItems))
	deleteIDs := make([]gateways.UserAndProductID, 0, len(req.CartItems))
	restoreLines := make([]gateways.CartLine, 0, len(req.CartItems))
	total := decimal.Zero
	for _, item := range req.CartItems {
		detail := models.OrderDetail{
			OrderID:            order.ID,
			ProductID:          item.ProductID,
			Quantity:           item.Quantity,
			ReturnableQuantity: item.Quantity,
			UnitPrice:          item.UnitPrice,
		}
		detail.TotalPrice = detail.LineTotal()
		total = total.Add(detail.TotalPrice)
		details = append(details, detail)

		deleteIDs = append(deleteIDs, gateways.UserAndProductID{UserID: req.UserID, ProductID: item.ProductID})
		restoreLines = append(restoreLines, gateways.CartLine{
			UserID:    req.UserID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	var redirectURL string
	creation := &saga{
		orderID: order.ID,
		repo:    s.repo,
		logger:  s.logger,
		steps: []sagaStep{
			{
				name: "persist-order",
				run: func(ctx context.Context) error {
					return s.repo.CreateDraft(ctx, order)
				},
				compensate: func(ctx context.Context) error {
					return s.repo.ChangeStatus(ctx, order.ID, models.StatusCancel, nil)
				},
			},
			{
				name: "persist-details",
				run: func(ctx context.Context) error {
					return s.repo.SaveDetails(ctx, order.ID, details, total)
				},
			},
			{
				name: "delete-cart-lines",
				run: func(ctx context.Context) error {
					return s.carts.DeleteByIDs(ctx, deleteIDs)
				},
				compensate: func(ctx context.Context) error {
					return s.carts.Restore(ctx, restoreLines)
				},
			},
			{
				name: "request-payment",
				run: func(ctx context.Context) error {
					var err error
					redirectURL, err = s.payments.CreatePayment(ctx, gateways.PaymentRequest{
						OrderID:       order.ID,
						PaymentMethod: order.PaymentMethod,
						ReturnURL:     req.ReturnURL,
					})
					return err
				},
			},
		},
	}

	if err := creation.execute(ctx); err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Error("Order creation failed")
		return "", fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":    order.ID,
		"order_code":  order.Code,
		"user_id":     order.UserID,
		"total_price": total.String(),
		"items_count": len(details),
	}).Info("Order created successfully")

	if s.feed != nil {
		order.TotalPrice = total
		order.Details = details
		s.feed.Broadcast("order_created", order, "order-service")
	}

	productIDs := make([]int64, 0, len(req.CartItems))
	for _, item := range req.CartItems {
		productIDs = append(productIDs, item.ProductID)
	}
	s.refreshReadModels(ctx, user, productIDs)

	return redirectURL, nil
}

// refreshReadModels keeps the local customer and product projections the
// search joins rely on in sync with the owning services. The order is
// already committed, so failures here only log.
func (s *Service) refreshReadModels(ctx context.Context, user *gateways.User, productIDs []int64) {
	if err := s.repo.UpsertCustomer(ctx, *user); err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Warn("Customer read model refresh failed")
	}

	if s.products == nil {
		return
	}
	products, err := s.products.GetProductsByIDs(ctx, productIDs)
	if err != nil {
		s.logger.WithError(err).Warn("Product lookup for read model failed")
		return
	}
	if err := s.repo.UpsertProducts(ctx, products); err != nil {
		s.logger.WithError(err).Warn("Product read model refresh failed")
	}
}

// generateUniqueCode retries until the code is unused; collisions are
// checked against the store.
func (s *Service) generateUniqueCode(ctx context.Context) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code := "ORD-" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:10])
		exists, err := s.repo.ExistsByCode(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", errors.New("could not generate a unique order code")
}

func (s *Service) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) FindByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	return s.repo.FindByUserID(ctx, userID)
}

func (s *Service) DeleteOrder(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// OrderSummary assembles the order context consumed by the payment
// service, enriched with the owner's email from the user service.
func (s *Service) OrderSummary(ctx context.Context, id string) (*gateways.OrderSummary, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, order.UserID)
	if err != nil {
		return nil, err
	}

	return &gateways.OrderSummary{
		ID:         order.ID,
		UserID:     order.UserID,
		Email:      user.Email,
		TotalPrice: order.TotalPrice,
		Status:     order.Status,
		Details:    order.Details,
	}, nil
}

// ChangeStatus applies the forward-only transition rule. Completing an
// order generates one feedback request per detail line in the same unit of
// work as the status update.
func (s *Service) ChangeStatus(ctx context.Context, id string, target models.OrderStatus) (*models.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := order.Status.CanTransition(target); err != nil {
		return nil, err
	}

	var feedback []models.Feedback
	if target == models.StatusComplete {
		now := time.Now()
		for _, detail := range order.Details {
			feedback = append(feedback, models.Feedback{
				ID:        uuid.New().String(),
				OrderID:   order.ID,
				ProductID: detail.ProductID,
				CreatedAt: now,
			})
		}
	}

	if err := s.repo.ChangeStatus(ctx, id, target, feedback); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":    id,
		"from_status": order.Status,
		"to_status":   target,
	}).Info("Order status changed")

	order.Status = target
	if s.feed != nil {
		s.feed.Broadcast("order_status_changed", order, "order-service")
	}
	return order, nil
}

// Search folds the search body into one predicate and runs the paginated
// fetch. Execution failures surface as the uniform query error; callers
// never see the underlying cause.
func (s *Service) Search(ctx context.Context, body models.SearchBody) (*models.OrderPage, error) {
	query, err := search.Build(body)
	if err != nil {
		return nil, err
	}

	orders, total, err := s.repo.Search(ctx, query)
	if err != nil {
		s.logger.WithError(err).Error("Order search failed")
		return nil, search.ErrQueryFailed
	}

	return &models.OrderPage{
		Orders:     orders,
		TotalCount: total,
		Page:       body.Page,
		Limit:      body.Limit,
	}, nil
}

// Handle consumes order.status.changed events: a successful payment moves
// the order to pending, a failed one cancels it. Duplicate deliveries are
// tolerated by checking the current status first.
func (s *Service) Handle(topic string, payload []byte) error {
	if topic != events.OrderStatusChangedTopic {
		s.logger.WithField("topic", topic).Warn("Unknown topic received")
		return nil
	}

	var event events.OrderStatusChangedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to unmarshal order status changed event: %w", err)
	}

	target := models.StatusPending
	if !event.Succeeded {
		target = models.StatusCancel
	}

	ctx := context.Background()
	order, err := s.repo.GetByID(ctx, event.OrderID)
	if err != nil {
		return err
	}
	if order.Status == target {
		return nil
	}

	_, err = s.ChangeStatus(ctx, event.OrderID, target)
	return err
}

// IsRetryable treats transition conflicts and missing orders as permanent;
// everything else (store or gateway trouble) is worth retrying.
func (s *Service) IsRetryable(err error) bool {
	return !errors.Is(err, models.ErrInvalidTransition) && !errors.Is(err, ErrOrderNotFound)
}
