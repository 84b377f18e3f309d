package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/jogardn/order-fulfillment/internal/gateways"
	"github.com/jogardn/order-fulfillment/internal/search"
	"github.com/jogardn/order-fulfillment/pkg/models"
)

var ErrOrderNotFound = errors.New("order not found")

type Repository interface {
	CreateDraft(ctx context.Context, order *models.Order) error
	SaveDetails(ctx context.Context, orderID string, details []models.OrderDetail, total decimal.Decimal) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	FindByUserID(ctx context.Context, userID int64) ([]models.Order, error)
	Search(ctx context.Context, q *search.Query) ([]models.Order, int, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	ChangeStatus(ctx context.Context, id string, status models.OrderStatus, feedback []models.Feedback) error
	Delete(ctx context.Context, id string) error
	RecordSagaStep(ctx context.Context, orderID, step, state string) error
	UpsertCustomer(ctx context.Context, user gateways.User) error
	UpsertProducts(ctx context.Context, products []gateways.Product) error
}

type PostgresRepository struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewPostgresRepository(db *sql.DB, logger *logrus.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, logger: logger}
}

func (r *PostgresRepository) CreateDraft(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (id, code, user_id, status, payment_method, total_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`
	_, err := r.db.ExecContext(ctx, query, order.ID, order.Code, order.UserID,
		order.Status, order.PaymentMethod, order.TotalPrice.String(), order.CreatedAt)
	return err
}

// SaveDetails persists the detail lines and the derived total in one
// transaction. The total is not re-derived after this point.
func (r *PostgresRepository) SaveDetails(ctx context.Context, orderID string, details []models.OrderDetail, total decimal.Decimal) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, d := range details {
		query := `
			INSERT INTO order_details (order_id, product_id, quantity, returnable_quantity, unit_price, total_price)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		if _, err := tx.ExecContext(ctx, query, orderID, d.ProductID, d.Quantity,
			d.ReturnableQuantity, d.UnitPrice.String(), d.TotalPrice.String()); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET total_price = $2, updated_at = $3 WHERE id = $1`,
		orderID, total.String(), time.Now()); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	order, err := r.scanOrder(r.db.QueryRowContext(ctx, `
		SELECT id, code, user_id, status, payment_method, total_price::text, created_at, updated_at
		FROM orders WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	details, err := r.getDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Details = details
	return order, nil
}

func (r *PostgresRepository) getDetails(ctx context.Context, orderID string) ([]models.OrderDetail, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, product_id, quantity, returnable_quantity, unit_price::text, total_price::text
		FROM order_details WHERE order_id = $1
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []models.OrderDetail
	for rows.Next() {
		var d models.OrderDetail
		var unitPrice, totalPrice string
		if err := rows.Scan(&d.OrderID, &d.ProductID, &d.Quantity, &d.ReturnableQuantity, &unitPrice, &totalPrice); err != nil {
			return nil, err
		}
		if d.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			return nil, err
		}
		if d.TotalPrice, err = decimal.NewFromString(totalPrice); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

func (r *PostgresRepository) FindByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, code, user_id, status, payment_method, total_price::text, created_at, updated_at
		FROM orders WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collectOrders(rows)
}

func (r *PostgresRepository) Search(ctx context.Context, q *search.Query) ([]models.Order, int, error) {
	where := ""
	if q.Where != "" {
		where = " WHERE " + q.Where
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM orders o" + where
	if err := r.db.QueryRowContext(ctx, countQuery, q.Args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	pageQuery := fmt.Sprintf(`
		SELECT o.id, o.code, o.user_id, o.status, o.payment_method, o.total_price::text, o.created_at, o.updated_at
		FROM orders o%s
		ORDER BY %s
		LIMIT %d OFFSET %d
	`, where, q.OrderBy, q.Limit, q.Offset)

	rows, err := r.db.QueryContext(ctx, pageQuery, q.Args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	orders, err := r.collectOrders(rows)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *PostgresRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE code = $1)`, code).Scan(&exists)
	return exists, err
}

// ChangeStatus persists the new status and any feedback records as one
// unit of work, so a completion never loses its feedback requests.
func (r *PostgresRepository) ChangeStatus(ctx context.Context, id string, status models.OrderStatus, feedback []models.Feedback) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, f := range feedback {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO feedback_requests (id, order_id, product_id, created_at)
			VALUES ($1, $2, $3, $4)
		`, f.ID, f.OrderID, f.ProductID, f.CreatedAt); err != nil {
			return err
		}
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, time.Now())
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}

	return tx.Commit()
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	// order_details and feedback cascade via foreign keys
	result, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *PostgresRepository) RecordSagaStep(ctx context.Context, orderID, step, state string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO order_saga_steps (order_id, step, state, created_at)
		VALUES ($1, $2, $3, $4)
	`, orderID, step, state, time.Now())
	return err
}

// UpsertCustomer refreshes the customer read model the search engine
// joins against. The row mirrors the user service and carries no local
// state of its own.
func (r *PostgresRepository) UpsertCustomer(ctx context.Context, user gateways.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO customers (id, account_name, email, phone_number)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET account_name = EXCLUDED.account_name,
		    email = EXCLUDED.email,
		    phone_number = EXCLUDED.phone_number
	`, user.ID, user.AccountName, user.Email, user.PhoneNumber)
	return err
}

// UpsertProducts refreshes the product-name read model.
func (r *PostgresRepository) UpsertProducts(ctx context.Context, products []gateways.Product) error {
	for _, p := range products {
		if _, err := r.db.ExecContext(ctx, `
			INSERT INTO products (id, name)
			VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
		`, p.ID, p.Name); err != nil {
			return err
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepository) scanOrder(row rowScanner) (*models.Order, error) {
	var o models.Order
	var total string
	if err := row.Scan(&o.ID, &o.Code, &o.UserID, &o.Status, &o.PaymentMethod,
		&total, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if o.TotalPrice, err = decimal.NewFromString(total); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *PostgresRepository) collectOrders(rows *sql.Rows) ([]models.Order, error) {
	var orders []models.Order
	for rows.Next() {
		order, err := r.scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}
