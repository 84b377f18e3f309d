package payments

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/jogardn/order-fulfillment/pkg/models"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")

	hundred = decimal.NewFromInt(100)
)

type Repository interface {
	Insert(ctx context.Context, payment *models.Payment) error
	GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	UpdateStatus(ctx context.Context, orderID string, status models.PaymentStatus, paidAt time.Time) error
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]models.Payment, error)
}

type PostgresRepository struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewPostgresRepository(db *sql.DB, logger *logrus.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, logger: logger}
}

func (r *PostgresRepository) Insert(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (id, order_id, user_id, amount, status, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query, payment.ID, payment.OrderID, payment.UserID,
		payment.Amount.String(), payment.Status, payment.PaidAt)
	return err
}

func (r *PostgresRepository) GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	var p models.Payment
	var amount string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, order_id, user_id, amount::text, status, paid_at
		FROM payments WHERE order_id = $1
	`, orderID).Scan(&p.ID, &p.OrderID, &p.UserID, &amount, &p.Status, &p.PaidAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, orderID string, status models.PaymentStatus, paidAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = $2, paid_at = $3 WHERE order_id = $1`,
		orderID, status, paidAt)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]models.Payment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, user_id, amount::text, status, paid_at
		FROM payments WHERE user_id = $1
		ORDER BY paid_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		var p models.Payment
		var amount string
		if err := rows.Scan(&p.ID, &p.OrderID, &p.UserID, &amount, &p.Status, &p.PaidAt); err != nil {
			return nil, err
		}
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
