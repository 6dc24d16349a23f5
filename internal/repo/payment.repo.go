package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"diggin-checkout/internal/domain"
)

type PaymentRepo interface {
	CreatePayment(ctx context.Context, tx *sql.Tx, payment *domain.Payment) error
	// FindByGatewayOrderID returns nil, nil when no audit entry exists.
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Payment, error)
	// MarkPaid records the settlement. A second call with the same gateway
	// payment id is a no-op; a different payment id never overwrites a paid
	// entry. paid_at keeps its first value.
	MarkPaid(ctx context.Context, tx *sql.Tx, s domain.Settlement) (bool, error)
	MarkFailed(ctx context.Context, tx *sql.Tx, gatewayOrderID string) (bool, error)
	FindPendingBefore(ctx context.Context, before time.Time, limit int) ([]domain.Payment, error)
}

type paymentRepo struct {
	db *sql.DB
}

func NewPaymentRepo(db *sql.DB) PaymentRepo {
	return &paymentRepo{db: db}
}

const paymentColumns = `id, reference_id, reference_type, owner_id, amount, currency, payment_status,
	payment_method, gateway_order_id, gateway_payment_id, gateway_signature, paid_at, created_at, updated_at`

func (r *paymentRepo) CreatePayment(ctx context.Context, tx *sql.Tx, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (id, reference_id, reference_type, owner_id, amount, currency,
			payment_status, gateway_order_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := conn(r.db, tx).ExecContext(
		ctx, query, payment.ID, payment.ReferenceID, payment.ReferenceType, payment.OwnerID,
		payment.Amount, payment.Currency, payment.Status, payment.GatewayOrderID,
		payment.CreatedAt, payment.UpdatedAt,
	)
	return err
}

func (r *paymentRepo) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+paymentColumns+" FROM payments WHERE gateway_order_id = $1", gatewayOrderID)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *paymentRepo) MarkPaid(ctx context.Context, tx *sql.Tx, s domain.Settlement) (bool, error) {
	query := `
		UPDATE payments
		SET payment_status = 'paid',
		    gateway_payment_id = $2,
		    gateway_signature = COALESCE(NULLIF($3, ''), gateway_signature),
		    payment_method = $4,
		    paid_at = COALESCE(paid_at, $5),
		    updated_at = $5
		WHERE gateway_order_id = $1
		  AND (payment_status <> 'paid' OR gateway_payment_id = $2)`
	res, err := conn(r.db, tx).ExecContext(ctx, query,
		s.GatewayOrderID, s.GatewayPaymentID, s.Signature, s.Method, s.PaidAt,
	)
	if err != nil {
		return false, err
	}
	return applied(res)
}

func (r *paymentRepo) MarkFailed(ctx context.Context, tx *sql.Tx, gatewayOrderID string) (bool, error) {
	res, err := conn(r.db, tx).ExecContext(ctx, `
		UPDATE payments SET payment_status = 'failed', updated_at = now()
		WHERE gateway_order_id = $1 AND payment_status = 'pending'`,
		gatewayOrderID,
	)
	if err != nil {
		return false, err
	}
	return applied(res)
}

func (r *paymentRepo) FindPendingBefore(ctx context.Context, before time.Time, limit int) ([]domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + ` FROM payments
		WHERE payment_status = $1
		AND created_at < $2
		ORDER BY created_at
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, domain.PaymentPending, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var (
		p                            domain.Payment
		method, paymentID, signature sql.NullString
		paidAt                       sql.NullTime
	)
	err := row.Scan(
		&p.ID, &p.ReferenceID, &p.ReferenceType, &p.OwnerID, &p.Amount, &p.Currency, &p.Status,
		&method, &p.GatewayOrderID, &paymentID, &signature, &paidAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.PaymentMethod = method.String
	p.GatewayPaymentID = paymentID.String
	p.GatewaySignature = signature.String
	if paidAt.Valid {
		p.PaidAt = &paidAt.Time
	}
	return &p, nil
}
