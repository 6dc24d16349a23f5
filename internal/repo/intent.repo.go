package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"diggin-checkout/internal/domain"

	"github.com/google/uuid"
)

type IntentRepo interface {
	CreateIntent(ctx context.Context, tx *sql.Tx, intent *domain.Intent) error
	// FindById returns nil, nil when no intent has that id.
	FindById(ctx context.Context, id uuid.UUID) (*domain.Intent, error)
	AttachGatewayOrder(ctx context.Context, tx *sql.Tx, id uuid.UUID, gatewayOrderID string) error
	// Settle marks the intent paid and confirmed. It reports false without
	// writing when the intent is already paid or no longer pending.
	Settle(ctx context.Context, tx *sql.Tx, id uuid.UUID, s domain.Settlement) (bool, error)
	MarkAbandoned(ctx context.Context, tx *sql.Tx, id uuid.UUID) (bool, error)
	UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, from, to domain.Status) (bool, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.Intent, error)
	List(ctx context.Context, filter IntentFilter) ([]domain.Intent, error)
	FindUnsubmittedBefore(ctx context.Context, before time.Time, limit int) ([]domain.Intent, error)
}

type IntentFilter struct {
	Type   domain.IntentType
	Limit  int
	Offset int
}

type intentRepo struct {
	db *sql.DB
}

func NewIntentRepo(db *sql.DB) IntentRepo {
	return &intentRepo{db: db}
}

const intentColumns = `id, owner_id, intent_type, items, guests, booking_name, booking_date, booking_time,
	contact, notes, total_amount, status, payment_status, gateway_order_id, gateway_payment_id,
	payment_method, amount_paid, paid_at, created_at, updated_at`

func (r *intentRepo) CreateIntent(ctx context.Context, tx *sql.Tx, intent *domain.Intent) error {
	items, err := json.Marshal(intentItems(intent))
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}

	var (
		guests                         sql.NullInt64
		name, date, at, contact, notes sql.NullString
	)
	if b := intent.Booking; b != nil {
		guests = sql.NullInt64{Int64: int64(b.Guests), Valid: true}
		name, date, at = nullString(b.Name), nullString(b.Date), nullString(b.Time)
		contact, notes = nullString(b.Contact), nullString(b.Notes)
	}

	_, err = conn(r.db, tx).ExecContext(ctx, `
		INSERT INTO intents (id, owner_id, intent_type, items, guests, booking_name, booking_date,
			booking_time, contact, notes, total_amount, status, payment_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		intent.ID, intent.OwnerID, intent.Type, string(items), guests, name, date, at, contact, notes,
		intent.TotalAmount, intent.Status, intent.PaymentStatus, intent.CreatedAt, intent.UpdatedAt,
	)
	return err
}

func (r *intentRepo) FindById(ctx context.Context, id uuid.UUID) (*domain.Intent, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+intentColumns+" FROM intents WHERE id = $1", id)
	intent, err := scanIntent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return intent, nil
}

func (r *intentRepo) AttachGatewayOrder(ctx context.Context, tx *sql.Tx, id uuid.UUID, gatewayOrderID string) error {
	res, err := conn(r.db, tx).ExecContext(ctx,
		"UPDATE intents SET gateway_order_id = $2, updated_at = now() WHERE id = $1",
		id, gatewayOrderID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *intentRepo) Settle(ctx context.Context, tx *sql.Tx, id uuid.UUID, s domain.Settlement) (bool, error) {
	res, err := conn(r.db, tx).ExecContext(ctx, `
		UPDATE intents
		SET payment_status = 'paid',
		    status = 'confirmed',
		    gateway_payment_id = $2,
		    payment_method = $3,
		    amount_paid = $4,
		    paid_at = $5,
		    updated_at = $5
		WHERE id = $1
		  AND status = 'pending'
		  AND payment_status IN ('pending', 'failed')`,
		id, s.GatewayPaymentID, s.Method, s.Amount, s.PaidAt,
	)
	if err != nil {
		return false, err
	}
	return applied(res)
}

func (r *intentRepo) MarkAbandoned(ctx context.Context, tx *sql.Tx, id uuid.UUID) (bool, error) {
	res, err := conn(r.db, tx).ExecContext(ctx, `
		UPDATE intents
		SET payment_status = 'failed', status = 'cancelled', updated_at = now()
		WHERE id = $1 AND status = 'pending' AND payment_status <> 'paid'`,
		id,
	)
	if err != nil {
		return false, err
	}
	return applied(res)
}

func (r *intentRepo) UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, from, to domain.Status) (bool, error) {
	res, err := conn(r.db, tx).ExecContext(ctx,
		"UPDATE intents SET status = $3, updated_at = now() WHERE id = $1 AND status = $2",
		id, from, to,
	)
	if err != nil {
		return false, err
	}
	return applied(res)
}

func (r *intentRepo) ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.Intent, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+intentColumns+" FROM intents WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2",
		ownerID, limit,
	)
	if err != nil {
		return nil, err
	}
	return collectIntents(rows)
}

func (r *intentRepo) List(ctx context.Context, filter IntentFilter) ([]domain.Intent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+intentColumns+` FROM intents
		WHERE ($1 = '' OR intent_type = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		string(filter.Type), filter.Limit, filter.Offset,
	)
	if err != nil {
		return nil, err
	}
	return collectIntents(rows)
}

func (r *intentRepo) FindUnsubmittedBefore(ctx context.Context, before time.Time, limit int) ([]domain.Intent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+intentColumns+` FROM intents
		WHERE gateway_order_id IS NULL
		  AND status = 'pending'
		  AND payment_status = 'pending'
		  AND created_at < $1
		ORDER BY created_at
		LIMIT $2`,
		before, limit,
	)
	if err != nil {
		return nil, err
	}
	return collectIntents(rows)
}

func collectIntents(rows *sql.Rows) ([]domain.Intent, error) {
	defer rows.Close()

	var intents []domain.Intent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		intents = append(intents, *intent)
	}
	return intents, rows.Err()
}

func scanIntent(row rowScanner) (*domain.Intent, error) {
	var (
		i                                               domain.Intent
		items                                           []byte
		guests, amountPaid                              sql.NullInt64
		name, date, at, contact, notes                  sql.NullString
		gatewayOrderID, gatewayPaymentID, paymentMethod sql.NullString
		paidAt                                          sql.NullTime
	)
	err := row.Scan(
		&i.ID, &i.OwnerID, &i.Type, &items, &guests, &name, &date, &at,
		&contact, &notes, &i.TotalAmount, &i.Status, &i.PaymentStatus, &gatewayOrderID, &gatewayPaymentID,
		&paymentMethod, &amountPaid, &paidAt, &i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(items) > 0 {
		if err := json.Unmarshal(items, &i.Items); err != nil {
			return nil, fmt.Errorf("decode items of intent %s: %w", i.ID, err)
		}
	}
	if guests.Valid {
		i.Booking = &domain.Booking{
			Guests:  int(guests.Int64),
			Name:    name.String,
			Date:    date.String,
			Time:    at.String,
			Contact: contact.String,
			Notes:   notes.String,
		}
	}
	i.GatewayOrderID = gatewayOrderID.String
	i.GatewayPaymentID = gatewayPaymentID.String
	i.PaymentMethod = paymentMethod.String
	if amountPaid.Valid {
		i.AmountPaid = &amountPaid.Int64
	}
	if paidAt.Valid {
		i.PaidAt = &paidAt.Time
	}
	return &i, nil
}

func intentItems(intent *domain.Intent) []domain.LineItem {
	if intent.Items == nil {
		return []domain.LineItem{}
	}
	return intent.Items
}

func applied(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func requireRow(res sql.Result) error {
	ok, err := applied(res)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	return nil
}
