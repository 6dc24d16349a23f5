package repo

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"diggin-checkout/internal/domain"

	"github.com/google/uuid"
)

// MemoryIntentRepo is an IntentRepo kept in process memory. It ignores tx
// and applies the same conditional updates as the Postgres repository.
type MemoryIntentRepo struct {
	mu      sync.RWMutex
	intents map[uuid.UUID]domain.Intent
}

func NewMemoryIntentRepo() *MemoryIntentRepo {
	return &MemoryIntentRepo{intents: make(map[uuid.UUID]domain.Intent)}
}

func (r *MemoryIntentRepo) CreateIntent(_ context.Context, _ *sql.Tx, intent *domain.Intent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.intents[intent.ID]; exists {
		return fmt.Errorf("intent %s already exists", intent.ID)
	}
	r.intents[intent.ID] = cloneIntent(*intent)
	return nil
}

func (r *MemoryIntentRepo) FindById(_ context.Context, id uuid.UUID) (*domain.Intent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	intent, ok := r.intents[id]
	if !ok {
		return nil, nil
	}
	c := cloneIntent(intent)
	return &c, nil
}

func (r *MemoryIntentRepo) AttachGatewayOrder(_ context.Context, _ *sql.Tx, id uuid.UUID, gatewayOrderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	intent, ok := r.intents[id]
	if !ok {
		return domain.ErrNotFound
	}
	intent.GatewayOrderID = gatewayOrderID
	intent.UpdatedAt = time.Now()
	r.intents[id] = intent
	return nil
}

func (r *MemoryIntentRepo) Settle(_ context.Context, _ *sql.Tx, id uuid.UUID, s domain.Settlement) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	intent, ok := r.intents[id]
	if !ok || !intent.Payable() {
		return false, nil
	}
	amount, paidAt := s.Amount, s.PaidAt
	intent.PaymentStatus = domain.PaymentPaid
	intent.Status = domain.StatusConfirmed
	intent.GatewayPaymentID = s.GatewayPaymentID
	intent.PaymentMethod = s.Method
	intent.AmountPaid = &amount
	intent.PaidAt = &paidAt
	intent.UpdatedAt = paidAt
	r.intents[id] = intent
	return true, nil
}

func (r *MemoryIntentRepo) MarkAbandoned(_ context.Context, _ *sql.Tx, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	intent, ok := r.intents[id]
	if !ok || !intent.Payable() {
		return false, nil
	}
	intent.PaymentStatus = domain.PaymentFailed
	intent.Status = domain.StatusCancelled
	intent.UpdatedAt = time.Now()
	r.intents[id] = intent
	return true, nil
}

func (r *MemoryIntentRepo) UpdateStatus(_ context.Context, _ *sql.Tx, id uuid.UUID, from, to domain.Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	intent, ok := r.intents[id]
	if !ok || intent.Status != from {
		return false, nil
	}
	intent.Status = to
	intent.UpdatedAt = time.Now()
	r.intents[id] = intent
	return true, nil
}

func (r *MemoryIntentRepo) ListByOwner(_ context.Context, ownerID string, limit int) ([]domain.Intent, error) {
	return r.list(func(i domain.Intent) bool { return i.OwnerID == ownerID }, limit, 0), nil
}

func (r *MemoryIntentRepo) List(_ context.Context, filter IntentFilter) ([]domain.Intent, error) {
	return r.list(func(i domain.Intent) bool {
		return filter.Type == "" || i.Type == filter.Type
	}, filter.Limit, filter.Offset), nil
}

func (r *MemoryIntentRepo) FindUnsubmittedBefore(_ context.Context, before time.Time, limit int) ([]domain.Intent, error) {
	out := r.list(func(i domain.Intent) bool {
		return i.GatewayOrderID == "" &&
			i.Status == domain.StatusPending &&
			i.PaymentStatus == domain.PaymentPending &&
			i.CreatedAt.Before(before)
	}, 0, 0)
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// list returns matching intents newest first.
func (r *MemoryIntentRepo) list(match func(domain.Intent) bool, limit, offset int) []domain.Intent {
	r.mu.RLock()
	var out []domain.Intent
	for _, intent := range r.intents {
		if match(intent) {
			out = append(out, cloneIntent(intent))
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	if offset >= len(out) {
		return nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func cloneIntent(i domain.Intent) domain.Intent {
	if i.Items != nil {
		i.Items = append([]domain.LineItem(nil), i.Items...)
	}
	if i.Booking != nil {
		b := *i.Booking
		i.Booking = &b
	}
	if i.AmountPaid != nil {
		v := *i.AmountPaid
		i.AmountPaid = &v
	}
	if i.PaidAt != nil {
		v := *i.PaidAt
		i.PaidAt = &v
	}
	return i
}

// MemoryPaymentRepo is the in-memory audit ledger.
type MemoryPaymentRepo struct {
	mu       sync.RWMutex
	payments map[string]domain.Payment
}

func NewMemoryPaymentRepo() *MemoryPaymentRepo {
	return &MemoryPaymentRepo{payments: make(map[string]domain.Payment)}
}

func (r *MemoryPaymentRepo) CreatePayment(_ context.Context, _ *sql.Tx, payment *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.payments[payment.GatewayOrderID]; exists {
		return fmt.Errorf("audit entry for gateway order %s already exists", payment.GatewayOrderID)
	}
	r.payments[payment.GatewayOrderID] = clonePayment(*payment)
	return nil
}

func (r *MemoryPaymentRepo) FindByGatewayOrderID(_ context.Context, gatewayOrderID string) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.payments[gatewayOrderID]
	if !ok {
		return nil, nil
	}
	c := clonePayment(p)
	return &c, nil
}

func (r *MemoryPaymentRepo) MarkPaid(_ context.Context, _ *sql.Tx, s domain.Settlement) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[s.GatewayOrderID]
	if !ok {
		return false, nil
	}
	if p.Status == domain.PaymentPaid && p.GatewayPaymentID != s.GatewayPaymentID {
		return false, nil
	}
	p.Status = domain.PaymentPaid
	p.GatewayPaymentID = s.GatewayPaymentID
	if s.Signature != "" {
		p.GatewaySignature = s.Signature
	}
	p.PaymentMethod = s.Method
	if p.PaidAt == nil {
		paidAt := s.PaidAt
		p.PaidAt = &paidAt
	}
	p.UpdatedAt = s.PaidAt
	r.payments[s.GatewayOrderID] = p
	return true, nil
}

func (r *MemoryPaymentRepo) MarkFailed(_ context.Context, _ *sql.Tx, gatewayOrderID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[gatewayOrderID]
	if !ok || p.Status != domain.PaymentPending {
		return false, nil
	}
	p.Status = domain.PaymentFailed
	p.UpdatedAt = time.Now()
	r.payments[gatewayOrderID] = p
	return true, nil
}

func (r *MemoryPaymentRepo) FindPendingBefore(_ context.Context, before time.Time, limit int) ([]domain.Payment, error) {
	r.mu.RLock()
	var out []domain.Payment
	for _, p := range r.payments {
		if p.Status == domain.PaymentPending && p.CreatedAt.Before(before) {
			out = append(out, clonePayment(p))
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len reports the number of audit entries.
func (r *MemoryPaymentRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.payments)
}

// Len reports the number of stored intents.
func (r *MemoryIntentRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.intents)
}

func clonePayment(p domain.Payment) domain.Payment {
	if p.PaidAt != nil {
		v := *p.PaidAt
		p.PaidAt = &v
	}
	return p
}

var (
	_ IntentRepo  = (*MemoryIntentRepo)(nil)
	_ PaymentRepo = (*MemoryPaymentRepo)(nil)
)
