package payment

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"diggin-checkout/internal/domain"
	"diggin-checkout/internal/signature"

	"github.com/google/uuid"
)

var (
	ErrCardDeclined  = errors.New("card declined")
	ErrProofLost     = errors.New("connection timeout after capture")
	ErrUnknownOrder  = errors.New("unknown gateway order")
	ErrGatewayOutage = errors.New("sandbox gateway outage")
)

type sandboxOrder struct {
	order    Order
	payments []PaymentRecord
}

// MockGateway is the sandbox processor. Orders and payments live in memory
// and proofs are signed with the real key secret, so the verification path
// runs unchanged against it.
type MockGateway struct {
	mu      sync.RWMutex
	orders  map[string]*sandboxOrder
	signer  *signature.Verifier
	keyID   string
	latency time.Duration
	chance  func() int
	failing bool
}

type MockOption func(*MockGateway)

// WithLatency delays every Collect call.
func WithLatency(d time.Duration) MockOption {
	return func(g *MockGateway) { g.latency = d }
}

// WithChance replaces the random source Collect rolls against (0-99).
func WithChance(fn func() int) MockOption {
	return func(g *MockGateway) { g.chance = fn }
}

func NewMockGateway(keyID, keySecret string, opts ...MockOption) *MockGateway {
	g := &MockGateway{
		orders: make(map[string]*sandboxOrder),
		signer: signature.NewVerifier(keySecret),
		keyID:  keyID,
		chance: func() int { return rand.IntN(100) },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *MockGateway) PublicKey() string {
	return g.keyID
}

// SetFailing makes CreateOrder and FetchPayments fail until reset.
func (g *MockGateway) SetFailing(failing bool) {
	g.mu.Lock()
	g.failing = failing
	g.mu.Unlock()
}

func (g *MockGateway) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failing {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, ErrGatewayOutage)
	}

	order := Order{
		ID:       "order_" + compactID(),
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
	}
	g.orders[order.ID] = &sandboxOrder{order: order}
	return &order, nil
}

func (g *MockGateway) FetchPayments(ctx context.Context, orderID string) ([]PaymentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.failing {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, ErrGatewayOutage)
	}

	o, ok := g.orders[orderID]
	if !ok {
		return nil, ErrUnknownOrder
	}
	return append([]PaymentRecord(nil), o.payments...), nil
}

// Pay captures the full order amount and returns a signed proof.
func (g *MockGateway) Pay(orderID, method string) (Proof, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.capture(orderID, method)
}

// Decline records a failed attempt against the order.
func (g *MockGateway) Decline(orderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[orderID]
	if !ok {
		return ErrUnknownOrder
	}
	o.payments = append(o.payments, PaymentRecord{
		ID:     "pay_" + compactID(),
		Status: PaymentFailed,
		Method: "card",
		Amount: o.order.Amount,
	})
	return ErrCardDeclined
}

// Collect simulates a customer paying through the widget: 70% of attempts
// succeed, 20% are declined, and 10% capture the money but lose the proof
// on the way back to the client.
func (g *MockGateway) Collect(ctx context.Context, orderID string) (Proof, error) {
	if g.latency > 0 {
		select {
		case <-ctx.Done():
			return Proof{}, ctx.Err()
		case <-time.After(g.latency):
		}
	}

	chance := g.chance()
	switch {
	case chance < 70:
		return g.Pay(orderID, domain.DefaultPaymentMethod)

	case chance < 90:
		return Proof{}, g.Decline(orderID)

	default:
		if _, err := g.Pay(orderID, domain.DefaultPaymentMethod); err != nil {
			return Proof{}, err
		}
		return Proof{}, ErrProofLost
	}
}

func (g *MockGateway) capture(orderID, method string) (Proof, error) {
	o, ok := g.orders[orderID]
	if !ok {
		return Proof{}, ErrUnknownOrder
	}
	if rec, paid := CapturedPayment(o.payments); paid {
		return Proof{
			OrderID:   orderID,
			PaymentID: rec.ID,
			Signature: g.signer.Sign(orderID, rec.ID),
			Method:    rec.Method,
		}, nil
	}

	rec := PaymentRecord{
		ID:     "pay_" + compactID(),
		Status: PaymentCaptured,
		Method: method,
		Amount: o.order.Amount,
	}
	o.payments = append(o.payments, rec)
	o.order.Status = "paid"
	return Proof{
		OrderID:   orderID,
		PaymentID: rec.ID,
		Signature: g.signer.Sign(orderID, rec.ID),
		Method:    method,
	}, nil
}

func compactID() string {
	return uuid.NewString()[:14]
}

var _ Gateway = (*MockGateway)(nil)
