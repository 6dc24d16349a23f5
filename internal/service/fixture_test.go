package service

import (
	"context"
	"testing"
	"time"

	"diggin-checkout/internal/database"
	"diggin-checkout/internal/domain"
	"diggin-checkout/internal/infrastructure/cache"
	"diggin-checkout/internal/infrastructure/payment"
	"diggin-checkout/internal/pricing"
	"diggin-checkout/internal/repo"
	"diggin-checkout/internal/signature"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "rzp_test_secret"

var (
	alice = domain.Principal{ID: "user-alice", Email: "alice@example.com", Name: "Alice"}
	bob   = domain.Principal{ID: "user-bob", Email: "bob@example.com", Name: "Bob"}
	fixed = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
)

type fixture struct {
	intents  *repo.MemoryIntentRepo
	payments *repo.MemoryPaymentRepo
	gateway  *payment.MockGateway
	cache    *cache.Memory
	checkout CheckoutService
	verify   VerificationService
}

func testCalculator() *pricing.Calculator {
	return pricing.NewCalculator(pricing.NewCatalog(map[string]int64{
		"Latte":         280,
		"Truffle Pizza": 500,
		"Cold Brew":     320,
	}), 20, 20)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		intents:  repo.NewMemoryIntentRepo(),
		payments: repo.NewMemoryPaymentRepo(),
		gateway:  payment.NewMockGateway("rzp_test_key", testSecret),
		cache:    cache.NewMemory(),
	}
	calc := testCalculator()
	log := zap.NewNop()

	cs := NewCheckoutService(database.NopTransactor{}, f.intents, f.payments, f.gateway, calc, "INR", log)
	cs.(*checkoutService).now = func() time.Time { return fixed }
	vs := NewVerificationService(f.intents, f.payments, signature.NewVerifier(testSecret), calc, f.cache, log)
	vs.(*verificationService).now = func() time.Time { return fixed.Add(time.Minute) }

	f.checkout, f.verify = cs, vs
	return f
}

func (f *fixture) createFoodOrder(t *testing.T, who domain.Principal, items ...domain.LineItem) *domain.Checkout {
	t.Helper()
	co, err := f.checkout.CreateCheckout(context.Background(), who, domain.CheckoutRequest{
		Type:  domain.IntentFoodOrder,
		Items: items,
	})
	require.NoError(t, err)
	return co
}

func (f *fixture) pay(t *testing.T, co *domain.Checkout) payment.Proof {
	t.Helper()
	proof, err := f.gateway.Pay(co.GatewayOrderID, "card")
	require.NoError(t, err)
	return proof
}

func verification(co *domain.Checkout, proof payment.Proof, typ domain.IntentType) domain.VerificationRequest {
	return domain.VerificationRequest{
		GatewayOrderID:   proof.OrderID,
		GatewayPaymentID: proof.PaymentID,
		Signature:        proof.Signature,
		Type:             typ,
		ReferenceID:      co.ReferenceID.String(),
		PaymentMethod:    proof.Method,
	}
}

func (f *fixture) intent(t *testing.T, co *domain.Checkout) *domain.Intent {
	t.Helper()
	intent, err := f.intents.FindById(context.Background(), co.ReferenceID)
	require.NoError(t, err)
	require.NotNil(t, intent)
	return intent
}

func (f *fixture) audit(t *testing.T, co *domain.Checkout) *domain.Payment {
	t.Helper()
	p, err := f.payments.FindByGatewayOrderID(context.Background(), co.GatewayOrderID)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}
