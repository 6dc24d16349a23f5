package worker

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
	"diggin-checkout/internal/service"
	"diggin-checkout/internal/signature"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const secret = "worker-test-secret"

var alice = domain.Principal{ID: "user-alice", Email: "alice@example.com"}

type fixture struct {
	intents  *repo.MemoryIntentRepo
	payments *repo.MemoryPaymentRepo
	gateway  *payment.MockGateway
	checkout service.CheckoutService
	worker   *ReconciliationWorker
}

func newFixture(t *testing.T, abandonAfter time.Duration) *fixture {
	t.Helper()
	f := &fixture{
		intents:  repo.NewMemoryIntentRepo(),
		payments: repo.NewMemoryPaymentRepo(),
		gateway:  payment.NewMockGateway("rzp_test_key", secret),
	}
	log := zap.NewNop()
	calc := pricing.NewCalculator(pricing.NewCatalog(map[string]int64{"Latte": 280}), 20, 20)

	f.checkout = service.NewCheckoutService(database.NopTransactor{}, f.intents, f.payments, f.gateway, calc, "INR", log)
	settler := service.NewVerificationService(f.intents, f.payments, signature.NewVerifier(secret), calc, cache.NewMemory(), log)

	f.worker = NewReconciliationWorker(database.NopTransactor{}, f.intents, f.payments, f.gateway, settler, Options{
		Interval:     time.Second,
		StuckAfter:   15 * time.Minute,
		AbandonAfter: abandonAfter,
	}, log)
	// every entry created by the test is two hours old from the worker's view
	f.worker.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	return f
}

func (f *fixture) order(t *testing.T) *domain.Checkout {
	t.Helper()
	co, err := f.checkout.CreateCheckout(context.Background(), alice, domain.CheckoutRequest{
		Type:  domain.IntentFoodOrder,
		Items: []domain.LineItem{{Name: "Latte", Quantity: 2}},
	})
	require.NoError(t, err)
	return co
}

func (f *fixture) intent(t *testing.T, id uuid.UUID) *domain.Intent {
	t.Helper()
	intent, err := f.intents.FindById(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, intent)
	return intent
}

func (f *fixture) audit(t *testing.T, gatewayOrderID string) *domain.Payment {
	t.Helper()
	p, err := f.payments.FindByGatewayOrderID(context.Background(), gatewayOrderID)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func TestRunOnce_SettlesCapturedPaymentWithLostProof(t *testing.T) {
	f := newFixture(t, 0)
	co := f.order(t)
	proof, err := f.gateway.Pay(co.GatewayOrderID, "card")
	require.NoError(t, err)

	report, err := f.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Checked: 1, Repaired: 1}, report)

	intent := f.intent(t, co.ReferenceID)
	assert.Equal(t, domain.StatusConfirmed, intent.Status)
	assert.Equal(t, domain.PaymentPaid, intent.PaymentStatus)
	assert.Equal(t, proof.PaymentID, intent.GatewayPaymentID)
	assert.Equal(t, "card", intent.PaymentMethod)
	assert.Equal(t, int64(560), *intent.AmountPaid)

	assert.Equal(t, domain.PaymentPaid, f.audit(t, co.GatewayOrderID).Status)

	report, err = f.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{}, report)
}

func TestRunOnce_RepairsAuditDivergence(t *testing.T) {
	f := newFixture(t, 0)
	co := f.order(t)
	proof, err := f.gateway.Pay(co.GatewayOrderID, "upi")
	require.NoError(t, err)

	// intent settled, audit write lost
	applied, err := f.intents.Settle(context.Background(), nil, co.ReferenceID, domain.Settlement{
		GatewayOrderID:   co.GatewayOrderID,
		GatewayPaymentID: proof.PaymentID,
		Signature:        proof.Signature,
		Method:           "upi",
		Amount:           560,
		PaidAt:           time.Now(),
	})
	require.NoError(t, err)
	require.True(t, applied)

	report, err := f.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Repaired)

	audit := f.audit(t, co.GatewayOrderID)
	assert.Equal(t, domain.PaymentPaid, audit.Status)
	assert.Equal(t, proof.PaymentID, audit.GatewayPaymentID)
}

func TestRunOnce_KeepsUnpaidAttemptsByDefault(t *testing.T) {
	f := newFixture(t, 0)
	co := f.order(t)

	report, err := f.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Checked: 1}, report)
	assert.Equal(t, domain.StatusPending, f.intent(t, co.ReferenceID).Status)
	assert.Equal(t, domain.PaymentPending, f.audit(t, co.GatewayOrderID).Status)
}

func TestRunOnce_AbandonsExpiredAttempts(t *testing.T) {
	f := newFixture(t, time.Hour)
	co := f.order(t)
	require.ErrorIs(t, f.gateway.Decline(co.GatewayOrderID), payment.ErrCardDeclined)

	report, err := f.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Checked: 1, Abandoned: 1}, report)

	intent := f.intent(t, co.ReferenceID)
	assert.Equal(t, domain.StatusCancelled, intent.Status)
	assert.Equal(t, domain.PaymentFailed, intent.PaymentStatus)
	assert.Equal(t, domain.PaymentFailed, f.audit(t, co.GatewayOrderID).Status)
}

func TestRunOnce_AbandonsIntentsThatNeverReachedTheGateway(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.gateway.SetFailing(true)
	_, err := f.checkout.CreateCheckout(context.Background(), alice, domain.CheckoutRequest{
		Type:  domain.IntentFoodOrder,
		Items: []domain.LineItem{{Name: "Latte", Quantity: 1}},
	})
	require.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	f.gateway.SetFailing(false)

	report, err := f.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Abandoned: 1}, report)

	mine, err := f.intents.ListByOwner(context.Background(), alice.ID, 10)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, domain.StatusCancelled, mine[0].Status)
}

func TestRunOnce_GatewayErrorsAreCounted(t *testing.T) {
	f := newFixture(t, time.Hour)
	co := f.order(t)
	f.gateway.SetFailing(true)

	report, err := f.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Checked: 1, Errors: 1}, report)
	assert.Equal(t, domain.PaymentPending, f.audit(t, co.GatewayOrderID).Status)
}

func TestRunOnce_IgnoresFreshAttempts(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.worker.now = time.Now
	f.order(t)

	report, err := f.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{}, report)
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.worker.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
