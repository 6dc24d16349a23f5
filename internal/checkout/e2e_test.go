package checkout_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"diggin-checkout/internal/checkout"
	"diggin-checkout/internal/database"
	"diggin-checkout/internal/domain"
	"diggin-checkout/internal/infrastructure/auth"
	"diggin-checkout/internal/infrastructure/cache"
	"diggin-checkout/internal/infrastructure/notify"
	"diggin-checkout/internal/infrastructure/payment"
	"diggin-checkout/internal/pricing"
	"diggin-checkout/internal/repo"
	"diggin-checkout/internal/server"
	"diggin-checkout/internal/service"
	"diggin-checkout/internal/signature"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingSender struct {
	sent chan []notify.Email
}

func (s *countingSender) Send(_ context.Context, emails []notify.Email) error {
	s.sent <- emails
	return nil
}

type stack struct {
	intents  *repo.MemoryIntentRepo
	payments *repo.MemoryPaymentRepo
	gateway  *payment.MockGateway
	sender   *countingSender
	backend  *checkout.HTTPBackend
	session  checkout.Session
}

func newStack(t *testing.T, chance int) *stack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	const jwtSecret, gatewaySecret = "e2e-jwt", "e2e-gateway"
	st := &stack{
		intents:  repo.NewMemoryIntentRepo(),
		payments: repo.NewMemoryPaymentRepo(),
		gateway:  payment.NewMockGateway("rzp_test_e2e", gatewaySecret, payment.WithChance(func() int { return chance })),
		sender:   &countingSender{sent: make(chan []notify.Email, 4)},
	}
	log := zap.NewNop()
	calc := pricing.NewCalculator(pricing.NewCatalog(map[string]int64{"Latte": 280}), 20, 20)
	dispatcher := notify.NewAsyncDispatcher(st.sender, "admin@example.com", time.Second, log)
	t.Cleanup(dispatcher.Wait)

	srv := server.New(server.Deps{
		Checkout:     service.NewCheckoutService(database.NopTransactor{}, st.intents, st.payments, st.gateway, calc, "INR", log),
		Verification: service.NewVerificationService(st.intents, st.payments, signature.NewVerifier(gatewaySecret), calc, cache.NewMemory(), log),
		Admin:        service.NewAdminService(st.intents, func(string) bool { return false }, log),
		Notifier:     dispatcher,
		Auth:         auth.NewSupabaseAuthenticator(jwtSecret),
		Log:          log,
	}, server.Options{})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "user-alice",
		"email": "alice@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(jwtSecret))
	require.NoError(t, err)

	st.backend = checkout.NewHTTPBackend(ts.URL, "")
	st.session = checkout.Session{AccessToken: token, Email: "alice@example.com", Name: "Alice"}
	return st
}

func (st *stack) intent(t *testing.T, res checkout.Result) *domain.Intent {
	t.Helper()
	id, err := uuid.Parse(res.ReferenceID)
	require.NoError(t, err)
	intent, err := st.intents.FindById(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, intent)
	return intent
}

var twoLattes = checkout.Request{
	Type: domain.IntentFoodOrder,
	// the client's price is ignored
	Items: []domain.LineItem{{Name: "latte", Price: 1, Quantity: 2}},
}

func TestEndToEnd_PaidOrderIsConfirmed(t *testing.T) {
	st := newStack(t, 0)
	o := checkout.NewOrchestrator(st.backend, checkout.NewSandboxWidget(st.gateway), zap.NewNop())

	res := o.Checkout(context.Background(), st.session, twoLattes)
	o.Wait()

	require.Equal(t, checkout.StateSettled, res.State, res.Err)
	assert.Equal(t, int64(560), res.Amount)

	intent := st.intent(t, res)
	assert.Equal(t, domain.StatusConfirmed, intent.Status)
	assert.Equal(t, domain.PaymentPaid, intent.PaymentStatus)
	assert.Equal(t, int64(560), *intent.AmountPaid)

	audit, err := st.payments.FindByGatewayOrderID(context.Background(), res.GatewayOrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, audit.Status)

	select {
	case <-st.sender.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("no confirmation email sent")
	}
}

func TestEndToEnd_ReservationFee(t *testing.T) {
	st := newStack(t, 0)
	o := checkout.NewOrchestrator(st.backend, checkout.NewSandboxWidget(st.gateway), zap.NewNop())

	res := o.Checkout(context.Background(), st.session, checkout.Request{
		Type:    domain.IntentReservation,
		Booking: domain.Booking{Guests: 5, Date: "2026-11-02", Time: "19:30", Name: "Alice"},
	})
	o.Wait()

	require.Equal(t, checkout.StateSettled, res.State, res.Err)
	assert.Equal(t, int64(100), res.Amount)
	assert.Equal(t, domain.StatusConfirmed, st.intent(t, res).Status)
}

func TestEndToEnd_DeclinedPaymentLeavesIntentPending(t *testing.T) {
	st := newStack(t, 80)
	o := checkout.NewOrchestrator(st.backend, checkout.NewSandboxWidget(st.gateway), zap.NewNop())

	res := o.Checkout(context.Background(), st.session, twoLattes)

	assert.Equal(t, checkout.StateFailed, res.State)
	assert.Equal(t, checkout.FailurePayment, res.Failure)
	intent := st.intent(t, res)
	assert.Equal(t, domain.StatusPending, intent.Status)
	assert.Equal(t, domain.PaymentPending, intent.PaymentStatus)
}

func TestEndToEnd_DismissedWidget(t *testing.T) {
	st := newStack(t, 0)
	widget := checkout.NewSandboxWidget(st.gateway)
	widget.Dismiss = func() bool { return true }
	o := checkout.NewOrchestrator(st.backend, widget, zap.NewNop())

	res := o.Checkout(context.Background(), st.session, twoLattes)

	assert.Equal(t, checkout.FailureCancelled, res.Failure)
	assert.Equal(t, domain.StatusPending, st.intent(t, res).Status)
}

func TestEndToEnd_LostProofIsCapturedButUnsettled(t *testing.T) {
	st := newStack(t, 95)
	o := checkout.NewOrchestrator(st.backend, checkout.NewSandboxWidget(st.gateway), zap.NewNop())

	res := o.Checkout(context.Background(), st.session, twoLattes)

	assert.Equal(t, checkout.StateFailed, res.State)
	assert.ErrorIs(t, res.Err, payment.ErrProofLost)
	assert.Equal(t, domain.PaymentPending, st.intent(t, res).PaymentStatus)

	records, err := st.gateway.FetchPayments(context.Background(), res.GatewayOrderID)
	require.NoError(t, err)
	_, captured := payment.CapturedPayment(records)
	assert.True(t, captured)
}

func TestEndToEnd_NoSession(t *testing.T) {
	st := newStack(t, 0)
	o := checkout.NewOrchestrator(st.backend, checkout.NewSandboxWidget(st.gateway), zap.NewNop())

	res := o.Checkout(context.Background(), checkout.Session{}, twoLattes)

	assert.Equal(t, checkout.FailureUnauthenticated, res.Failure)
	assert.Equal(t, 0, st.intents.Len())
}

func TestEndToEnd_ExpiredTokenIsUnauthenticated(t *testing.T) {
	st := newStack(t, 0)
	o := checkout.NewOrchestrator(st.backend, checkout.NewSandboxWidget(st.gateway), zap.NewNop())

	res := o.Checkout(context.Background(), checkout.Session{AccessToken: "expired"}, twoLattes)

	assert.Equal(t, checkout.FailureUnauthenticated, res.Failure)
	assert.Equal(t, "Please sign in to continue", res.Message)
	assert.Equal(t, 0, st.intents.Len())
}
