package payment

import (
	"context"
	"errors"
	"testing"

	"diggin-checkout/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeOrderAPI struct {
	created  map[string]interface{}
	response map[string]interface{}
	payments map[string]interface{}
	err      error
}

func (f *fakeOrderAPI) Create(data map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	f.created = data
	return f.response, f.err
}

func (f *fakeOrderAPI) Payments(_ string, _ map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	return f.payments, f.err
}

func TestRazorpayGateway_CreateOrderSendsPaise(t *testing.T) {
	api := &fakeOrderAPI{response: map[string]interface{}{
		"id":       "order_Nx1",
		"amount":   float64(56000),
		"currency": "INR",
		"receipt":  "order_1b2c3d4e",
		"status":   "created",
	}}
	g := &RazorpayGateway{orders: api, keyID: "rzp_test", log: zap.NewNop()}

	order, err := g.CreateOrder(context.Background(), OrderRequest{
		Amount:   560,
		Currency: "INR",
		Receipt:  "order_1b2c3d4e",
		Notes:    map[string]string{"type": "food_order", "reference_id": "ref", "user_id": "u1"},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(56000), api.created["amount"])
	assert.Equal(t, "INR", api.created["currency"])
	notes := api.created["notes"].(map[string]interface{})
	assert.Equal(t, "food_order", notes["type"])

	assert.Equal(t, "order_Nx1", order.ID)
	assert.Equal(t, int64(560), order.Amount)
	assert.Equal(t, "rzp_test", g.PublicKey())
}

func TestRazorpayGateway_ErrorsBecomeUnavailable(t *testing.T) {
	g := &RazorpayGateway{orders: &fakeOrderAPI{err: errors.New("503")}, log: zap.NewNop()}

	_, err := g.CreateOrder(context.Background(), OrderRequest{Amount: 1})
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)

	_, err = g.FetchPayments(context.Background(), "order_x")
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}

func TestRazorpayGateway_MissingOrderID(t *testing.T) {
	g := &RazorpayGateway{orders: &fakeOrderAPI{response: map[string]interface{}{}}, log: zap.NewNop()}
	_, err := g.CreateOrder(context.Background(), OrderRequest{Amount: 1})
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}

func TestRazorpayGateway_FetchPayments(t *testing.T) {
	api := &fakeOrderAPI{payments: map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"id": "pay_a", "status": "failed", "method": "card", "amount": float64(10000)},
			map[string]interface{}{"id": "pay_b", "status": "captured", "method": "upi", "amount": float64(10000)},
		},
	}}
	g := &RazorpayGateway{orders: api, log: zap.NewNop()}

	records, err := g.FetchPayments(context.Background(), "order_x")
	require.NoError(t, err)
	require.Len(t, records, 2)

	captured, ok := CapturedPayment(records)
	require.True(t, ok)
	assert.Equal(t, "pay_b", captured.ID)
	assert.Equal(t, int64(100), captured.Amount)
}

func TestRazorpayGateway_CancelledContext(t *testing.T) {
	g := &RazorpayGateway{orders: &fakeOrderAPI{}, log: zap.NewNop()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.CreateOrder(ctx, OrderRequest{Amount: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReceipt(t *testing.T) {
	id := uuid.MustParse("1b2c3d4e-0000-4000-8000-000000000000")
	assert.Equal(t, "order_1b2c3d4e", Receipt(domain.IntentFoodOrder, id))
	assert.Equal(t, "res_1b2c3d4e", Receipt(domain.IntentReservation, id))
}
