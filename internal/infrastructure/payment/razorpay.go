package payment

import (
	"context"
	"fmt"
	"math"
	"time"

	"diggin-checkout/internal/domain"
	"diggin-checkout/internal/metrics"
	"diggin-checkout/internal/tracing"

	razorpay "github.com/razorpay/razorpay-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// orderAPI is the part of the razorpay-go order resource the adapter uses.
type orderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
	Payments(orderID string, queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type RazorpayGateway struct {
	orders orderAPI
	keyID  string
	log    *zap.Logger
}

func NewRazorpayGateway(keyID, keySecret string, log *zap.Logger) *RazorpayGateway {
	client := razorpay.NewClient(keyID, keySecret)
	return &RazorpayGateway{orders: client.Order, keyID: keyID, log: log}
}

func (g *RazorpayGateway) PublicKey() string {
	return g.keyID
}

func (g *RazorpayGateway) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	ctx, span := tracing.Tracer().Start(ctx, "razorpay.CreateOrder")
	defer span.End()
	span.SetAttributes(attribute.String("receipt", req.Receipt), attribute.Int64("amount", req.Amount))

	notes := make(map[string]interface{}, len(req.Notes))
	for k, v := range req.Notes {
		notes[k] = v
	}
	data := map[string]interface{}{
		"amount":   req.Amount * 100,
		"currency": req.Currency,
		"receipt":  req.Receipt,
		"notes":    notes,
	}

	start := time.Now()
	body, err := call(ctx, func() (map[string]interface{}, error) {
		return g.orders.Create(data, nil)
	})
	metrics.ObserveGateway("create_order", start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create order failed")
		g.log.Error("razorpay order creation failed", zap.String("receipt", req.Receipt), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrGatewayUnavailable, err)
	}

	id, _ := body["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("%w: order response without id", domain.ErrGatewayUnavailable)
	}
	order := &Order{
		ID:       id,
		Amount:   fromPaise(body["amount"]),
		Currency: stringField(body, "currency"),
		Receipt:  stringField(body, "receipt"),
		Status:   stringField(body, "status"),
	}
	span.SetAttributes(attribute.String("gateway_order_id", order.ID))
	return order, nil
}

func (g *RazorpayGateway) FetchPayments(ctx context.Context, orderID string) ([]PaymentRecord, error) {
	ctx, span := tracing.Tracer().Start(ctx, "razorpay.FetchPayments")
	defer span.End()
	span.SetAttributes(attribute.String("gateway_order_id", orderID))

	start := time.Now()
	body, err := call(ctx, func() (map[string]interface{}, error) {
		return g.orders.Payments(orderID, nil, nil)
	})
	metrics.ObserveGateway("fetch_payments", start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch payments failed")
		return nil, fmt.Errorf("%w: %w", domain.ErrGatewayUnavailable, err)
	}

	items, _ := body["items"].([]interface{})
	records := make([]PaymentRecord, 0, len(items))
	for _, raw := range items {
		item, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		records = append(records, PaymentRecord{
			ID:     stringField(item, "id"),
			Status: stringField(item, "status"),
			Method: stringField(item, "method"),
			Amount: fromPaise(item["amount"]),
		})
	}
	return records, nil
}

// call runs a blocking SDK request and gives up when ctx ends first. The
// SDK takes no context, so an abandoned request finishes in the background.
func call(ctx context.Context, fn func() (map[string]interface{}, error)) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type result struct {
		body map[string]interface{}
		err  error
	}
	done := make(chan result, 1)
	go func() {
		body, err := fn()
		done <- result{body, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.body, r.err
	}
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

// fromPaise converts a decoded JSON amount in paise to whole rupees.
func fromPaise(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(math.Round(n)) / 100
	case int64:
		return n / 100
	case int:
		return int64(n) / 100
	}
	return 0
}

var _ Gateway = (*RazorpayGateway)(nil)
