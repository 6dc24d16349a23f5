package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"diggin-checkout/internal/domain"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSender struct {
	mu     sync.Mutex
	emails []Email
	err    error
}

func (s *recordingSender) Send(_ context.Context, emails []Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emails = append(s.emails, emails...)
	return s.err
}

func (s *recordingSender) sent() []Email {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Email(nil), s.emails...)
}

func orderNotification() Notification {
	return Notification{
		Type:      TypeOrder,
		UserEmail: "asha@example.com",
		UserName:  "Asha",
		Details: Details{
			Items:      []domain.LineItem{{Name: "Latte", Price: 280, Quantity: 2}},
			TotalPrice: 560,
		},
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, orderNotification().Validate())

	n := orderNotification()
	n.Type = "sms"
	assert.ErrorIs(t, n.Validate(), domain.ErrInvalidNotification)

	n = orderNotification()
	n.UserEmail = "  "
	assert.ErrorIs(t, n.Validate(), domain.ErrInvalidNotification)

	n = orderNotification()
	n.UserEmail = "not an address"
	assert.ErrorIs(t, n.Validate(), domain.ErrInvalidNotification)
}

func TestRender_Order(t *testing.T) {
	emails, err := Render(orderNotification(), "owner@diggin.co.in")
	require.NoError(t, err)
	require.Len(t, emails, 2)

	user, admin := emails[0], emails[1]
	assert.Equal(t, "asha@example.com", user.To)
	assert.Equal(t, "Your Diggin Café Order Confirmation", user.Subject)
	assert.Contains(t, user.HTML, "Order Confirmation")
	assert.Contains(t, user.HTML, "₹560")
	assert.Contains(t, user.HTML, "x2")

	assert.Equal(t, "owner@diggin.co.in", admin.To)
	assert.Equal(t, "New Order from Asha", admin.Subject)
	assert.Contains(t, admin.HTML, "A new order has been placed by Asha.")
}

func TestRender_EscapesUserInput(t *testing.T) {
	n := Notification{
		Type:      TypeInquiry,
		UserEmail: "x@example.com",
		UserName:  "<script>alert(1)</script>",
		Details:   Details{Message: "hello"},
	}
	emails, err := Render(n, "")
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.NotContains(t, emails[0].HTML, "<script>")
}

func TestRender_Booking(t *testing.T) {
	n := Notification{
		Type:      TypeBooking,
		UserEmail: "x@example.com",
		UserName:  "Ravi",
		Details:   Details{Date: "2026-11-02", Time: "19:30", Guests: 5},
	}
	emails, err := Render(n, "owner@diggin.co.in")
	require.NoError(t, err)
	assert.Contains(t, emails[0].HTML, "Number of Guests:</strong> 5")
	assert.NotContains(t, emails[0].HTML, "Special Requests")
	assert.Equal(t, "New Reservation Request from Ravi", emails[1].Subject)
}

func TestAsyncDispatcher(t *testing.T) {
	sender := &recordingSender{}
	d := NewAsyncDispatcher(sender, "owner@diggin.co.in", time.Second, zap.NewNop())

	require.NoError(t, d.Dispatch(context.Background(), orderNotification()))
	d.Wait()
	assert.Len(t, sender.sent(), 2)

	bad := orderNotification()
	bad.Type = "fax"
	assert.ErrorIs(t, d.Dispatch(context.Background(), bad), domain.ErrInvalidNotification)
}

func TestAsyncDispatcher_SendFailureIsSwallowed(t *testing.T) {
	sender := &recordingSender{err: errors.New("mailjet down")}
	d := NewAsyncDispatcher(sender, "", time.Second, zap.NewNop())

	require.NoError(t, d.Dispatch(context.Background(), orderNotification()))
	d.Wait()
}

type fakePublisher struct {
	key string
	msg amqp.Publishing
	err error
}

func (p *fakePublisher) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	p.key, p.msg = key, msg
	return p.err
}

func TestQueueDispatcher(t *testing.T) {
	pub := &fakePublisher{}
	d := &QueueDispatcher{ch: pub}

	require.NoError(t, d.Dispatch(context.Background(), orderNotification()))
	assert.Equal(t, QueueName, pub.key)
	assert.Equal(t, amqp.Persistent, pub.msg.DeliveryMode)

	var got Notification
	require.NoError(t, json.Unmarshal(pub.msg.Body, &got))
	assert.Equal(t, orderNotification(), got)

	pub.err = errors.New("channel closed")
	assert.Error(t, d.Dispatch(context.Background(), orderNotification()))
}

func TestConsumerProcess(t *testing.T) {
	sender := &recordingSender{}
	c := &Consumer{sender: sender, adminEmail: "owner@diggin.co.in", log: zap.NewNop()}

	body, err := json.Marshal(orderNotification())
	require.NoError(t, err)
	require.NoError(t, c.process(context.Background(), body))
	assert.Len(t, sender.sent(), 2)

	assert.Error(t, c.process(context.Background(), []byte("{")))
	assert.True(t, strings.Contains(c.process(context.Background(), []byte(`{"type":"x"}`)).Error(), "unknown type"))
}

func TestRetryCount(t *testing.T) {
	assert.Equal(t, int64(0), retryCount(nil))
	assert.Equal(t, int64(2), retryCount(amqp.Table{retryHeader: int64(2)}))
	assert.Equal(t, int64(1), retryCount(amqp.Table{retryHeader: int32(1)}))
}
