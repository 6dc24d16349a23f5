package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"diggin-checkout/internal/metrics"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

const (
	QueueName     = "notifications.send"
	MaxRetryCount = 3
	retryHeader   = "x-retry-count"
)

// Dispatcher accepts a notification for delivery. It returns once the
// notification is accepted; delivery failures are only logged.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}

// AsyncDispatcher renders and sends in a detached goroutine.
type AsyncDispatcher struct {
	sender     Sender
	adminEmail string
	timeout    time.Duration
	log        *zap.Logger
	wg         sync.WaitGroup
}

func NewAsyncDispatcher(sender Sender, adminEmail string, timeout time.Duration, log *zap.Logger) *AsyncDispatcher {
	return &AsyncDispatcher{sender: sender, adminEmail: adminEmail, timeout: timeout, log: log}
}

func (d *AsyncDispatcher) Dispatch(_ context.Context, n Notification) error {
	emails, err := Render(n, d.adminEmail)
	if err != nil {
		return err
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.sender.Send(ctx, emails); err != nil {
			metrics.NotificationsDispatched.WithLabelValues("failed").Inc()
			d.log.Error("notification delivery failed", zap.String("type", string(n.Type)), zap.Error(err))
			return
		}
		metrics.NotificationsDispatched.WithLabelValues("sent").Inc()
	}()
	return nil
}

// Wait blocks until every in-flight send has finished.
func (d *AsyncDispatcher) Wait() {
	d.wg.Wait()
}

// Connect dials RabbitMQ and declares the notification queue. The returned
// function closes the channel and then the connection.
func Connect(url string) (*amqp.Channel, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("failed to declare queue %s: %w", QueueName, err)
	}

	closeFn := func() error {
		if err := ch.Close(); err != nil {
			return err
		}
		return conn.Close()
	}
	return ch, closeFn, nil
}

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// QueueDispatcher publishes notifications to the durable queue drained by
// Consumer.
type QueueDispatcher struct {
	ch publisher
}

func NewQueueDispatcher(ch *amqp.Channel) *QueueDispatcher {
	return &QueueDispatcher{ch: ch}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, n Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	err = d.ch.PublishWithContext(ctx, "", QueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Headers:      injectTraceContext(ctx),
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		metrics.NotificationsDispatched.WithLabelValues("publish_failed").Inc()
		return fmt.Errorf("publish notification: %w", err)
	}
	metrics.NotificationsDispatched.WithLabelValues("queued").Inc()
	return nil
}

// Consumer drains QueueName and sends each notification.
type Consumer struct {
	ch         *amqp.Channel
	sender     Sender
	adminEmail string
	log        *zap.Logger
}

func NewConsumer(ch *amqp.Channel, sender Sender, adminEmail string, log *zap.Logger) *Consumer {
	return &Consumer{ch: ch, sender: sender, adminEmail: adminEmail, log: log}
}

// Run consumes until ctx is cancelled or the channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.ch.Consume(QueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	c.log.Info("notification consumer started", zap.String("queue", QueueName))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	ctx = extractTraceContext(ctx, d.Headers)
	ctx, span := otel.Tracer("notify").Start(ctx, "AMQP - consume - "+QueueName)
	defer span.End()

	err := c.process(ctx, d.Body)
	if err == nil {
		metrics.NotificationsDispatched.WithLabelValues("sent").Inc()
		d.Ack(false)
		return
	}

	attempt := retryCount(d.Headers) + 1
	c.log.Error("notification delivery failed", zap.Int64("attempt", attempt), zap.Error(err))
	if attempt >= MaxRetryCount {
		metrics.NotificationsDispatched.WithLabelValues("dropped").Inc()
		d.Nack(false, false)
		return
	}

	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[retryHeader] = attempt

	pubErr := c.ch.PublishWithContext(ctx, "", QueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Headers:      headers,
		Body:         d.Body,
		DeliveryMode: amqp.Persistent,
	})
	if pubErr != nil {
		c.log.Error("failed to requeue notification", zap.Error(pubErr))
		d.Nack(false, true)
		return
	}
	d.Ack(false)
}

func (c *Consumer) process(ctx context.Context, body []byte) error {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return fmt.Errorf("decode notification: %w", err)
	}
	emails, err := Render(n, c.adminEmail)
	if err != nil {
		return err
	}
	return c.sender.Send(ctx, emails)
}

func retryCount(headers amqp.Table) int64 {
	switch v := headers[retryHeader].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	}
	return 0
}

type headersCarrier amqp.Table

func (c headersCarrier) Get(key string) string {
	s, _ := c[key].(string)
	return s
}

func (c headersCarrier) Set(key, value string) {
	c[key] = value
}

func (c headersCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

func injectTraceContext(ctx context.Context) amqp.Table {
	headers := amqp.Table{}
	otel.GetTextMapPropagator().Inject(ctx, headersCarrier(headers))
	return headers
}

func extractTraceContext(ctx context.Context, headers amqp.Table) context.Context {
	if headers == nil {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, headersCarrier(headers))
}
