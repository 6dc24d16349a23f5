// Package checkout drives one customer checkout from the client side: it
// asks the backend for a gateway order, hands the customer to the gateway
// widget and submits the returned proof for verification.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"diggin-checkout/internal/api"
	"diggin-checkout/internal/domain"
	"diggin-checkout/internal/infrastructure/notify"
	"diggin-checkout/internal/infrastructure/payment"

	"go.uber.org/zap"
)

type State string

const (
	StateIdle            State = "idle"
	StateCreatingOrder   State = "creating_order"
	StateAwaitingGateway State = "awaiting_gateway"
	StateVerifying       State = "verifying"
	StateSettled         State = "settled"
	StateFailed          State = "failed"
)

func (s State) Terminal() bool {
	return s == StateSettled || s == StateFailed
}

// Failure says why a checkout ended in StateFailed.
type Failure string

const (
	FailureNone            Failure = ""
	FailureUnauthenticated Failure = "unauthenticated"
	FailureOrderCreation   Failure = "order_creation"
	FailureCancelled       Failure = "user_cancelled"
	FailurePayment         Failure = "payment_failed"
	FailureVerification    Failure = "verification_failed"
)

// Session is the signed-in customer as the client knows them.
type Session struct {
	AccessToken string
	Email       string
	Name        string
	Phone       string
}

func (s Session) Authenticated() bool {
	return s.AccessToken != ""
}

type Request struct {
	Type    domain.IntentType
	Items   []domain.LineItem
	Booking domain.Booking
}

type Result struct {
	State          State
	Failure        Failure
	ReferenceID    string
	GatewayOrderID string
	Amount         int64
	// Message is shown to the customer.
	Message string
	Err     error
}

// Observer is told about every state change of a checkout.
type Observer func(from, to State)

type Orchestrator struct {
	backend  Backend
	widget   Widget
	observer Observer
	log      *zap.Logger

	notifyTimeout time.Duration
	wg            sync.WaitGroup
}

type Option func(*Orchestrator)

func WithObserver(o Observer) Option {
	return func(c *Orchestrator) { c.observer = o }
}

func WithNotifyTimeout(d time.Duration) Option {
	return func(c *Orchestrator) { c.notifyTimeout = d }
}

func NewOrchestrator(backend Backend, widget Widget, log *zap.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		backend:       backend,
		widget:        widget,
		log:           log,
		notifyTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// run holds the state of a single checkout.
type run struct {
	o     *Orchestrator
	state State
}

func (r *run) moveTo(to State) {
	from := r.state
	r.state = to
	if r.o.observer != nil {
		r.o.observer(from, to)
	}
}

func (r *run) fail(res Result, kind Failure, message string, err error) Result {
	r.moveTo(StateFailed)
	res.State = StateFailed
	res.Failure = kind
	res.Message = message
	res.Err = err
	return res
}

// Checkout runs the whole flow and always returns a terminal Result.
func (o *Orchestrator) Checkout(ctx context.Context, session Session, req Request) Result {
	r := &run{o: o, state: StateIdle}
	var res Result

	if !session.Authenticated() {
		return r.fail(res, FailureUnauthenticated, "Please sign in to continue", domain.ErrUnauthorized)
	}

	r.moveTo(StateCreatingOrder)
	order, err := o.backend.CreateOrder(ctx, session.AccessToken, api.CreateOrderRequest{
		Type:        req.Type,
		Items:       req.Items,
		Guests:      req.Booking.Guests,
		BookingDate: req.Booking.Date,
		BookingTime: req.Booking.Time,
		BookingName: req.Booking.Name,
		Contact:     req.Booking.Contact,
		Notes:       req.Booking.Notes,
	})
	if err != nil {
		kind := FailureOrderCreation
		if errors.Is(err, domain.ErrUnauthorized) {
			kind = FailureUnauthenticated
		}
		return r.fail(res, kind, messageOf(err, "Could not start payment. Please try again."), err)
	}
	res.ReferenceID = order.ReferenceID
	res.GatewayOrderID = order.OrderID
	res.Amount = order.Amount

	r.moveTo(StateAwaitingGateway)
	outcome, err := o.widget.Open(ctx, WidgetOptions{
		Key:         order.Key,
		OrderID:     order.OrderID,
		Amount:      order.Amount,
		Currency:    order.Currency,
		Description: describe(req),
		Name:        session.Name,
		Email:       session.Email,
		Contact:     session.Phone,
	})
	if err != nil {
		return r.fail(res, FailurePayment, "Payment could not be completed", err)
	}

	switch outcome.Kind {
	case OutcomeDismissed:
		return r.fail(res, FailureCancelled, "Payment cancelled", domain.ErrUserCancelled)
	case OutcomeFailed:
		return r.fail(res, FailurePayment, outcome.Description, fmt.Errorf("gateway reported failure: %s", outcome.Description))
	case OutcomePaid:
	default:
		return r.fail(res, FailurePayment, "Payment could not be completed", fmt.Errorf("unknown widget outcome %q", outcome.Kind))
	}

	r.moveTo(StateVerifying)
	verified, err := o.backend.VerifyPayment(ctx, session.AccessToken, api.VerifyPaymentRequest{
		RazorpayOrderID:   outcome.Proof.OrderID,
		RazorpayPaymentID: outcome.Proof.PaymentID,
		RazorpaySignature: outcome.Proof.Signature,
		Type:              req.Type,
		ReferenceID:       order.ReferenceID,
		PaymentMethod:     outcome.Proof.Method,
	})
	if err != nil {
		o.log.Error("payment verification failed",
			zap.String("reference_id", order.ReferenceID),
			zap.String("gateway_order_id", order.OrderID),
			zap.String("gateway_payment_id", outcome.Proof.PaymentID),
			zap.Error(err),
		)
		return r.fail(res, FailureVerification, messageOf(err, "Payment verification failed. Please contact support."), err)
	}

	r.moveTo(StateSettled)
	res.State = StateSettled
	res.Message = verified.Message
	o.notify(session, req, order)
	return res
}

// Wait blocks until every pending notification has been attempted.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// notify uses the server's priced order so the email matches the charge.
func (o *Orchestrator) notify(session Session, req Request, order *api.CreateOrderResponse) {
	n := notify.Notification{
		UserEmail: session.Email,
		UserName:  session.Name,
	}
	switch req.Type {
	case domain.IntentFoodOrder:
		n.Type = notify.TypeOrder
		n.Details = notify.Details{Items: order.Items, TotalPrice: order.Amount}
	case domain.IntentReservation:
		n.Type = notify.TypeBooking
		n.Details = notify.Details{
			Date:           req.Booking.Date,
			Time:           req.Booking.Time,
			Guests:         req.Booking.Guests,
			SpecialRequest: req.Booking.Notes,
			Phone:          req.Booking.Contact,
		}
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), o.notifyTimeout)
		defer cancel()
		if err := o.backend.SendNotification(ctx, n); err != nil {
			o.log.Warn("confirmation email not sent", zap.String("type", string(n.Type)), zap.Error(err))
		}
	}()
}

func describe(req Request) string {
	if req.Type == domain.IntentReservation {
		return fmt.Sprintf("Table for %d on %s at %s", req.Booking.Guests, req.Booking.Date, req.Booking.Time)
	}
	var count int
	for _, it := range req.Items {
		count += it.Quantity
	}
	return fmt.Sprintf("Food order (%d items)", count)
}

func messageOf(err error, fallback string) string {
	var be *BackendError
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	return fallback
}

// OutcomeKind is how the gateway widget closed.
type OutcomeKind string

const (
	OutcomePaid      OutcomeKind = "paid"
	OutcomeDismissed OutcomeKind = "dismissed"
	OutcomeFailed    OutcomeKind = "failed"
)

type Outcome struct {
	Kind        OutcomeKind
	Proof       payment.Proof
	Description string
}

// WidgetOptions pre-fills the gateway's collection UI.
type WidgetOptions struct {
	Key         string
	OrderID     string
	Amount      int64
	Currency    string
	Description string
	Name        string
	Email       string
	Contact     string
}

// Widget is the gateway's payment collection UI. An error means the widget
// itself broke, not that the customer's payment failed.
type Widget interface {
	Open(ctx context.Context, opts WidgetOptions) (Outcome, error)
}
