package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"diggin-checkout/internal/database"
	"diggin-checkout/internal/domain"
	"diggin-checkout/internal/infrastructure/payment"
	"diggin-checkout/internal/logger"
	"diggin-checkout/internal/metrics"
	"diggin-checkout/internal/pricing"
	"diggin-checkout/internal/repo"
	"diggin-checkout/internal/tracing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

type CheckoutService interface {
	// CreateCheckout stores a pending intent priced on the server and opens a
	// gateway order for it.
	CreateCheckout(ctx context.Context, principal domain.Principal, req domain.CheckoutRequest) (*domain.Checkout, error)
}

type checkoutService struct {
	tx          database.Transactor
	intentRepo  repo.IntentRepo
	paymentRepo repo.PaymentRepo
	gateway     payment.Gateway
	pricing     *pricing.Calculator
	currency    string
	log         *zap.Logger
	now         func() time.Time
}

func NewCheckoutService(
	tx database.Transactor,
	intentRepo repo.IntentRepo,
	paymentRepo repo.PaymentRepo,
	gateway payment.Gateway,
	calculator *pricing.Calculator,
	currency string,
	log *zap.Logger,
) CheckoutService {
	return &checkoutService{
		tx:          tx,
		intentRepo:  intentRepo,
		paymentRepo: paymentRepo,
		gateway:     gateway,
		pricing:     calculator,
		currency:    currency,
		log:         log,
		now:         time.Now,
	}
}

func (s *checkoutService) CreateCheckout(ctx context.Context, principal domain.Principal, req domain.CheckoutRequest) (*domain.Checkout, error) {
	ctx, span := tracing.Tracer().Start(ctx, "CreateCheckout")
	defer span.End()

	if !principal.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: %w %q", domain.ErrInvalidOrder, domain.ErrInvalidIntentType, req.Type)
	}
	span.SetAttributes(attribute.String("intent.type", string(req.Type)))

	now := s.now().UTC()
	intent := &domain.Intent{
		ID:            uuid.New(),
		OwnerID:       principal.ID,
		Type:          req.Type,
		Status:        domain.StatusPending,
		PaymentStatus: domain.PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	switch req.Type {
	case domain.IntentFoodOrder:
		items, total, err := s.pricing.QuoteOrder(req.Items)
		if err != nil {
			return nil, err
		}
		s.logClientPrices(principal, req.Items, items)
		intent.Items = items
		intent.TotalAmount = total
	case domain.IntentReservation:
		total, err := s.pricing.QuoteReservation(req.Booking.Guests)
		if err != nil {
			return nil, err
		}
		booking := req.Booking
		intent.Booking = &booking
		intent.TotalAmount = total
	}

	// The intent is committed before the gateway is called so that a gateway
	// failure leaves a pending row behind and never a gateway order without one.
	err := s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		return s.intentRepo.CreateIntent(ctx, tx, intent)
	})
	if err != nil {
		return nil, fmt.Errorf("store intent: %w", err)
	}
	span.SetAttributes(attribute.String("reference_id", intent.ID.String()))

	order, err := s.gateway.CreateOrder(ctx, payment.OrderRequest{
		Amount:   intent.TotalAmount,
		Currency: s.currency,
		Receipt:  payment.Receipt(intent.Type, intent.ID),
		Notes: map[string]string{
			"type":         string(intent.Type),
			"reference_id": intent.ID.String(),
			"user_id":      principal.ID,
		},
	})
	if err != nil {
		metrics.GatewayFailures.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway order failed")
		s.log.Error("gateway order creation failed, intent left pending",
			zap.String("reference_id", intent.ID.String()),
			zap.Error(err),
		)
		if errors.Is(err, domain.ErrGatewayUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrGatewayUnavailable, err)
	}

	audit := &domain.Payment{
		ID:             uuid.New(),
		ReferenceID:    intent.ID,
		ReferenceType:  intent.Type.ReferenceType(),
		OwnerID:        principal.ID,
		Amount:         intent.TotalAmount,
		Currency:       s.currency,
		Status:         domain.PaymentPending,
		GatewayOrderID: order.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err = s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		if err := s.intentRepo.AttachGatewayOrder(ctx, tx, intent.ID, order.ID); err != nil {
			return err
		}
		return s.paymentRepo.CreatePayment(ctx, tx, audit)
	})
	if err != nil {
		s.log.Error("failed to record gateway order",
			zap.String("reference_id", intent.ID.String()),
			zap.String("gateway_order_id", order.ID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("record gateway order: %w", err)
	}

	metrics.CheckoutsCreated.WithLabelValues(string(intent.Type)).Inc()
	s.log.Info("checkout created",
		zap.String("reference_id", intent.ID.String()),
		zap.String("type", string(intent.Type)),
		zap.String("gateway_order_id", order.ID),
		zap.Int64("amount", intent.TotalAmount),
	)

	return &domain.Checkout{
		GatewayOrderID: order.ID,
		Amount:         intent.TotalAmount,
		Currency:       s.currency,
		ReferenceID:    intent.ID,
		PublicKey:      s.gateway.PublicKey(),
		Items:          intent.Items,
	}, nil
}

// logClientPrices records carts whose submitted prices differ from the
// catalog. The submitted prices are never used.
func (s *checkoutService) logClientPrices(principal domain.Principal, submitted, priced []domain.LineItem) {
	for i := range submitted {
		if submitted[i].Price != 0 && submitted[i].Price != priced[i].Price {
			s.log.Warn("client submitted a price that differs from the catalog",
				logger.Security(),
				zap.String("user_id", principal.ID),
				zap.String("item", priced[i].Name),
				zap.Int64("submitted", submitted[i].Price),
				zap.Int64("catalog", priced[i].Price),
			)
		}
	}
}
