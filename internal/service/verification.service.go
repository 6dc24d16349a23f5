package service

import (
	"context"
	"fmt"
	"time"

	"diggin-checkout/internal/domain"
	"diggin-checkout/internal/infrastructure/cache"
	"diggin-checkout/internal/infrastructure/payment"
	"diggin-checkout/internal/logger"
	"diggin-checkout/internal/metrics"
	"diggin-checkout/internal/pricing"
	"diggin-checkout/internal/repo"
	"diggin-checkout/internal/signature"
	"diggin-checkout/internal/tracing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// SettleResult describes a successful settlement. Duplicate is set when the
// same gateway payment had already settled the intent.
type SettleResult struct {
	ReferenceID uuid.UUID
	Duplicate   bool
}

type VerificationService interface {
	// VerifyAndSettle checks a payment proof delivered by the client and
	// settles the intent it belongs to.
	VerifyAndSettle(ctx context.Context, principal domain.Principal, req domain.VerificationRequest) (*SettleResult, error)
	// SettleFromGateway settles from a captured payment read directly from
	// the gateway. Reconciliation uses it in place of a client proof.
	SettleFromGateway(ctx context.Context, audit domain.Payment, rec payment.PaymentRecord) (*SettleResult, error)
}

type verificationService struct {
	intentRepo  repo.IntentRepo
	paymentRepo repo.PaymentRepo
	verifier    *signature.Verifier
	pricing     *pricing.Calculator
	settled     cache.Settlements
	log         *zap.Logger
	now         func() time.Time
}

func NewVerificationService(
	intentRepo repo.IntentRepo,
	paymentRepo repo.PaymentRepo,
	verifier *signature.Verifier,
	calculator *pricing.Calculator,
	settled cache.Settlements,
	log *zap.Logger,
) VerificationService {
	if settled == nil {
		settled = cache.Nop{}
	}
	return &verificationService{
		intentRepo:  intentRepo,
		paymentRepo: paymentRepo,
		verifier:    verifier,
		pricing:     calculator,
		settled:     settled,
		log:         log,
		now:         time.Now,
	}
}

func (s *verificationService) VerifyAndSettle(ctx context.Context, principal domain.Principal, req domain.VerificationRequest) (*SettleResult, error) {
	ctx, span := tracing.Tracer().Start(ctx, "VerifyAndSettle")
	defer span.End()
	span.SetAttributes(
		attribute.String("gateway_order_id", req.GatewayOrderID),
		attribute.String("reference_id", req.ReferenceID),
	)

	if !principal.Authenticated() {
		return nil, domain.ErrUnauthorized
	}

	if !s.verifier.Verify(req.GatewayOrderID, req.GatewayPaymentID, req.Signature) {
		metrics.SignatureFailures.Inc()
		span.SetStatus(codes.Error, "signature mismatch")
		s.log.Warn("payment signature mismatch",
			logger.Security(),
			zap.String("user_id", principal.ID),
			zap.String("gateway_order_id", req.GatewayOrderID),
			zap.String("gateway_payment_id", req.GatewayPaymentID),
			zap.String("reference_id", req.ReferenceID),
		)
		return nil, domain.ErrSignatureInvalid
	}

	referenceID, err := uuid.Parse(req.ReferenceID)
	if err != nil || !req.Type.Valid() {
		return nil, fmt.Errorf("%w: reference %q of type %q", domain.ErrNotFound, req.ReferenceID, req.Type)
	}

	if entry, ok, err := s.settled.Lookup(ctx, req.GatewayPaymentID); err != nil {
		s.log.Warn("settlement cache lookup failed", zap.Error(err))
	} else if ok && entry.ReferenceID == referenceID.String() && entry.OwnerID == principal.ID {
		metrics.Settlements.WithLabelValues("duplicate").Inc()
		return &SettleResult{ReferenceID: referenceID, Duplicate: true}, nil
	}

	intent, err := s.intentRepo.FindById(ctx, referenceID)
	if err != nil {
		return nil, fmt.Errorf("load intent: %w", err)
	}
	if intent == nil || intent.Type != req.Type {
		return nil, fmt.Errorf("%w: intent %s", domain.ErrNotFound, referenceID)
	}
	if intent.OwnerID != principal.ID {
		s.log.Warn("payment proof submitted for another user's intent",
			logger.Security(),
			zap.String("user_id", principal.ID),
			zap.String("reference_id", referenceID.String()),
		)
		return nil, fmt.Errorf("%w: intent %s", domain.ErrNotFound, referenceID)
	}
	if intent.GatewayOrderID == "" || intent.GatewayOrderID != req.GatewayOrderID {
		span.SetStatus(codes.Error, "reference mismatch")
		s.log.Warn("gateway order does not belong to the referenced intent",
			logger.Security(),
			zap.String("user_id", principal.ID),
			zap.String("reference_id", referenceID.String()),
			zap.String("stored_gateway_order_id", intent.GatewayOrderID),
			zap.String("gateway_order_id", req.GatewayOrderID),
		)
		return nil, domain.ErrReferenceMismatch
	}

	method := req.PaymentMethod
	if method == "" {
		method = domain.DefaultPaymentMethod
	}
	return s.settle(ctx, intent, domain.Settlement{
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Signature:        req.Signature,
		Method:           method,
	})
}

func (s *verificationService) SettleFromGateway(ctx context.Context, audit domain.Payment, rec payment.PaymentRecord) (*SettleResult, error) {
	ctx, span := tracing.Tracer().Start(ctx, "SettleFromGateway")
	defer span.End()

	if !rec.Captured() {
		return nil, fmt.Errorf("payment %s is %s, not captured", rec.ID, rec.Status)
	}

	intent, err := s.intentRepo.FindById(ctx, audit.ReferenceID)
	if err != nil {
		return nil, fmt.Errorf("load intent: %w", err)
	}
	if intent == nil {
		return nil, fmt.Errorf("%w: intent %s for gateway order %s", domain.ErrNotFound, audit.ReferenceID, audit.GatewayOrderID)
	}
	if intent.GatewayOrderID != audit.GatewayOrderID {
		return nil, domain.ErrReferenceMismatch
	}

	method := rec.Method
	if method == "" {
		method = domain.DefaultPaymentMethod
	}
	return s.settle(ctx, intent, domain.Settlement{
		GatewayOrderID:   audit.GatewayOrderID,
		GatewayPaymentID: rec.ID,
		Method:           method,
	})
}

// settle applies a verified payment to intent and then to the audit ledger.
// The intent write is the one that decides the outcome; an audit failure
// after it is logged and left for reconciliation.
func (s *verificationService) settle(ctx context.Context, intent *domain.Intent, st domain.Settlement) (*SettleResult, error) {
	amount, err := s.pricing.SettlementAmount(intent)
	if err != nil {
		return nil, fmt.Errorf("recompute amount for intent %s: %w", intent.ID, err)
	}
	st.Amount = amount
	st.PaidAt = s.now().UTC()

	applied, err := s.intentRepo.Settle(ctx, nil, intent.ID, st)
	if err != nil {
		metrics.Settlements.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("settle intent: %w", err)
	}

	if !applied {
		current, err := s.intentRepo.FindById(ctx, intent.ID)
		if err != nil {
			return nil, fmt.Errorf("reload intent: %w", err)
		}
		if current == nil {
			return nil, domain.ErrNotFound
		}

		switch {
		case current.IsPaid() && current.GatewayPaymentID == st.GatewayPaymentID:
			metrics.Settlements.WithLabelValues("duplicate").Inc()
			// repairs an audit entry left pending by an earlier divergence
			s.markAuditPaid(ctx, current, st)
			s.remember(ctx, current, st.GatewayPaymentID)
			return &SettleResult{ReferenceID: current.ID, Duplicate: true}, nil

		case current.IsPaid():
			metrics.Settlements.WithLabelValues("already_settled").Inc()
			s.log.Warn("second payment captured for an already settled intent, refund review needed",
				zap.String("reference_id", current.ID.String()),
				zap.String("settled_payment_id", current.GatewayPaymentID),
				zap.String("gateway_payment_id", st.GatewayPaymentID),
				zap.String("gateway_order_id", st.GatewayOrderID),
			)
			return nil, domain.ErrAlreadySettled

		default:
			// Money moved for an intent that can no longer be fulfilled.
			s.markAuditPaid(ctx, current, st)
			metrics.Settlements.WithLabelValues("not_payable").Inc()
			s.log.Warn("verified payment for an intent that is no longer payable",
				zap.String("reference_id", current.ID.String()),
				zap.String("status", string(current.Status)),
				zap.String("gateway_payment_id", st.GatewayPaymentID),
			)
			return nil, domain.ErrNotPayable
		}
	}

	s.markAuditPaid(ctx, intent, st)
	s.remember(ctx, intent, st.GatewayPaymentID)

	metrics.Settlements.WithLabelValues("settled").Inc()
	s.log.Info("intent settled",
		zap.String("reference_id", intent.ID.String()),
		zap.String("type", string(intent.Type)),
		zap.String("gateway_order_id", st.GatewayOrderID),
		zap.String("gateway_payment_id", st.GatewayPaymentID),
		zap.Int64("amount", st.Amount),
	)
	return &SettleResult{ReferenceID: intent.ID}, nil
}

func (s *verificationService) markAuditPaid(ctx context.Context, intent *domain.Intent, st domain.Settlement) {
	ok, err := s.paymentRepo.MarkPaid(ctx, nil, st)
	if err == nil && ok {
		return
	}
	metrics.AuditDivergence.Inc()
	s.log.Error("audit ledger not updated after settlement",
		zap.String("reference_id", intent.ID.String()),
		zap.String("gateway_order_id", st.GatewayOrderID),
		zap.String("gateway_payment_id", st.GatewayPaymentID),
		zap.Bool("entry_matched", ok),
		zap.Error(err),
	)
}

func (s *verificationService) remember(ctx context.Context, intent *domain.Intent, paymentID string) {
	entry := cache.Entry{ReferenceID: intent.ID.String(), OwnerID: intent.OwnerID}
	if err := s.settled.Remember(ctx, paymentID, entry); err != nil {
		s.log.Warn("settlement cache write failed", zap.Error(err))
	}
}
