package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"diggin-checkout/internal/database"
	"diggin-checkout/internal/domain"
	"diggin-checkout/internal/infrastructure/payment"
	"diggin-checkout/internal/metrics"
	"diggin-checkout/internal/repo"
	"diggin-checkout/internal/service"

	"go.uber.org/zap"
)

const batchSize = 100

// Settler applies a captured gateway payment to its intent.
type Settler interface {
	SettleFromGateway(ctx context.Context, audit domain.Payment, rec payment.PaymentRecord) (*service.SettleResult, error)
}

type Options struct {
	Interval time.Duration
	// StuckAfter is how old a pending audit entry must be before the
	// gateway is asked about it.
	StuckAfter time.Duration
	// AbandonAfter > 0 fails attempts with no captured payment once they are
	// this old. Zero keeps them pending forever.
	AbandonAfter time.Duration
}

type Report struct {
	Checked   int
	Repaired  int
	Abandoned int
	Errors    int
}

// ReconciliationWorker asks the gateway about checkouts that never settled
// and brings the stores in line with what the gateway recorded.
type ReconciliationWorker struct {
	tx          database.Transactor
	intentRepo  repo.IntentRepo
	paymentRepo repo.PaymentRepo
	gateway     payment.Gateway
	settler     Settler
	opts        Options
	log         *zap.Logger
	now         func() time.Time
}

func NewReconciliationWorker(
	tx database.Transactor,
	intentRepo repo.IntentRepo,
	paymentRepo repo.PaymentRepo,
	gateway payment.Gateway,
	settler Settler,
	opts Options,
	log *zap.Logger,
) *ReconciliationWorker {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	return &ReconciliationWorker{
		tx:          tx,
		intentRepo:  intentRepo,
		paymentRepo: paymentRepo,
		gateway:     gateway,
		settler:     settler,
		opts:        opts,
		log:         log,
		now:         time.Now,
	}
}

// Run reconciles every interval until ctx is cancelled.
func (rw *ReconciliationWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(rw.opts.Interval)
	defer ticker.Stop()

	rw.log.Info("reconciliation worker started",
		zap.Duration("interval", rw.opts.Interval),
		zap.Duration("stuck_after", rw.opts.StuckAfter),
		zap.Duration("abandon_after", rw.opts.AbandonAfter),
	)

	for {
		select {
		case <-ctx.Done():
			rw.log.Info("reconciliation worker stopped")
			return nil
		case <-ticker.C:
			if _, err := rw.RunOnce(ctx); err != nil {
				rw.log.Error("reconciliation pass failed", zap.Error(err))
			}
		}
	}
}

// RunOnce makes a single pass. Per-entry failures are counted in the report
// and do not stop the pass.
func (rw *ReconciliationWorker) RunOnce(ctx context.Context) (Report, error) {
	var report Report
	now := rw.now()

	stuck, err := rw.paymentRepo.FindPendingBefore(ctx, now.Add(-rw.opts.StuckAfter), batchSize)
	if err != nil {
		return report, fmt.Errorf("find pending audit entries: %w", err)
	}

	for _, audit := range stuck {
		report.Checked++
		if err := rw.reconcile(ctx, now, audit, &report); err != nil {
			report.Errors++
			metrics.ReconciliationActions.WithLabelValues("error").Inc()
			rw.log.Error("reconcile audit entry",
				zap.String("gateway_order_id", audit.GatewayOrderID),
				zap.String("reference_id", audit.ReferenceID.String()),
				zap.Error(err),
			)
		}
	}

	if rw.opts.AbandonAfter > 0 {
		if err := rw.abandonUnsubmitted(ctx, now, &report); err != nil {
			return report, err
		}
	}

	if report.Checked > 0 || report.Abandoned > 0 {
		rw.log.Info("reconciliation pass finished",
			zap.Int("checked", report.Checked),
			zap.Int("repaired", report.Repaired),
			zap.Int("abandoned", report.Abandoned),
			zap.Int("errors", report.Errors),
		)
	}
	return report, nil
}

func (rw *ReconciliationWorker) reconcile(ctx context.Context, now time.Time, audit domain.Payment, report *Report) error {
	records, err := rw.gateway.FetchPayments(ctx, audit.GatewayOrderID)
	if err != nil {
		return fmt.Errorf("fetch gateway payments: %w", err)
	}

	if rec, ok := payment.CapturedPayment(records); ok {
		res, err := rw.settler.SettleFromGateway(ctx, audit, rec)
		switch {
		case err == nil:
			report.Repaired++
			action := "settled"
			if res.Duplicate {
				action = "audit_repaired"
			}
			metrics.ReconciliationActions.WithLabelValues(action).Inc()
			rw.log.Warn("captured payment found for unsettled checkout",
				zap.String("action", action),
				zap.String("gateway_order_id", audit.GatewayOrderID),
				zap.String("gateway_payment_id", rec.ID),
				zap.String("reference_id", res.ReferenceID.String()),
			)
			return nil
		case errors.Is(err, domain.ErrNotPayable), errors.Is(err, domain.ErrAlreadySettled):
			// money is recorded; a person has to decide on the refund
			report.Repaired++
			metrics.ReconciliationActions.WithLabelValues("refund_review").Inc()
			return nil
		default:
			return fmt.Errorf("settle from gateway: %w", err)
		}
	}

	if rw.opts.AbandonAfter <= 0 || !audit.CreatedAt.Before(now.Add(-rw.opts.AbandonAfter)) {
		return nil
	}

	err = rw.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		if _, err := rw.paymentRepo.MarkFailed(ctx, tx, audit.GatewayOrderID); err != nil {
			return err
		}
		_, err := rw.intentRepo.MarkAbandoned(ctx, tx, audit.ReferenceID)
		return err
	})
	if err != nil {
		return fmt.Errorf("abandon checkout: %w", err)
	}

	report.Abandoned++
	metrics.ReconciliationActions.WithLabelValues("abandoned").Inc()
	rw.log.Info("abandoned checkout with no captured payment",
		zap.String("gateway_order_id", audit.GatewayOrderID),
		zap.String("reference_id", audit.ReferenceID.String()),
		zap.Int("attempts", len(records)),
	)
	return nil
}

// abandonUnsubmitted cancels intents whose gateway order was never created.
func (rw *ReconciliationWorker) abandonUnsubmitted(ctx context.Context, now time.Time, report *Report) error {
	intents, err := rw.intentRepo.FindUnsubmittedBefore(ctx, now.Add(-rw.opts.AbandonAfter), batchSize)
	if err != nil {
		return fmt.Errorf("find unsubmitted intents: %w", err)
	}
	for _, intent := range intents {
		ok, err := rw.intentRepo.MarkAbandoned(ctx, nil, intent.ID)
		if err != nil {
			report.Errors++
			rw.log.Error("abandon unsubmitted intent", zap.String("reference_id", intent.ID.String()), zap.Error(err))
			continue
		}
		if ok {
			report.Abandoned++
			metrics.ReconciliationActions.WithLabelValues("abandoned").Inc()
		}
	}
	return nil
}
