package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"diggin-checkout/internal/database"
	"diggin-checkout/internal/worker"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	reconcileInterval time.Duration
	reconcileCmd      = &cobra.Command{
		Use:   "reconcile",
		Short: "Repair checkouts the gateway knows more about than we do",
		Long: `reconcile asks the gateway about every pending payment older than
RECONCILE_STUCK_AFTER. Captured payments are settled. When ABANDON_AFTER is
set, attempts older than it with no captured payment are marked failed.

Without --interval a single pass is made.`,
		RunE: runReconcile,
	}
)

func init() {
	reconcileCmd.Flags().DurationVar(&reconcileInterval, "interval", 0, "Keep running with one pass per interval")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp("reconcile")
	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.RazorpayKeySecret == "" {
		return fmt.Errorf("RAZORPAY_KEY_SECRET is required")
	}
	if err := a.openDatabase(ctx); err != nil {
		return err
	}
	a.openGateway()
	a.openCache()

	interval := reconcileInterval
	if interval <= 0 {
		interval = a.cfg.ReconcileInterval
	}
	rw := worker.NewReconciliationWorker(
		database.NewTransactor(a.db),
		a.intents,
		a.payments,
		a.gateway,
		a.verification(),
		worker.Options{
			Interval:     interval,
			StuckAfter:   a.cfg.ReconcileStuckAfter,
			AbandonAfter: a.cfg.AbandonAfter,
		},
		a.log,
	)

	if reconcileInterval > 0 {
		return rw.Run(ctx)
	}

	report, err := rw.RunOnce(ctx)
	if err != nil {
		return err
	}
	a.log.Info("reconciliation finished",
		zap.Int("checked", report.Checked),
		zap.Int("repaired", report.Repaired),
		zap.Int("abandoned", report.Abandoned),
		zap.Int("errors", report.Errors),
	)
	if report.Errors > 0 {
		return fmt.Errorf("%d entries could not be reconciled", report.Errors)
	}
	return nil
}
