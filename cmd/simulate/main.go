// simulate runs a batch of checkouts through the client orchestrator against
// the sandbox gateway and shows what each one left behind in the stores.
// Some customers pay, some are declined, some close the widget and some pay
// but never get their proof back. A reconciliation pass runs at the end.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand/v2"
	"net/http/httptest"
	"os"
	"time"

	"diggin-checkout/internal/checkout"
	"diggin-checkout/internal/config"
	"diggin-checkout/internal/database"
	"diggin-checkout/internal/domain"
	"diggin-checkout/internal/infrastructure/auth"
	"diggin-checkout/internal/infrastructure/cache"
	"diggin-checkout/internal/infrastructure/notify"
	"diggin-checkout/internal/infrastructure/payment"
	"diggin-checkout/internal/logger"
	"diggin-checkout/internal/pricing"
	"diggin-checkout/internal/repo"
	"diggin-checkout/internal/server"
	"diggin-checkout/internal/service"
	"diggin-checkout/internal/signature"
	"diggin-checkout/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const (
	sandboxKey    = "rzp_test_sandbox"
	sandboxSecret = "sandbox-secret"
	jwtSecret     = "sandbox-jwt-secret"
)

var (
	checkouts   int
	usePostgres bool
	dismissPct  int
)

func main() {
	cmd := &cobra.Command{
		Use:           "simulate",
		Short:         "Run sandbox checkouts end to end",
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().IntVarP(&checkouts, "checkouts", "n", 20, "Number of checkouts to run")
	cmd.Flags().BoolVar(&usePostgres, "postgres", false, "Store in DATABASE_URL instead of memory")
	cmd.Flags().IntVar(&dismissPct, "dismiss", 10, "Percent of customers who close the widget")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	gin.SetMode(gin.ReleaseMode)

	log, err := logger.New("simulate", "WARN")
	if err != nil {
		return err
	}
	defer log.Sync()

	var (
		tx       database.Transactor = database.NopTransactor{}
		intents  repo.IntentRepo     = repo.NewMemoryIntentRepo()
		payments repo.PaymentRepo    = repo.NewMemoryPaymentRepo()
	)
	if usePostgres {
		db, err := openPostgres(ctx)
		if err != nil {
			return err
		}
		defer db.Close()
		tx = database.NewTransactor(db)
		intents = repo.NewIntentRepo(db)
		payments = repo.NewPaymentRepo(db)
	}

	gateway := payment.NewMockGateway(sandboxKey, sandboxSecret, payment.WithLatency(20*time.Millisecond))
	calc := pricing.NewCalculator(pricing.DefaultMenu(), 20, 20)
	verification := service.NewVerificationService(intents, payments, signature.NewVerifier(sandboxSecret), calc, cache.NewMemory(), log)
	dispatcher := notify.NewAsyncDispatcher(notify.NewLogSender(log), "", 5*time.Second, log)

	srv := server.New(server.Deps{
		Checkout:     service.NewCheckoutService(tx, intents, payments, gateway, calc, "INR", log),
		Verification: verification,
		Admin:        service.NewAdminService(intents, func(string) bool { return false }, log),
		Notifier:     dispatcher,
		Auth:         auth.NewSupabaseAuthenticator(jwtSecret),
		Log:          log,
	}, server.Options{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	session, err := sandboxSession()
	if err != nil {
		return err
	}

	widget := checkout.NewSandboxWidget(gateway)
	widget.Dismiss = func() bool { return rand.IntN(100) < dismissPct }
	orchestrator := checkout.NewOrchestrator(checkout.NewHTTPBackend(ts.URL, ""), widget, log)

	menu := []string{"Rose Cardamom Latte", "Lavender Honey Oat Latte"}
	fmt.Printf("--- running %d sandbox checkouts ---\n", checkouts)
	for i := 0; i < checkouts; i++ {
		req := checkout.Request{
			Type:  domain.IntentFoodOrder,
			Items: []domain.LineItem{{Name: menu[i%len(menu)], Quantity: 1 + i%3}},
		}
		if i%4 == 3 {
			req = checkout.Request{
				Type:    domain.IntentReservation,
				Booking: domain.Booking{Guests: 2 + i%6, Date: "2026-12-24", Time: "20:00", Name: session.Name},
			}
		}

		res := orchestrator.Checkout(ctx, session, req)
		fmt.Printf("[%2d] %-11s %-8s ₹%-5d", i+1, req.Type, res.State, res.Amount)
		if res.Failure != checkout.FailureNone {
			fmt.Printf(" %s: %s", res.Failure, res.Message)
		}
		fmt.Println()
		printStored(ctx, intents, payments, res)
	}
	orchestrator.Wait()
	dispatcher.Wait()

	fmt.Println("--- reconciling ---")
	rw := worker.NewReconciliationWorker(tx, intents, payments, gateway, verification, worker.Options{}, log)
	report, err := rw.RunOnce(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("checked %d, repaired %d, abandoned %d, errors %d\n",
		report.Checked, report.Repaired, report.Abandoned, report.Errors)
	return nil
}

func printStored(ctx context.Context, intents repo.IntentRepo, payments repo.PaymentRepo, res checkout.Result) {
	id, err := uuid.Parse(res.ReferenceID)
	if err != nil {
		return
	}
	intent, err := intents.FindById(ctx, id)
	if err != nil || intent == nil {
		fmt.Printf("     intent %s missing: %v\n", id, err)
		return
	}
	line := fmt.Sprintf("     intent %s/%s", intent.Status, intent.PaymentStatus)
	if res.GatewayOrderID != "" {
		if audit, err := payments.FindByGatewayOrderID(ctx, res.GatewayOrderID); err == nil && audit != nil {
			line += fmt.Sprintf("  audit %s", audit.Status)
		}
	}
	fmt.Println(line)
}

func openPostgres(ctx context.Context) (*sql.DB, error) {
	cfg := config.Load()
	db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func sandboxSession() (checkout.Session, error) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":           "sandbox-customer",
		"email":         "customer@sandbox.test",
		"exp":           time.Now().Add(time.Hour).Unix(),
		"user_metadata": map[string]any{"full_name": "Sandbox Customer"},
	}).SignedString([]byte(jwtSecret))
	if err != nil {
		return checkout.Session{}, err
	}
	return checkout.Session{
		AccessToken: token,
		Email:       "customer@sandbox.test",
		Name:        "Sandbox Customer",
	}, nil
}
