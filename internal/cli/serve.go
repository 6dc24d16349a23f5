package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"diggin-checkout/internal/database"
	"diggin-checkout/internal/infrastructure/auth"
	"diggin-checkout/internal/infrastructure/notify"
	"diggin-checkout/internal/server"
	"diggin-checkout/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the checkout HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "Apply the schema before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp("api")
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.cfg.Validate(); err != nil {
		return err
	}
	if err := a.openDatabase(ctx); err != nil {
		return err
	}
	if migrateOnStart {
		if err := database.Migrate(ctx, a.db); err != nil {
			return err
		}
	}
	a.openGateway()
	a.openCache()

	dispatcher, err := a.dispatcher()
	if err != nil {
		return err
	}

	srv := server.New(server.Deps{
		Checkout: service.NewCheckoutService(
			database.NewTransactor(a.db),
			a.intents,
			a.payments,
			a.gateway,
			a.calculator(),
			a.cfg.Currency,
			a.log,
		),
		Verification: a.verification(),
		Admin:        service.NewAdminService(a.intents, a.cfg.IsAdmin, a.log),
		Notifier:     dispatcher,
		Auth:         auth.NewSupabaseAuthenticator(a.cfg.JWTSecret),
		Health:       database.New(a.db, a.log),
		Log:          a.log,
	}, server.Options{
		CORSOrigins:    a.cfg.CORSOrigins,
		RateLimitRPS:   a.cfg.RateLimitRPS,
		RateLimitBurst: a.cfg.RateLimitBurst,
	})

	return srv.Run(ctx, a.cfg.HTTPAddr)
}

// dispatcher publishes to the notification queue when AMQP_URL is set and
// sends in-process otherwise.
func (a *app) dispatcher() (notify.Dispatcher, error) {
	if a.cfg.AMQPURL != "" {
		ch, closeConn, err := notify.Connect(a.cfg.AMQPURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, closeConn)
		a.log.Info("notifications go through the queue", zap.String("queue", notify.QueueName))
		return notify.NewQueueDispatcher(ch), nil
	}

	d := notify.NewAsyncDispatcher(a.sender(), a.cfg.AdminEmail, 20*time.Second, a.log)
	a.closers = append(a.closers, func() error { d.Wait(); return nil })
	return d, nil
}
