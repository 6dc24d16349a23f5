package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"diggin-checkout/internal/config"
	"diggin-checkout/internal/database"
	"diggin-checkout/internal/infrastructure/cache"
	"diggin-checkout/internal/infrastructure/notify"
	"diggin-checkout/internal/infrastructure/payment"
	"diggin-checkout/internal/logger"
	"diggin-checkout/internal/pricing"
	"diggin-checkout/internal/repo"
	"diggin-checkout/internal/service"
	"diggin-checkout/internal/signature"
	"diggin-checkout/internal/tracing"

	"go.uber.org/zap"
)

// app holds the dependencies shared by the commands. close releases them in
// reverse order of acquisition.
type app struct {
	cfg config.Config
	log *zap.Logger
	db  *sql.DB

	intents  repo.IntentRepo
	payments repo.PaymentRepo
	gateway  payment.Gateway
	settled  cache.Settlements

	closers []func() error
}

func newApp(component string) (*app, error) {
	cfg := config.Load()

	log, err := logger.New(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	log = log.With(zap.String("component", component))
	a := &app{cfg: cfg, log: log}
	a.closers = append(a.closers, func() error { _ = log.Sync(); return nil })

	shutdown, err := tracing.Init(cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.closers = append(a.closers, func() error { return shutdown(context.Background()) })

	return a, nil
}

func (a *app) openDatabase(ctx context.Context) error {
	if a.cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	db, err := database.NewPostgres(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return err
	}
	a.db = db
	a.closers = append(a.closers, db.Close)
	a.intents = repo.NewIntentRepo(db)
	a.payments = repo.NewPaymentRepo(db)
	return nil
}

func (a *app) openGateway() {
	if a.cfg.GatewayMode == config.GatewaySandbox {
		a.log.Warn("using the in-process sandbox gateway, no real payments are taken")
		a.gateway = payment.NewMockGateway(a.cfg.RazorpayKeyID, a.cfg.RazorpayKeySecret)
		return
	}
	a.gateway = payment.NewRazorpayGateway(a.cfg.RazorpayKeyID, a.cfg.RazorpayKeySecret, a.log)
}

func (a *app) openCache() {
	a.settled = cache.Nop{}
	if a.cfg.RedisAddr == "" {
		return
	}
	rc, err := cache.NewRedisSettlements(a.cfg.RedisAddr, a.cfg.SettlementCacheTTL)
	if err != nil {
		// the cache is only a fast path for replays
		a.log.Warn("settlement cache unavailable, continuing without it", zap.Error(err))
		return
	}
	a.settled = rc
	a.closers = append(a.closers, rc.Close)
}

func (a *app) calculator() *pricing.Calculator {
	return pricing.NewCalculator(pricing.DefaultMenu(), a.cfg.ReservationFeePerGuest, a.cfg.ReservationMaxGuests)
}

func (a *app) verification() service.VerificationService {
	return service.NewVerificationService(
		a.intents,
		a.payments,
		signature.NewVerifier(a.cfg.RazorpayKeySecret),
		a.calculator(),
		a.settled,
		a.log,
	)
}

func (a *app) sender() notify.Sender {
	if a.cfg.MailjetAPIKey == "" || a.cfg.MailjetSecretKey == "" {
		a.log.Warn("MAILJET_API_KEY not set, emails are logged instead of sent")
		return notify.NewLogSender(a.log)
	}
	return notify.NewMailjetSender(a.cfg.MailjetAPIKey, a.cfg.MailjetSecretKey, a.cfg.MailFrom, a.cfg.MailFromName)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close", zap.Error(err))
		}
	}
}
