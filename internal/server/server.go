package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"diggin-checkout/internal/api"
	"diggin-checkout/internal/database"
	"diggin-checkout/internal/infrastructure/auth"
	"diggin-checkout/internal/infrastructure/notify"
	"diggin-checkout/internal/metrics"
	"diggin-checkout/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Deps struct {
	Checkout     service.CheckoutService
	Verification service.VerificationService
	Admin        service.AdminService
	Notifier     notify.Dispatcher
	Auth         auth.Authenticator
	// Health is optional; without it /health only reports the process.
	Health database.Service
	Log    *zap.Logger
}

type Options struct {
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

// Server is the checkout HTTP API
type Server struct {
	Deps
	ipLimiter   *keyedLimiter
	userLimiter *keyedLimiter
	router      *gin.Engine
}

func New(deps Deps, opts Options) *Server {
	s := &Server{
		Deps:        deps,
		ipLimiter:   newKeyedLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
		userLimiter: newKeyedLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
		router:      gin.New(),
	}

	r := s.router
	r.Use(gin.Recovery(), accessLog(deps.Log), metrics.GinMiddleware(), corsMiddleware(opts.CORSOrigins))

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authed := []gin.HandlerFunc{s.limitByIP, s.requireAuth, s.limitByPrincipal}
	anonymous := []gin.HandlerFunc{s.limitByIP}

	r.POST(api.PathCreateOrder, append(authed, s.handleCreateOrder)...)
	r.POST(api.PathVerifyPayment, append(authed, s.handleVerifyPayment)...)
	r.POST(api.PathSendNotification, append(anonymous, s.handleSendNotification)...)

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/checkout/orders", append(authed, s.handleCreateOrder)...)
		apiGroup.POST("/checkout/verify", append(authed, s.handleVerifyPayment)...)
		apiGroup.POST("/notifications", append(anonymous, s.handleSendNotification)...)
		apiGroup.GET("/me/intents", append(authed, s.handleListMine)...)
		apiGroup.GET("/admin/intents", append(authed, s.handleListAll)...)
		apiGroup.PATCH("/admin/intents/:id/status", append(authed, s.handleUpdateStatus)...)
	}

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Log.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		s.Log.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowHeaders: []string{
			"Authorization", "Content-Type", "X-Client-Info", "Apikey",
		},
		MaxAge: 12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
