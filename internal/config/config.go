package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	ServiceName string
	HTTPAddr    string
	LogLevel    string

	DatabaseURL string

	GatewayMode       string
	RazorpayKeyID     string
	RazorpayKeySecret string
	Currency          string

	JWTSecret    string
	AdminUserIDs []string

	ReservationFeePerGuest int64
	ReservationMaxGuests   int

	RedisAddr          string
	SettlementCacheTTL time.Duration

	AMQPURL string

	MailjetAPIKey    string
	MailjetSecretKey string
	MailFrom         string
	MailFromName     string
	AdminEmail       string

	OTLPEndpoint string

	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string

	ReconcileInterval   time.Duration
	ReconcileStuckAfter time.Duration
	AbandonAfter        time.Duration
}

const (
	GatewayRazorpay = "razorpay"
	GatewaySandbox  = "sandbox"
)

// Load reads the process environment once. Nothing else in the service
// looks at environment variables.
func Load() Config {
	return Config{
		ServiceName: GetEnv("SERVICE_NAME", "checkout"),
		HTTPAddr:    GetEnv("HTTP_ADDR", ":8080"),
		LogLevel:    GetEnv("LOG_LEVEL", "INFO"),

		DatabaseURL: GetEnv("DATABASE_URL", blueprintDSN()),

		GatewayMode:       GetEnv("GATEWAY_MODE", GatewayRazorpay),
		RazorpayKeyID:     GetEnv("RAZORPAY_KEY_ID", ""),
		RazorpayKeySecret: GetEnv("RAZORPAY_KEY_SECRET", ""),
		Currency:          GetEnv("CURRENCY", "INR"),

		JWTSecret:    GetEnv("SUPABASE_JWT_SECRET", ""),
		AdminUserIDs: GetList("ADMIN_USER_IDS"),

		ReservationFeePerGuest: int64(GetInt("RESERVATION_FEE_PER_GUEST", 20)),
		ReservationMaxGuests:   GetInt("RESERVATION_MAX_GUESTS", 20),

		RedisAddr:          GetEnv("REDIS_ADDR", ""),
		SettlementCacheTTL: GetDuration("SETTLEMENT_CACHE_TTL", 24*time.Hour),

		AMQPURL: GetEnv("AMQP_URL", ""),

		MailjetAPIKey:    GetEnv("MAILJET_API_KEY", ""),
		MailjetSecretKey: GetEnv("MAILJET_SECRET_KEY", ""),
		MailFrom:         GetEnv("MAIL_FROM", "noreply@diggin.co.in"),
		MailFromName:     GetEnv("MAIL_FROM_NAME", "Diggin Café"),
		AdminEmail:       GetEnv("ADMIN_EMAIL", ""),

		OTLPEndpoint: GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		RateLimitRPS:   GetFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: GetInt("RATE_LIMIT_BURST", 10),
		CORSOrigins:    GetList("CORS_ALLOWED_ORIGINS"),

		ReconcileInterval:   GetDuration("RECONCILE_INTERVAL", time.Minute),
		ReconcileStuckAfter: GetDuration("RECONCILE_STUCK_AFTER", 15*time.Minute),
		AbandonAfter:        GetDuration("ABANDON_AFTER", 0),
	}
}

// Validate checks the settings the HTTP API cannot run without.
func (c Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.RazorpayKeySecret == "" {
		errs = append(errs, errors.New("RAZORPAY_KEY_SECRET is required"))
	}
	if c.GatewayMode == GatewayRazorpay && c.RazorpayKeyID == "" {
		errs = append(errs, errors.New("RAZORPAY_KEY_ID is required"))
	}
	if c.GatewayMode != GatewayRazorpay && c.GatewayMode != GatewaySandbox {
		errs = append(errs, fmt.Errorf("GATEWAY_MODE %q is not one of razorpay, sandbox", c.GatewayMode))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("SUPABASE_JWT_SECRET is required"))
	}
	if c.ReservationFeePerGuest <= 0 || c.ReservationMaxGuests < 1 {
		errs = append(errs, errors.New("reservation fee and max guests must be positive"))
	}
	return errors.Join(errs...)
}

func (c Config) IsAdmin(userID string) bool {
	for _, id := range c.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// blueprintDSN keeps the BLUEPRINT_DB_* variables working.
func blueprintDSN() string {
	host := os.Getenv("BLUEPRINT_DB_HOST")
	if host == "" {
		return ""
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		os.Getenv("BLUEPRINT_DB_USERNAME"),
		os.Getenv("BLUEPRINT_DB_PASSWORD"),
		host,
		GetEnv("BLUEPRINT_DB_PORT", "5432"),
		os.Getenv("BLUEPRINT_DB_DATABASE"),
		GetEnv("BLUEPRINT_DB_SCHEMA", "public"),
	)
}

// GetEnv retrieves an environment variable or returns a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// MustGetEnv retrieves an environment variable or panics if not set
func MustGetEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic("Required environment variable not set: " + key)
	}
	return value
}

func GetInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func GetFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

func GetDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func GetList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
