package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// minProductionSecret is the shortest JWT secret accepted when ENV=production.
const minProductionSecret = 32

type Config struct {
	Port        string
	Env         string
	DatabaseURL string

	JWTSecret        string
	JWTAccessExpiry  time.Duration
	JWTRefreshExpiry time.Duration

	FrontendCallbackURL string
	PasswordResetURL    string
	BaseURL             string

	Google OAuthConfig

	SES SESConfig

	MetricsAddr string
	LogLevel    string
	LogFormat   string

	InviteExpiryDays int
	PlansFile        string
}

// SESConfig configures outgoing mail. Mail is disabled when FromEmail is empty.
type SESConfig struct {
	Region    string
	FromEmail string
	FromName  string
}

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Load reads the process environment, after applying a .env file if one is
// present. Every malformed or missing value is reported in a single error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var r reader
	cfg := &Config{
		Port:        r.str("PORT", "8080"),
		Env:         r.str("ENV", "development"),
		DatabaseURL: r.str("DATABASE_URL", ""),

		JWTSecret:        r.required("JWT_SECRET"),
		JWTAccessExpiry:  r.duration("JWT_ACCESS_EXPIRY", 15*time.Minute),
		JWTRefreshExpiry: r.duration("JWT_REFRESH_EXPIRY", 7*24*time.Hour),

		FrontendCallbackURL: r.str("FRONTEND_CALLBACK_URL", "http://localhost:5173/auth/callback"),
		PasswordResetURL:    r.str("PASSWORD_RESET_URL", "http://localhost:5173/reset-password"),
		BaseURL:             r.str("BASE_URL", "http://localhost:8080"),

		Google: OAuthConfig{
			ClientID:     r.str("GOOGLE_CLIENT_ID", ""),
			ClientSecret: r.str("GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:  r.str("GOOGLE_REDIRECT_URL", ""),
		},

		SES: SESConfig{
			Region:    r.str("SES_REGION", "eu-west-1"),
			FromEmail: r.str("SES_FROM_EMAIL", ""),
			FromName:  r.str("SES_FROM_NAME", "ListsHub"),
		},

		MetricsAddr: r.str("METRICS_ADDR", ":9090"),
		LogLevel:    r.str("LOG_LEVEL", "info"),
		LogFormat:   r.str("LOG_FORMAT", "text"),

		InviteExpiryDays: r.positiveInt("INVITE_EXPIRY_DAYS", 7),
		PlansFile:        r.str("PLANS_FILE", ""),
	}

	if cfg.IsProduction() && cfg.JWTSecret != "" && len(cfg.JWTSecret) < minProductionSecret {
		r.fail("JWT_SECRET", fmt.Errorf("must be at least %d bytes in production", minProductionSecret))
	}
	if cfg.JWTAccessExpiry >= cfg.JWTRefreshExpiry {
		r.fail("JWT_ACCESS_EXPIRY", errors.New("must be shorter than JWT_REFRESH_EXPIRY"))
	}

	if err := errors.Join(r.errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) InviteExpiry() time.Duration {
	return time.Duration(c.InviteExpiryDays) * 24 * time.Hour
}

// reader collects parse errors so they can be reported together.
type reader struct {
	errs []error
}

func (r *reader) fail(key string, err error) {
	r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
}

func (r *reader) str(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func (r *reader) required(key string) string {
	value := os.Getenv(key)
	if value == "" {
		r.fail(key, errors.New("is required"))
	}
	return value
}

func (r *reader) duration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		r.fail(key, fmt.Errorf("invalid duration %q", raw))
		return fallback
	}
	return d
}

func (r *reader) positiveInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		r.fail(key, fmt.Errorf("invalid positive integer %q", raw))
		return fallback
	}
	return n
}
