package config

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Session timing defaults mirror the production deployment: 30-day sessions
// renewed when accessed in the trailing 15 days, 10-minute sealed tokens.
const (
	DefaultSessionTTL         = 30 * 24 * time.Hour
	DefaultSessionRenewWindow = 15 * 24 * time.Hour
	DefaultCrossDomainTTL     = 10 * time.Minute
)

type Config struct {
	Env      string
	HTTPAddr string

	// AuthHostname is the canonical identity host; PartnerHostnames is the
	// static allow-list of hosts sessions may be propagated to.
	AuthHostname     string
	PartnerHostnames []string

	// InternalAuthSecret lets the co-located SSR front-end assert the true
	// client hostname when proxying a session check.
	InternalAuthSecret string

	TokenSigningSecret string
	EncryptionKey      []byte

	SessionTTL         time.Duration
	SessionRenewWindow time.Duration
	CrossDomainTTL     time.Duration

	DBDriver string
	DBDSN    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	TurnstileSecret string
	TurnstileURL    string

	ResendAPIKey string
	EmailFrom    string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	APIRateLimitRPM  int
	AuthRateLimitRPM int
	OtpRateLimitRPM  int

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsEnabled        bool
	OTELTracesEnabled         bool
	OTELLogsEnabled           bool
	OTELMetricsExportInterval time.Duration

	SessionPurgeInterval time.Duration
	ShutdownTimeout      time.Duration
}

func (c *Config) IsDev() bool { return c.Env == "dev" }

// IsPartnerHostname reports whether host is in the cross-domain allow-list.
func (c *Config) IsPartnerHostname(host string) bool {
	for _, h := range c.PartnerHostnames {
		if h == host {
			return true
		}
	}
	return false
}

func Load(ctx context.Context) (*Config, error) {
	cfg, err := load()
	recordConfigLoadEvent(ctx, envName(), outcome(err), classifyConfigLoadError(err))
	return cfg, err
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func envName() string {
	return getEnv("APP_ENV", "dev")
}

func load() (*Config, error) {
	cfg := &Config{
		Env:      envName(),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		AuthHostname:       getEnv("AUTH_HOSTNAME", "auth.localhost"),
		PartnerHostnames:   getList("PARTNER_HOSTNAMES"),
		InternalAuthSecret: os.Getenv("INTERNAL_AUTH_SECRET"),

		TokenSigningSecret: os.Getenv("TOKEN_SIGNING_SECRET"),

		DBDriver: getEnv("DB_DRIVER", "sqlite"),
		DBDSN:    getEnv("DB_DSN", "file:identity.db?cache=shared"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		TurnstileSecret: os.Getenv("TURNSTILE_SECRET"),
		TurnstileURL:    getEnv("TURNSTILE_URL", "https://challenges.cloudflare.com/turnstile/v0/siteverify"),

		ResendAPIKey: os.Getenv("RESEND_API_KEY"),
		EmailFrom:    getEnv("EMAIL_FROM", "no-reply <no-reply@storegrid.dev>"),

		GoogleClientID:     os.Getenv("GOOGLE_OAUTH_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_OAUTH_CLIENT_SECRET"),
		GoogleRedirectURL:  os.Getenv("GOOGLE_OAUTH_REDIRECT_URL"),

		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "identity-service"),
		OTELEnvironment:          getEnv("OTEL_ENVIRONMENT", envName()),
		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}

	var err error
	if cfg.EncryptionKey, err = getKey("ENCRYPTION_KEY"); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = getDuration("SESSION_TTL", DefaultSessionTTL); err != nil {
		return nil, err
	}
	if cfg.SessionRenewWindow, err = getDuration("SESSION_RENEW_WINDOW", DefaultSessionRenewWindow); err != nil {
		return nil, err
	}
	if cfg.CrossDomainTTL, err = getDuration("CROSS_DOMAIN_TTL", DefaultCrossDomainTTL); err != nil {
		return nil, err
	}
	if cfg.APIRateLimitRPM, err = getInt("API_RATE_LIMIT_RPM", 300); err != nil {
		return nil, err
	}
	if cfg.AuthRateLimitRPM, err = getInt("AUTH_RATE_LIMIT_RPM", 30); err != nil {
		return nil, err
	}
	if cfg.OtpRateLimitRPM, err = getInt("OTP_RATE_LIMIT_RPM", 10); err != nil {
		return nil, err
	}
	if cfg.OTELMetricsEnabled, err = getBool("OTEL_METRICS_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.OTELTracesEnabled, err = getBool("OTEL_TRACES_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.OTELLogsEnabled, err = getBool("OTEL_LOGS_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.OTELExporterOTLPInsecure, err = getBool("OTEL_EXPORTER_OTLP_INSECURE", true); err != nil {
		return nil, err
	}
	if cfg.OTELMetricsExportInterval, err = getDuration("OTEL_METRICS_EXPORT_INTERVAL", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.SessionPurgeInterval, err = getDuration("SESSION_PURGE_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.TokenSigningSecret == "" {
		return fmt.Errorf("validate config: TOKEN_SIGNING_SECRET is required")
	}
	if len(c.EncryptionKey) != 32 {
		return fmt.Errorf("validate config: ENCRYPTION_KEY must decode to 32 bytes, got %d", len(c.EncryptionKey))
	}
	if c.SessionRenewWindow > c.SessionTTL {
		return fmt.Errorf("validate config: SESSION_RENEW_WINDOW exceeds SESSION_TTL")
	}
	if !c.IsDev() {
		if c.TurnstileSecret == "" {
			return fmt.Errorf("validate config: TURNSTILE_SECRET is required outside dev")
		}
		if c.InternalAuthSecret == "" {
			return fmt.Errorf("validate config: INTERNAL_AUTH_SECRET is required outside dev")
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getKey(key string) ([]byte, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return nil, fmt.Errorf("validate config: %s is required", key)
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", key, err)
	}
	return decoded, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}

func getList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
