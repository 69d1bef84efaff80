package app

import (
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/storegrid/identity-service/internal/config"
	"github.com/storegrid/identity-service/internal/http/handler"
	"github.com/storegrid/identity-service/internal/http/middleware"
	"github.com/storegrid/identity-service/internal/http/router"
	"github.com/storegrid/identity-service/internal/observability"
	"github.com/storegrid/identity-service/internal/repository"
	"github.com/storegrid/identity-service/internal/security"
	"github.com/storegrid/identity-service/internal/service"
)

func provideCodec(cfg *config.Config) (*security.Codec, error) {
	return security.NewCodec(cfg.TokenSigningSecret, cfg.EncryptionKey)
}

func provideVault(cfg *config.Config) (*security.FieldVault, error) {
	return security.NewFieldVault(cfg.EncryptionKey)
}

func provideSessionService(sessions repository.SessionRepository, cfg *config.Config) *service.SessionService {
	return service.NewSessionService(sessions, cfg.SessionTTL, cfg.SessionRenewWindow)
}

// provideRedis is nil when no address is configured; the consumers that
// depend on it all have in-process fallbacks.
func provideRedis(cfg *config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

func provideLoginGuard(client *redis.Client) service.LoginGuard {
	if client == nil {
		return service.NoopLoginGuard{}
	}
	return service.NewRedisLoginGuard(client)
}

func provideRateLimitBackend(client *redis.Client) middleware.Limiter {
	if client == nil {
		return middleware.NewLocalLimiter()
	}
	return middleware.NewRedisLimiter(client)
}

// provideTurnstile only skips verification in dev without a secret;
// production config validation guarantees the secret is set.
func provideTurnstile(cfg *config.Config) service.TurnstileVerifier {
	if cfg.IsDev() && cfg.TurnstileSecret == "" {
		return service.InsecureTurnstileVerifier{}
	}
	return service.NewTurnstileVerifier(cfg.TurnstileSecret, cfg.TurnstileURL)
}

func provideEmailSender(cfg *config.Config) service.EmailSender {
	if cfg.ResendAPIKey == "" {
		return service.LogSender{}
	}
	return service.NewResendSender(cfg.ResendAPIKey, cfg.EmailFrom)
}

func provideTwoFactorService(users repository.UserRepository, sessions *service.SessionService, codec *security.Codec, vault *security.FieldVault, cfg *config.Config) *service.TwoFactorService {
	return service.NewTwoFactorService(users, sessions, codec, vault, cfg.AuthHostname)
}

func provideGoogleService(users repository.UserRepository, sessions *service.SessionService, twoFactor *service.TwoFactorService, codec *security.Codec, cfg *config.Config) *service.GoogleService {
	return service.NewGoogleService(users, sessions, twoFactor, codec, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
}

func provideCrossDomainService(sessions *service.SessionService, codec *security.Codec, turnstile service.TurnstileVerifier, cfg *config.Config) *service.CrossDomainService {
	return service.NewCrossDomainService(sessions, codec, turnstile, cfg.AuthHostname, cfg.IsPartnerHostname, cfg.CrossDomainTTL)
}

func provideRouterDependencies(
	cfg *config.Config,
	sessions *service.SessionService,
	backend middleware.Limiter,
	otpHandler *handler.OTPHandler,
	passwordHandler *handler.PasswordHandler,
	googleHandler *handler.GoogleHandler,
	twoFactorHandler *handler.TwoFactorHandler,
	crossDomainHandler *handler.CrossDomainHandler,
	userHandler *handler.UserHandler,
) router.Dependencies {
	return router.Dependencies{
		Config:             cfg,
		Sessions:           sessions,
		OTPHandler:         otpHandler,
		PasswordHandler:    passwordHandler,
		GoogleHandler:      googleHandler,
		TwoFactorHandler:   twoFactorHandler,
		CrossDomainHandler: crossDomainHandler,
		UserHandler:        userHandler,
		RateLimitBackend:   backend,
		EnableOTelHTTP:     cfg.OTELTracesEnabled,
	}
}

func provideLogger(runtime *observability.Runtime) *slog.Logger {
	return runtime.Logger
}

func provideServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{Addr: cfg.HTTPAddr, Handler: h}
}

func provideRouter(dep router.Dependencies) http.Handler {
	return router.NewRouter(dep)
}
