package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/storegrid/identity-service/internal/config"
	"github.com/storegrid/identity-service/internal/http/handler"
	"github.com/storegrid/identity-service/internal/http/middleware"
	"github.com/storegrid/identity-service/internal/http/response"
	"github.com/storegrid/identity-service/internal/service"
)

type Dependencies struct {
	Config             *config.Config
	Sessions           *service.SessionService
	OTPHandler         *handler.OTPHandler
	PasswordHandler    *handler.PasswordHandler
	GoogleHandler      *handler.GoogleHandler
	TwoFactorHandler   *handler.TwoFactorHandler
	CrossDomainHandler *handler.CrossDomainHandler
	UserHandler        *handler.UserHandler
	RateLimitBackend   middleware.Limiter
	EnableOTelHTTP     bool
}

// NewRouter assembles the full HTTP surface. Partner front-ends proxy the
// service under the /__p_auth prefix, so the API tree is mounted both bare
// and prefixed.
func NewRouter(dep Dependencies) http.Handler {
	cfg := dep.Config
	backend := dep.RateLimitBackend
	if backend == nil {
		backend = middleware.NewLocalLimiter()
	}
	apiLimiter := middleware.NewRateLimiter(backend, cfg.APIRateLimitRPM, time.Minute, middleware.FailOpen, "api").Middleware()
	authLimiter := middleware.NewRateLimiter(backend, cfg.AuthRateLimitRPM, time.Minute, middleware.FailClosed, "auth").Middleware()
	otpLimiter := middleware.NewRateLimiter(backend, cfg.OtpRateLimitRPM, time.Minute, middleware.FailClosed, "otp").Middleware()

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.BodyLimit)
	r.Use(middleware.CSRFMiddleware)
	r.Use(apiLimiter)
	r.Use(middleware.SessionMiddleware(dep.Sessions, cfg))

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	api := func(r chi.Router) {
		r.Route("/otp", func(r chi.Router) {
			r.Use(middleware.RequireAuthHost(cfg))
			r.With(otpLimiter).Post("/request", dep.OTPHandler.Request)
			r.With(otpLimiter).Post("/verify", dep.OTPHandler.Verify)
		})
		r.Route("/email_password", func(r chi.Router) {
			r.Use(middleware.RequireAuthHost(cfg))
			r.With(otpLimiter).Post("/register", dep.PasswordHandler.Register)
			r.With(authLimiter).Post("/login", dep.PasswordHandler.Login)
		})
		r.Route("/google_oauth", func(r chi.Router) {
			r.Use(middleware.RequireAuthHost(cfg))
			r.With(authLimiter).Get("/login", dep.GoogleHandler.Login)
			r.With(authLimiter).Get("/callback", dep.GoogleHandler.Callback)
		})
		r.Route("/two_factor_auth", func(r chi.Router) {
			r.With(middleware.RequireUser).Post("/setup", dep.TwoFactorHandler.Setup)
			r.With(middleware.RequireUser).Post("/enable", dep.TwoFactorHandler.Enable)
			r.With(authLimiter).Post("/verify", dep.TwoFactorHandler.Verify)
			r.With(authLimiter).Post("/recover", dep.TwoFactorHandler.Recover)
			r.With(middleware.RequireUser, authLimiter).Post("/recovery_code/rotate", dep.TwoFactorHandler.RotateRecoveryCode)
		})
		r.Route("/cross_domain", func(r chi.Router) {
			r.With(middleware.RequireAuthHost(cfg), middleware.RequireUser, authLimiter).
				Post("/redirector", dep.CrossDomainHandler.Redirector)
			r.With(authLimiter).Get("/callback", dep.CrossDomainHandler.Callback)
		})
		r.Route("/user", func(r chi.Router) {
			r.Get("/whoami", dep.UserHandler.Whoami)
			r.Post("/logout", dep.UserHandler.Logout)
		})
	}
	r.Route("/api", api)
	r.Route("/__p_auth/api", api)

	if dep.EnableOTelHTTP {
		return otelhttp.NewHandler(r, "http.server")
	}
	return r
}
