//go:build wireinject

package app

import (
	"context"

	"github.com/google/wire"

	"github.com/storegrid/identity-service/internal/config"
	"github.com/storegrid/identity-service/internal/http/handler"
	"github.com/storegrid/identity-service/internal/observability"
	"github.com/storegrid/identity-service/internal/repository"
	"github.com/storegrid/identity-service/internal/service"
)

func InitializeApp(ctx context.Context, cfg *config.Config, runtime *observability.Runtime) (*App, error) {
	wire.Build(
		repository.Open,
		repository.NewUserRepository,
		repository.NewSessionRepository,
		provideCodec,
		provideVault,
		provideRedis,
		provideLoginGuard,
		provideRateLimitBackend,
		provideTurnstile,
		provideEmailSender,
		provideSessionService,
		provideTwoFactorService,
		service.NewOTPService,
		service.NewPasswordService,
		provideGoogleService,
		provideCrossDomainService,
		handler.NewOTPHandler,
		handler.NewPasswordHandler,
		handler.NewGoogleHandler,
		handler.NewTwoFactorHandler,
		handler.NewCrossDomainHandler,
		handler.NewUserHandler,
		provideRouterDependencies,
		provideRouter,
		provideServer,
		provideLogger,
		New,
	)
	return nil, nil
}
