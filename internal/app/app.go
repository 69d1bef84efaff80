package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/storegrid/identity-service/internal/config"
	"github.com/storegrid/identity-service/internal/observability"
	"github.com/storegrid/identity-service/internal/service"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Sessions      *service.SessionService
	Observability *observability.Runtime
}

func New(cfg *config.Config, logger *slog.Logger, server *http.Server, sessions *service.SessionService, runtime *observability.Runtime) *App {
	return &App{Config: cfg, Logger: logger, Server: server, Sessions: sessions, Observability: runtime}
}

// Run serves HTTP and sweeps expired sessions until ctx is cancelled, then
// drains the server within the configured shutdown timeout.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("http server listening", "addr", a.Server.Addr, "env", a.Config.Env)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(a.Config.SessionPurgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				purged, err := a.Sessions.PurgeExpired(gctx)
				if err != nil {
					a.Logger.Error("session purge failed", "error", err)
					continue
				}
				if purged > 0 {
					a.Logger.Info("purged expired sessions", "count", purged)
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.ShutdownTimeout)
		defer cancel()
		return a.Server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
