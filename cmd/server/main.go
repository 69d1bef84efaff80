package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/storegrid/identity-service/internal/app"
	"github.com/storegrid/identity-service/internal/config"
	"github.com/storegrid/identity-service/internal/observability"
	"github.com/storegrid/identity-service/internal/repository"
	"github.com/storegrid/identity-service/internal/service"
	"github.com/storegrid/identity-service/internal/tools/common"
	"github.com/storegrid/identity-service/internal/tools/loadgen"
	"github.com/storegrid/identity-service/internal/tools/ui"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:   "identity-service",
		Short: "Multi-tenant session and identity service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return common.LoadEnvFile(envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "env file loaded before reading configuration")
	root.AddCommand(newServeCommand())
	root.AddCommand(newPurgeSessionsCommand())
	root.AddCommand(newKeygenCommand())
	root.AddCommand(newLoadgenCommand())
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load(ctx)
			if err != nil {
				return err
			}
			runtime, err := observability.InitRuntime(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
				defer cancel()
				if err := runtime.Shutdown(shutdownCtx); err != nil {
					fmt.Fprintln(os.Stderr, "observability shutdown:", err)
				}
			}()

			application, err := app.InitializeApp(ctx, cfg, runtime)
			if err != nil {
				return err
			}
			return application.Run(ctx)
		},
	}
}

func newPurgeSessionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "purge-sessions",
		Short: "Delete every expired session and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(ctx)
			if err != nil {
				return err
			}
			db, err := repository.Open(cfg)
			if err != nil {
				return err
			}
			sessions := service.NewSessionService(repository.NewSessionRepository(db), cfg.SessionTTL, cfg.SessionRenewWindow)
			purged, err := sessions.PurgeExpired(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("purged %d expired sessions\n", purged)
			return nil
		},
	}
}

func newKeygenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate fresh secrets for the environment file",
		RunE: func(cmd *cobra.Command, args []string) error {
			encKey := make([]byte, 32)
			signing := make([]byte, 48)
			if _, err := rand.Read(encKey); err != nil {
				return err
			}
			if _, err := rand.Read(signing); err != nil {
				return err
			}
			fmt.Printf("ENCRYPTION_KEY=%s\n", base64.StdEncoding.EncodeToString(encKey))
			fmt.Printf("TOKEN_SIGNING_SECRET=%s\n", base64.RawURLEncoding.EncodeToString(signing))
			return nil
		},
	}
}

func newLoadgenCommand() *cobra.Command {
	cfg := loadgen.Config{}
	var ci bool
	cmd := &cobra.Command{
		Use:   "loadgen",
		Short: "Generate synthetic traffic against a running instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			run := func(ctx context.Context) ([]string, error) {
				res, err := loadgen.Run(ctx, cfg)
				details := []string{
					fmt.Sprintf("requests=%d failures=%d", res.TotalRequests, res.Failures),
					res.Summary(),
				}
				return details, err
			}
			if ci {
				ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Duration+time.Minute)
				defer cancel()
				details, err := run(ctx)
				common.PrintCIResult(err == nil, "loadgen", details, err)
				return err
			}
			details, err := ui.Run("loadgen "+cfg.Profile, run)
			for _, d := range details {
				fmt.Println(d)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&cfg.BaseURL, "base-url", "http://localhost:8080", "target base URL")
	cmd.Flags().StringVar(&cfg.Profile, "profile", "mixed", "traffic profile: whoami, auth or mixed")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", 10*time.Second, "run duration")
	cmd.Flags().IntVar(&cfg.RPS, "rps", 20, "requests per second")
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", 4, "concurrent workers")
	cmd.Flags().Int64Var(&cfg.Seed, "seed", 42, "target selection seed")
	cmd.Flags().BoolVar(&ci, "ci", false, "non-interactive machine-readable output")
	return cmd
}
