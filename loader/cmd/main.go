package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"legis/app/config"
	"legis/loader/internal"
	"legis/loader/service"
	"legis/metrics"
	"legis/store"
)

func init() {
	mustLoadEnvVariables()
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "loader",
		Short:        "Load legislative act files into the database",
		SilenceUsage: true,
	}
	root.AddCommand(newWatchCmd(), newImportCmd())
	return root
}

func newWatchCmd() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the source directory and load settled act files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withService(ctx, func(cfg *config.Config, svc *service.Service, m *metrics.Metrics) error {
				addr := cfg.Settings.Loader.MetricsAddr
				if cmd.Flags().Changed("metrics-addr") {
					addr = metricsAddr
				}
				if addr == "" {
					return svc.Run(ctx)
				}
				return runWithMetrics(ctx, m.Server(addr), svc)
			})
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics on this address (overrides LOADER_METRICS_ADDR)")
	return cmd
}

// runWithMetrics serves the metrics endpoint for as long as the watcher runs.
func runWithMetrics(ctx context.Context, srv *http.Server, svc *service.Service) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("serving loader metrics", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		defer cancel()
		return svc.Run(gctx)
	})
	return g.Wait()
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE...",
		Short: "Load the given act files once",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(_ *config.Config, svc *service.Service, _ *metrics.Metrics) error {
				return svc.Import(cmd.Context(), args)
			})
		},
	}
}

func withService(ctx context.Context, fn func(*config.Config, *service.Service, *metrics.Metrics) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("error to load config: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	pool, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("error to connect to Postgres database: %w", err)
	}
	defer pool.Close()

	if err := pool.Init(ctx); err != nil {
		return fmt.Errorf("error to create tables: %w", err)
	}

	settings := cfg.Settings
	governmentFor := func(term int) []string {
		if term == 0 {
			term = settings.Term
		}
		return settings.GovernmentFor(term)
	}
	loader, err := internal.NewActLoader(settings.LoaderConfig(), governmentFor)
	if err != nil {
		return err
	}
	m := metrics.New()
	return fn(cfg, service.New(pool, loader, m), m)
}

func mustLoadEnvVariables() {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatal("Error loading .env file")
	}
}
