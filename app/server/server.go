package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"legis/app/api"
	"legis/app/config"
	"legis/app/hook"
	"legis/app/middleware"
	"legis/metrics"
	"legis/provider"
	"legis/store"
)

const shutdownTimeout = 15 * time.Second

// Deps are the collaborators the HTTP routes are built from.
type Deps struct {
	Store    store.DBStorer
	Identity provider.IdentityProvider
	Payments provider.PaymentsProvider
	Notifier *hook.Notifier
	Metrics  *metrics.Metrics
	Settings config.Settings
	Ping     func(context.Context) error
}

// NewApp registers every route on a new fiber app.
func NewApp(d Deps) *fiber.App {
	var (
		app = fiber.New(fiber.Config{
			ErrorHandler:          api.ErrorHandler,
			DisableStartupMessage: true,
		})
		checkHandler   = api.NewCheckHandler(d.Ping)
		configHandler  = api.NewConfigHandler(d.Settings.Public())
		actHandler     = api.NewActHandler(d.Store, d.Identity, d.Settings.ConfidenceThreshold)
		adminHandler   = api.NewAdminHandler(d.Store, d.Identity, d.Notifier, d.Settings.AdminConfidence)
		fileHandler    = api.NewFileHandler(d.Identity, d.Settings.Loader.SourceDir)
		paymentHandler = api.NewPaymentHandler(d.Payments, d.Identity)
		usageHandler   = api.NewUsageHandler(d.Identity, d.Settings.ModalLimit, d.Metrics.ModalOpens)
	)

	app.Use(recover.New())
	app.Use(middleware.WithLogging(d.Metrics))

	check := app.Group("/check")
	check.Get("/healthy", checkHandler.HandleHealthy)
	app.Get("/metrics", adaptor.HTTPHandler(d.Metrics.Handler()))

	apiv1 := app.Group("/api", middleware.Authenticate(d.Identity))
	apiv1.Get("/config", configHandler.HandleGetConfig)
	apiv1.Get("/acts", actHandler.HandleListActs)
	apiv1.Get("/acts/:id", actHandler.HandleGetAct)
	apiv1.Post("/admin/update-act", adminHandler.HandleUpdateAct)
	apiv1.Post("/admin/import", fileHandler.HandleImport)
	apiv1.Post("/create-checkout-session", paymentHandler.HandleCreateCheckoutSession)
	apiv1.Get("/subscription-plans", paymentHandler.HandleListPlans)
	apiv1.Post("/update-modal-limit", usageHandler.HandleUpdateModalLimit)
	apiv1.Post("/webhooks/stripe", paymentHandler.HandleWebhook)

	return app
}

type Server struct {
	cfg    *config.Config
	logger *slog.Logger

	app      *fiber.App
	store    *store.PostgresStore
	notifier *hook.Notifier
}

func NewServer(cfg *config.Config) *Server {
	return &Server{
		cfg:    cfg,
		logger: slog.Default().With("component", "server"),
	}
}

// Run connects the dependencies and serves until Stop is called.
func (s *Server) Run(ctx context.Context) error {
	pool, err := store.NewPostgresStore(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("error to connect to Postgres database: %w", err)
	}
	if err := pool.Init(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("error to create tables: %w", err)
	}
	s.store = pool

	m := metrics.New()
	s.notifier = hook.NewNotifier(s.cfg.RebuildHookURL, m.RebuildHooks)
	s.app = NewApp(Deps{
		Store:    pool,
		Identity: provider.NewClerkIdentity(s.cfg.ClerkSecretKey),
		Payments: provider.NewStripePayments(s.cfg.StripeSecretKey, s.cfg.StripeWebhookSecret),
		Notifier: s.notifier,
		Metrics:  m,
		Settings: s.cfg.Settings,
		Ping:     pool.Ping,
	})

	s.logger.Info("server started", "addr", s.cfg.ServerAddr)
	if err := s.app.Listen(s.cfg.ServerAddr); err != nil {
		return fmt.Errorf("error to start server: %w", err)
	}
	return nil
}

// Stop drains requests and pending rebuild notifications, then closes the
// database pool.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			s.logger.Error("error to shutdown server", "error", err)
		}
	}
	if s.notifier != nil {
		if err := s.notifier.Wait(ctx); err != nil {
			s.logger.Warn("rebuild notifications still pending", "error", err)
		}
	}
	if s.store != nil {
		s.store.Close()
	}
	s.logger.Info("server stopped")
}
