package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/snip/internal/shortener/http"
	"github.com/aussiebroadwan/snip/internal/shortener/identity"
	"github.com/aussiebroadwan/snip/internal/shortener/service"
	"github.com/aussiebroadwan/snip/internal/shortener/store"
	"github.com/aussiebroadwan/snip/internal/shortener/store/drivers/sqlite"
	"github.com/aussiebroadwan/snip/pkg/jwtx"
	"github.com/aussiebroadwan/snip/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the shortener service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db     store.Store
	signer *jwtx.Signer

	// Services
	linkService    *service.LinkService
	sessionService *service.SessionService
	sweepService   *service.SweepService
	providers      *identity.Registry

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "snip",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	signer, err := jwtx.NewSigner([]byte(cfg.JWTSecret), cfg.Issuer)
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to initialize token signer: %w", err)
	}
	app.signer = signer

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	// Start the expiry sweeper
	app.sweepService.Start()

	app.logger.Info("snip service starting", "port", app.cfg.Port, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down snip service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop the expiry sweeper
	app.sweepService.Stop()

	// Close database connection
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("snip service stopped")
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.linkService = service.NewLinkService(app.db, app.cfg.PublicBaseURL)
	app.linkService.AnonTTL = app.cfg.AnonymousLinkTTL
	app.linkService.MaxPerOwner = app.cfg.MaxLinksPerOwner
	app.linkService.CodeLength = app.cfg.CodeLength
	app.linkService.MaxCodeAttempts = app.cfg.CodeMaxAttempts
	app.linkService.MaxURLLength = app.cfg.MaxURLLength

	app.sessionService = service.NewSessionService(app.db, app.signer)

	app.sweepService = service.NewSweepService(
		app.db,
		app.logger,
		app.cfg.SweepInterval,
	)

	app.providers = identity.NewRegistry(app.configuredProviders()...)
	if len(app.providers.Names()) == 0 {
		app.logger.Warn("no identity providers configured, login is disabled")
	}
}

// configuredProviders builds a provider for each credential pair present in
// the environment. Callback URLs are derived from the public base URL.
func (app *Application) configuredProviders() []identity.Provider {
	var providers []identity.Provider

	google := identity.Credentials{
		ClientID:     app.cfg.GoogleClientID,
		ClientSecret: app.cfg.GoogleClientSecret,
		RedirectURL:  app.cfg.PublicBaseURL + "/auth/google/callback",
	}
	if google.Configured() {
		providers = append(providers, identity.NewGoogle(google))
		app.logger.Info("identity provider enabled", "provider", "google")
	}

	github := identity.Credentials{
		ClientID:     app.cfg.GitHubClientID,
		ClientSecret: app.cfg.GitHubClientSecret,
		RedirectURL:  app.cfg.PublicBaseURL + "/auth/github/callback",
	}
	if github.Configured() {
		providers = append(providers, identity.NewGitHub(github))
		app.logger.Info("identity provider enabled", "provider", "github")
	}

	return providers
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		BuildVersion,
		app.db,
		app.logger,
	)

	// Wire services to router
	router.LinkService = app.linkService
	router.SessionService = app.sessionService
	router.Providers = app.providers
	router.FrontendURL = app.cfg.FrontendURL
	router.CookieSecure = app.cfg.CookieSecure
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
