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

	"github.com/aussiebroadwan/orgauth/internal/auth/cache"
	httpapi "github.com/aussiebroadwan/orgauth/internal/auth/http"
	"github.com/aussiebroadwan/orgauth/internal/auth/service"
	"github.com/aussiebroadwan/orgauth/internal/auth/store"
	"github.com/aussiebroadwan/orgauth/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/orgauth/pkg/cryptox"
	"github.com/aussiebroadwan/orgauth/pkg/jwtx"
	"github.com/aussiebroadwan/orgauth/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db    store.Store
	kv    *cache.Fallback
	codec *jwtx.Codec

	// Services
	authService         *service.AuthService
	scopeService        *service.ScopeService
	hierarchyService    *service.HierarchyService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "orgauth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	codec, err := jwtx.NewCodec(
		[]byte(cfg.AccessTokenSecret),
		[]byte(cfg.RefreshTokenSecret),
		cfg.Issuer,
		[]string{cfg.Audience},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}
	app.codec = codec

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.initCache()
	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	// Start housekeeping service
	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

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

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

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

	// Stop the housekeeping service
	app.housekeepingService.Stop()

	if err := app.kv.Close(); err != nil {
		app.logger.Error("error closing session cache", "error", err)
	}

	// Close database connection
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
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

// initCache builds the session KV. With no redis URL configured the
// fallback's in-process store carries everything, which is fine for a
// single instance.
func (app *Application) initCache() {
	var primary cache.KV
	if app.cfg.RedisURL != "" {
		redis, err := cache.NewRedis(app.cfg.RedisURL)
		if err != nil {
			app.logger.Warn("invalid redis url, using in-process session cache", "error", err)
		} else {
			primary = redis
			app.logger.Info("session cache backed by redis")
		}
	}
	if primary == nil {
		primary = cache.NewMemory()
		app.logger.Info("session cache running in-process")
	}

	app.kv = cache.NewFallback(primary, app.logger)
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	sessionCache := cache.NewSessionCache(app.kv)

	app.authService = service.NewAuthService(app.db, sessionCache, app.codec, []string{app.cfg.Audience})
	app.authService.AccessTTL = app.cfg.AccessTokenTTL
	app.authService.RefreshTTL = app.cfg.RefreshTokenTTL
	app.authService.RememberMeTTL = app.cfg.RememberMeTTL

	app.scopeService = service.NewScopeService(app.db, sessionCache)
	app.hierarchyService = service.NewHierarchyService(app.db, sessionCache)

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
		store.CleanupPolicy{
			IdleWindow:           app.authService.IdleWindow,
			IdleWindowRememberMe: app.authService.IdleWindowRememberMe,
		},
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		BuildVersion,
		app.db,
		app.kv,
		app.logger,
	)

	// Wire services to router
	router.AuthService = app.authService
	router.ScopeService = app.scopeService
	router.HierarchyService = app.hierarchyService
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
