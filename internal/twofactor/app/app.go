package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/domain"
	httpapi "github.com/aussiebroadwan/twofactor/internal/twofactor/http"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/scratchpad"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/scratchpad/memory"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/scratchpad/redis"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/service"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/store"
	memstore "github.com/aussiebroadwan/twofactor/internal/twofactor/store/drivers/memory"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/store/drivers/sqlite"
	"github.com/aussiebroadwan/twofactor/pkg/cryptox"
	"github.com/aussiebroadwan/twofactor/pkg/slogx"
	"github.com/aussiebroadwan/twofactor/pkg/totpx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the two-factor service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db         store.Store
	scratchpad scratchpad.Scratchpad
	verifier   *totpx.Verifier

	// Services
	provider            *service.Provider
	housekeepingService *service.HousekeepingService // nil unless the scratchpad needs sweeping
	housekeepingStarted bool

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
			Service: "twofactor-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initScratchpad(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	if err := app.initServices(); err != nil {
		app.closeBackends()
		return nil, err
	}

	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	if app.housekeepingService != nil {
		app.housekeepingService.Start()
		app.housekeepingStarted = true
	}

	app.logger.Info("twofactor service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	app.logger.Info("shutting down twofactor service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if app.housekeepingStarted {
		app.housekeepingService.Stop()
	}

	if closer, ok := app.scratchpad.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			app.logger.Error("error closing scratchpad", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("twofactor service stopped")
	return nil
}

// initDatabase opens the attribute store and applies migrations
func (app *Application) initDatabase() error {
	if app.cfg.Store == StoreMemory {
		app.db = memstore.NewStore()
		app.logger.Warn("using in-memory attribute store; enrollments are lost on restart")
		return nil
	}

	sealer, err := cryptox.LoadSealer(app.cfg.MasterKeyPath)
	if err != nil {
		return fmt.Errorf("failed to load master key: %w", err)
	}

	var opts []sqlite.Option
	if sealer != nil {
		opts = append(opts, sqlite.WithSealer(sealer, domain.DefaultAttributeKeys().Sensitive()...))
	} else {
		app.logger.Warn("no master key configured; secrets are stored unsealed")
	}

	db, err := sqlite.NewStore(sqliteDSN(app.cfg.DatabaseFile), opts...)
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

// sqliteDSN applies the pragmas to every pooled connection.
func sqliteDSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
}

// initScratchpad selects where login session state lives
func (app *Application) initScratchpad() error {
	switch app.cfg.Scratchpad {
	case ScratchpadRedis:
		sp, err := redis.NewFromURL(app.cfg.RedisURL, app.cfg.SessionTTL)
		if err != nil {
			return fmt.Errorf("failed to initialize redis scratchpad: %w", err)
		}
		app.scratchpad = sp
	default:
		app.scratchpad = memory.New(app.cfg.SessionTTL)
	}
	return nil
}

// initServices builds the provider and its background workers
func (app *Application) initServices() error {
	app.verifier = totpx.New(app.cfg.Issuer, app.cfg.Skew)

	provider, err := service.NewProvider(service.Config{
		Attributes: app.db.Attributes(),
		Verifier:   app.verifier,
		Random:     cryptox.HexSource{},
		Scratchpad: app.scratchpad,
		Logger:     app.logger,
		MaxRetries: app.cfg.MaxRetries,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize provider: %w", err)
	}
	app.provider = provider

	app.housekeepingService = service.NewHousekeepingService(
		app.scratchpad,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		BuildVersion,
		app.db,
		app.scratchpad,
		app.logger,
	)
	router.Provider = app.provider
	router.URLs = app.verifier
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

func (app *Application) closeBackends() {
	if closer, ok := app.scratchpad.(io.Closer); ok {
		_ = closer.Close()
	}
	_ = app.db.Close()
}
