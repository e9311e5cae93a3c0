// Package server wires configuration, storage, the counter store and the
// services together, and runs the HTTP API and the gRPC ops listener until
// a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/profolio/profolio/internal/cryptox"
	"github.com/profolio/profolio/internal/logging"
	"github.com/profolio/profolio/internal/server/auth"
	"github.com/profolio/profolio/internal/server/config"
	"github.com/profolio/profolio/internal/server/guard"
	"github.com/profolio/profolio/internal/server/httpapi"
	"github.com/profolio/profolio/internal/server/ratelimit"
	"github.com/profolio/profolio/internal/server/repositories/repomanager"
	"github.com/profolio/profolio/internal/server/services"

	gs "github.com/profolio/profolio/internal/server/grpc"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	counters ratelimit.Backend
	guard    *guard.Guard
	handler  http.Handler
}

// NewApp validates c and builds every component. Failing to reach Postgres
// is fatal; failing to reach the counter store is not, the limiter's
// failure policy takes over.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(logging.Options{Level: c.LogLevel, Format: c.LogFormat, Service: "profolio"})

	if _, err := c.EnsureDevelopmentSecrets(ctx, logger); err != nil {
		return nil, fmt.Errorf("generate development secrets: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	enc, err := cryptox.NewEncryptor(c.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("encryption init error: %w", err)
	}

	db, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	counters, err := ratelimit.Open(ratelimit.Options{
		URL:         c.RedisURL,
		Host:        c.RedisHost,
		Port:        c.RedisPort,
		Password:    c.RedisPassword,
		DB:          c.RedisDB,
		MaxRetries:  c.RedisMaxRetries,
		DialTimeout: c.RedisDialTimeout,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("counter store init error: %w", err)
	}
	if err := counters.Ping(ctx); err != nil {
		logger.Warn(ctx, "counter store unreachable at startup", "error", err, "policy", c.RateLimitOnStoreError)
	}

	policy, err := ratelimit.ParseFailurePolicy(c.RateLimitOnStoreError)
	if err != nil {
		_ = db.Close()
		_ = counters.Close()
		return nil, err
	}
	limiter := ratelimit.NewLimiter(ratelimit.NewStore(counters, logger), ratelimit.LimiterOptions{
		Threshold: c.RateLimitThreshold,
		Window:    c.RateLimitWindow,
		Policy:    policy,
	}, logger)

	issuer := auth.NewIssuer([]byte(c.TokenSecret), c.TokenValidity)
	g := guard.New(issuer, guard.Options{DemoEnabled: c.DemoMode, DemoToken: c.DemoToken})
	if c.DemoMode {
		logger.Warn(ctx, "demo mode is enabled; the demo token bypasses authentication")
	}

	tf := services.NewTwoFactorService(db, rm, enc, logger)
	us := services.NewUserService(db, rm, issuer, limiter, tf, logger)
	cs := services.NewCredentialService(db, rm, enc, logger)
	ds := services.NewDocumentService(c, logger)

	if c.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Guard:        g,
		Users:        us,
		Credentials:  cs,
		TwoFactor:    tf,
		Documents:    ds,
		Logger:       logger,
		SecureCookie: c.IsProduction(),

		TrustedProxies: c.TrustedProxies,
	})

	return &App{
		config:   c,
		logger:   logger,
		db:       db,
		counters: counters,
		guard:    g,
		handler:  router,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.GRPCAddr, app.logger, app.guard)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "grpc server failed", "error", err)
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:              app.config.HTTPAddr,
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(shutdownCtx, "http shutdown failed", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", app.config.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, "http server failed", "error", err)
		cancelFunc()
	}
}

// Run serves until ctx is cancelled, a signal arrives or a listener fails,
// then releases the database and the counter store.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "environment", app.config.Environment)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()
	app.close()
	app.logger.Info(context.Background(), "App stopped")
}

func (app *App) close() {
	if err := app.counters.Close(); err != nil {
		app.logger.Warn(context.Background(), "counter store close failed", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Warn(context.Background(), "db close failed", "error", err)
	}
}
