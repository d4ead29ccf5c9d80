// Package server assembles the auth server: it opens the database, selects
// the revocation and notification backends, and runs the HTTP API, the gRPC
// health endpoint and the periodic purge until it receives a signal.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	gs "github.com/dmitrijs2005/gophauth/internal/server/grpc"
	"github.com/dmitrijs2005/gophauth/internal/server/health"
	hs "github.com/dmitrijs2005/gophauth/internal/server/http"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/notify"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/revocations"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/dmitrijs2005/gophauth/internal/server/validation"
)

var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	authService *services.AuthService
	validator   *validation.Validator
	health      *health.Service
	metrics     *metrics.Metrics
	closers     []io.Closer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(c.LogLevel, c.LogFormat, nil)

	if err := c.Validate(); err != nil {
		return nil, err
	}

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app := &App{
		config:      c,
		logger:      logger,
		db:          db,
		repomanager: repomanager.NewPostgresRepositoryManager(),
		metrics:     metrics.New(),
		closers:     []io.Closer{db},
	}

	checkers := []health.Checker{health.NewSQLChecker(db)}

	var ledger revocations.Repository
	switch c.RevocationBackend {
	case config.RevocationBackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
		app.closers = append(app.closers, rdb)
		checkers = append(checkers, health.NewRedisChecker(rdb))
		ledger = revocations.NewRedisRepository(rdb)
	default:
		ledger = app.repomanager.Revocations(db)
	}
	app.health = health.NewService(checkers...)

	notifier, err := app.newNotifier(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.authService, err = services.NewAuthService(db, app.repomanager, ledger, notifier, c, logger, app.metrics)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.validator = validation.New(app.repomanager.Users(db))

	return app, nil
}

func (app *App) newNotifier(ctx context.Context) (notify.Notifier, error) {
	c := app.config
	if c.Notifier != config.NotifierS3 {
		return notify.NewLogNotifier(app.logger), nil
	}

	client, err := notify.NewS3Client(ctx, notify.S3Settings{
		Region:       c.S3Region,
		AccessKey:    c.S3RootUser,
		SecretKey:    c.S3RootPassword,
		BaseEndpoint: c.S3BaseEndpoint,
		Bucket:       c.S3Bucket,
		AppBaseURL:   c.AppBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 init error: %w", err)
	}
	return notify.NewS3Outbox(client, c.S3Bucket, c.AppBaseURL), nil
}

// Migrate applies the embedded schema migrations.
func (app *App) Migrate(ctx context.Context) error {
	return app.repomanager.RunMigrations(ctx, app.db)
}

// Purge deletes expired revocations and single-use tokens once.
func (app *App) Purge(ctx context.Context) (services.PurgeResult, error) {
	return app.authService.Purge(ctx)
}

func (app *App) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.logger.Warn(context.Background(), "close failed", "error", err)
		}
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	f := hs.NewApp(app.logger)
	hs.Register(f, hs.Deps{
		Auth:               hs.NewAuthHandler(app.authService, app.validator, app.logger),
		Health:             hs.NewHealthHandler(app.health),
		Service:            app.authService,
		Metrics:            app.metrics.Handler(),
		RateLimitPerMinute: app.config.RateLimitPerMinute,
		Logger:             app.logger,
	})

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := f.ShutdownWithContext(shutdownCtx); err != nil {
			app.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", app.config.HTTPAddr)
	if err := f.Listen(app.config.HTTPAddr); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.GRPCAddr, app.logger, app.health, 5*time.Second)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startPurgeLoop(ctx context.Context) {
	if app.config.PurgeInterval <= 0 {
		return
	}
	t := time.NewTicker(app.config.PurgeInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			res, err := app.Purge(ctx)
			if err != nil {
				app.logger.Error(ctx, "purge failed", "error", err)
				continue
			}
			app.logger.Info(ctx, "purged expired tokens",
				"revocations", res.Revocations,
				"password_resets", res.PasswordResets,
				"email_verifications", res.EmailVerifications,
			)
		}
	}
}

// Run migrates the schema and serves until a signal arrives or one of the
// servers fails.
func (app *App) Run(ctx context.Context) error {
	defer app.Close()

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	if err := app.Migrate(ctx); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startPurgeLoop(ctx)
	}()

	wg.Wait()
	return nil
}
