// Package server wires the secret sharing service together: it selects the
// record store backend, builds the services and the HTTP endpoint, starts
// the expiry sweeper and handles graceful shutdown.
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

	"github.com/redis/go-redis/v9"

	"github.com/sealbox/sealbox/internal/logging"
	"github.com/sealbox/sealbox/internal/server/blob"
	"github.com/sealbox/sealbox/internal/server/config"
	"github.com/sealbox/sealbox/internal/server/httpapi"
	"github.com/sealbox/sealbox/internal/server/repositories/repomanager"
	"github.com/sealbox/sealbox/internal/server/repositories/secrets"
	"github.com/sealbox/sealbox/internal/server/repositories/users"
	"github.com/sealbox/sealbox/internal/server/services"
	"github.com/sealbox/sealbox/internal/server/sweeper"
)

type App struct {
	config *config.Config
	logger logging.Logger

	secretService *services.SecretService
	userService   *services.UserService
	db            *sql.DB
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewDefault()

	app := &App{config: cfg, logger: logger}

	// Blob offload needs the sweep to clean up orphaned objects, and the
	// sweep needs the relational store; other backends keep ciphertext
	// inline.
	var blobStore blob.Store
	if cfg.BlobEnabled() && cfg.StoreType == config.StorePostgres {
		s3, err := blob.NewS3Store(ctx, blob.S3Config{
			RootUser:     cfg.S3RootUser,
			RootPassword: cfg.S3RootPassword,
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("blob store init: %w", err)
		}
		blobStore = s3
	}

	var secretRepo secrets.Repository
	var userRepo users.Repository

	switch cfg.StoreType {
	case config.StorePostgres:
		db, err := sql.Open("pgx", cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("db ping: %w", err)
		}
		app.db = db

		repos := repomanager.NewPostgresRepositoryManager()
		if err := repos.RunMigrations(ctx, db); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}

		userRepo = repos.Users(db)
		secretRepo = secrets.NewPostgresRepository(db)
		app.userService = services.NewUserService(db, repos, []byte(cfg.SecretKey),
			cfg.AccessTokenValidityDuration, cfg.RefreshTokenValidityDuration)

	case config.StoreRedis:
		repo, err := secrets.NewRedisRepository(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("redis init: %w", err)
		}
		secretRepo = repo

	case config.StoreMemory:
		secretRepo = secrets.NewMemoryRepository()

	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.StoreType)
	}

	app.secretService = services.NewSecretService(secretRepo, userRepo, blobStore)
	return app, nil
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
	handler := &httpapi.Handler{
		Secrets: app.secretService,
		Users:   app.userService,
		BaseURL: app.config.BaseURL,
		Logger:  app.logger,
	}

	server := &http.Server{
		Addr:    app.config.EndpointAddr,
		Handler: httpapi.NewRouter(handler),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(shutdownCtx, "http shutdown", "error", err)
		}
	}()

	app.logger.Info(ctx, "http server listening",
		"addr", app.config.EndpointAddr, "store", app.config.StoreType)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, "http server", "error", err)
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.New(app.config.SweepInterval, app.secretService.ExpireSweep, app.logger).Run(ctx)
	}()

	wg.Wait()

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error(context.Background(), "db close", "error", err)
		}
	}
}
