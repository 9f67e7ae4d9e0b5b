// Package server wires the vault application together: configuration,
// database, object storage, cache, event producer and the HTTP server,
// with graceful shutdown on SIGINT/SIGTERM.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avolkov/filevault/internal/logging"
	"github.com/avolkov/filevault/internal/server/cache"
	"github.com/avolkov/filevault/internal/server/config"
	"github.com/avolkov/filevault/internal/server/events"
	vaulthttp "github.com/avolkov/filevault/internal/server/http"
	"github.com/avolkov/filevault/internal/server/repositories/repomanager"
	"github.com/avolkov/filevault/internal/server/services"
	"github.com/avolkov/filevault/internal/server/storage"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config   *config.Config
	logger   logging.Logger
	server   *vaulthttp.Server
	producer *events.Producer
	closeDB  func() error
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout)

	db, err := repomanager.OpenPostgres(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	reg := storage.NewRegistry()
	s3, err := storage.NewS3Adapter(ctx, cfg.S3Region, cfg.S3Bucket)
	if err != nil {
		return nil, fmt.Errorf("s3 init error: %w", err)
	}
	reg.Register(storage.ProviderS3, s3)
	minio, err := storage.NewMinioAdapter(ctx, cfg.MinioEndpoint, cfg.MinioRegion, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("minio init error: %w", err)
	}
	reg.Register(storage.ProviderMinio, minio)

	itemCache := cache.New(cfg.RedisAddr)
	if itemCache == nil && cfg.RedisAddr != "" {
		logger.Warn(ctx, "redis unreachable, item cache disabled", "addr", cfg.RedisAddr)
	}

	producer := events.NewProducer(cfg.KafkaBrokers)

	vault := services.NewVaultService(db, repomanager.NewPostgresManager(), reg, cfg, logger, producer, itemCache)
	srv := vaulthttp.NewServer(vault, db, cfg, logger)

	return &App{
		config:   cfg,
		logger:   logger,
		server:   srv,
		producer: producer,
		closeDB:  db.Close,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app")
	app.initSignalHandler(cancelFunc)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.server.Run()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			app.logger.Error(ctx, "http server failed", "error", err.Error())
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "http shutdown error", "error", err.Error())
	}
	if err := app.producer.Close(); err != nil {
		app.logger.Error(shutdownCtx, "producer close error", "error", err.Error())
	}
	if err := app.closeDB(); err != nil {
		app.logger.Error(shutdownCtx, "db close error", "error", err.Error())
	}

	app.logger.Info(shutdownCtx, "app stopped")
}
