// Package server initializes and runs the relay: it opens postgres, applies
// migrations, wires the sync service, the HTTP API and the retention
// sweeper, and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/beeroutine/haircareplus-sync/internal/cache"
	"github.com/beeroutine/haircareplus-sync/internal/hint"
	"github.com/beeroutine/haircareplus-sync/internal/logging"
	"github.com/beeroutine/haircareplus-sync/internal/server/api"
	"github.com/beeroutine/haircareplus-sync/internal/server/blob"
	"github.com/beeroutine/haircareplus-sync/internal/server/config"
	"github.com/beeroutine/haircareplus-sync/internal/server/repositories/repomanager"
	"github.com/beeroutine/haircareplus-sync/internal/server/services"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	rdb     *redis.Client
	api     *api.Server
	sweeper *services.Sweeper
}

// NewApp wires the relay from its configuration and migrates the database.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	manager := repomanager.NewPostgresRepositoryManager()
	if err := manager.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	var rdb *redis.Client
	var deltaCache cache.Cache = cache.NewMemory()
	var hinter services.Hinter = services.NopHinter{}
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		deltaCache = cache.NewRedis(rdb)
		hinter = hint.NewPublisher(rdb, logger)
	}

	var blobs blob.Store
	if cfg.S3BaseEndpoint != "" {
		s3store, err := blob.NewS3Store(ctx, blob.S3Settings{
			Region:       cfg.S3Region,
			RootUser:     cfg.S3RootUser,
			RootPassword: cfg.S3RootPassword,
			BaseEndpoint: cfg.S3BaseEndpoint,
			Bucket:       cfg.S3Bucket,
			PublicBase:   cfg.S3PublicBase,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("blob store init error: %w", err)
		}
		blobs = s3store
	}

	syncService := services.NewSyncService(db, manager, deltaCache, hinter, logger,
		services.WithPacketTTL(cfg.PacketTTL))
	sweeper := services.NewSweeper(manager.Packets(db), manager.Records(db), blobs, logger,
		services.WithSweepInterval(cfg.SweepInterval),
		services.WithRetention(cfg.RetentionWindow),
		services.WithOrphanGrace(cfg.OrphanGrace))

	return &App{
		config:  cfg,
		logger:  logger,
		db:      db,
		rdb:     rdb,
		api:     api.NewServer(cfg.EndpointAddrHTTP, syncService, blobs, logger),
		sweeper: sweeper,
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

// Run serves until the context is cancelled or a signal arrives.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting relay", "addr", app.config.EndpointAddrHTTP)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.api.Run(ctx); err != nil {
			app.logger.Error(ctx, "http server stopped", "error", err)
			cancelFunc()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.sweeper.Run(ctx); err != nil && ctx.Err() == nil {
			app.logger.Error(ctx, "sweeper stopped", "error", err)
			cancelFunc()
		}
	}()

	wg.Wait()
	app.close()
}

func (app *App) close() {
	if app.rdb != nil {
		_ = app.rdb.Close()
	}
	_ = app.db.Close()
}
