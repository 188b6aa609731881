// Package app initializes and runs the sync agent: it opens the local
// database, wires the sync loop and the optional wake-hint listener, and
// handles graceful shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/beeroutine/haircareplus-sync/internal/cache"
	"github.com/beeroutine/haircareplus-sync/internal/client/applier"
	"github.com/beeroutine/haircareplus-sync/internal/client/config"
	"github.com/beeroutine/haircareplus-sync/internal/client/syncer"
	"github.com/beeroutine/haircareplus-sync/internal/client/transport"
	"github.com/beeroutine/haircareplus-sync/internal/common"
	"github.com/beeroutine/haircareplus-sync/internal/hint"
	"github.com/beeroutine/haircareplus-sync/internal/logging"
)

const transportTimeout = 30 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	role   common.Role

	Syncer *syncer.Syncer
	Events *applier.ChanNotifier

	repos     *Repositories
	transport transport.Transport
	rdb       *redis.Client
}

// NewApp wires the agent from its configuration. The client id must carry a
// known role prefix.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	role, err := common.RoleFromClientID(cfg.ClientID)
	if err != nil {
		return nil, fmt.Errorf("invalid client id %q: %w", cfg.ClientID, err)
	}

	repos, err := InitDatabase(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	events := applier.NewChanNotifier(64)
	tr := transport.NewHTTPTransport(cfg.ServerURL, transportTimeout)
	ap := applier.New(repos.Records, events, cache.NewMemory(), logger)

	s := syncer.New(cfg.ClientID, repos.Outbox, repos.Cursor, repos.Records, tr, ap, logger,
		syncer.WithInterval(cfg.SyncInterval), syncer.WithMaxRetries(cfg.MaxRetries))

	app := &App{
		config:    cfg,
		logger:    logger,
		role:      role,
		Syncer:    s,
		Events:    events,
		repos:     repos,
		transport: tr,
	}
	if cfg.RedisAddr != "" {
		app.rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}
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

// Run drives the sync loop (and the hint listener when redis is configured)
// until the context is cancelled or a signal arrives.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting sync agent",
		"client_id", app.config.ClientID, "role", app.role.String(), "server", app.config.ServerURL)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.Syncer.Run(ctx); err != nil && ctx.Err() == nil {
			app.logger.Error(ctx, "sync loop stopped", "error", err)
			cancelFunc()
		}
	}()

	if app.rdb != nil {
		listener := hint.NewListener(app.rdb, app.role, app.Syncer.Wake, app.logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := listener.Run(ctx); err != nil && ctx.Err() == nil {
				app.logger.Warn(ctx, "hint listener stopped", "error", err)
			}
		}()
	}

	wg.Wait()
	app.close()
}

func (app *App) close() {
	if app.rdb != nil {
		_ = app.rdb.Close()
	}
	_ = app.transport.Close()
	_ = app.repos.DB.Close()
}
