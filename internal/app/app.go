// Package app wires together all adapters and domain logic.
// It provides lifecycle management for whiskeybar: open, load, serve, close.
package app

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/corey/whiskeybar/internal/adapters/bbolt"
	"github.com/corey/whiskeybar/internal/adapters/resilient"
	"github.com/corey/whiskeybar/internal/adapters/seed"
	"github.com/corey/whiskeybar/internal/adapters/web"
	"github.com/corey/whiskeybar/internal/config"
	"github.com/corey/whiskeybar/internal/domain/catalog"
	"github.com/corey/whiskeybar/internal/domain/ranking"
	"github.com/corey/whiskeybar/internal/logging"
	"github.com/corey/whiskeybar/internal/ports"
	"github.com/rs/zerolog"
)

// App is the top-level container wiring all components together.
type App struct {
	Config *config.Config
	Paths  *Paths

	Store   *bbolt.Store
	Breaker *resilient.Reader // nil when breaker.enabled is false
	Search  *catalog.SearchEngine
	Ranking *ranking.Engine
	Loader  *seed.Loader
	Server  *web.Server

	log       zerolog.Logger
	loadMu    sync.Mutex // serializes seed loads (CLI and watcher)
	watcher   ports.Watcher
	closeOnce sync.Once
	closeErr  error
}

// New opens the store and builds the engines on top of it. The caller owns
// the returned App and must Close it.
func New(cfg *config.Config) (*App, error) {
	paths, err := NewPaths(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	store, err := bbolt.NewStore(paths.DB, cfg.Store.OpenTimeout)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &App{
		Config: cfg,
		Paths:  paths,
		Store:  store,
		Loader: seed.NewLoader(store),
		log:    logging.WithComponent("app"),
	}

	var (
		catalogReader ports.CatalogReader = store
		reviewReader  ports.ReviewReader  = store
	)
	if cfg.Breaker.Enabled {
		a.Breaker = resilient.New(store, store, resilient.Config{
			Name:             "store",
			MaxRequests:      cfg.Breaker.MaxRequests,
			Interval:         cfg.Breaker.Interval,
			Timeout:          cfg.Breaker.Timeout,
			FailureThreshold: cfg.Breaker.FailureThreshold,
			CallTimeout:      cfg.Breaker.CallTimeout,
		})
		catalogReader, reviewReader = a.Breaker, a.Breaker
	}

	a.Search = catalog.NewSearchEngine(catalogReader, catalog.Options{
		TierTimeout: cfg.Search.TierTimeout,
	})
	a.Ranking = ranking.NewEngine(catalogReader, reviewReader, ranking.Options{
		CallTimeout: cfg.Ranking.CallTimeout,
	})

	opts := web.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		Counts:         store.Counts,
	}
	if a.Breaker != nil {
		opts.BreakerState = a.Breaker.State
	}
	a.Server = web.NewServer(a.Search, a.Ranking, opts)

	a.log.Debug().
		Str("db", paths.DB).
		Bool("breaker", cfg.Breaker.Enabled).
		Msg("app ready")
	return a, nil
}

// Start begins serving HTTP and records the runtime files.
func (a *App) Start() error {
	if err := a.Server.Start(a.Config.Server.Addr); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	if err := a.Paths.WriteRuntime(os.Getpid(), a.Server.Addr()); err != nil {
		a.log.Warn().Err(err).Msg("could not write runtime files")
	}
	return nil
}

// Shutdown stops the HTTP server within the configured shutdown timeout and
// removes the runtime files.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()
	err := a.Server.Stop(ctx)
	a.Paths.CleanEphemeral()
	return err
}

// Serve runs the HTTP server until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	if err := a.Start(); err != nil {
		return err
	}
	a.log.Info().Str("addr", a.Server.Addr()).Msg("serving")
	<-ctx.Done()
	a.log.Info().Msg("shutting down")
	return a.Shutdown()
}

// Close stops the seed watcher, the server and closes the store. Idempotent.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		if a.watcher != nil {
			if err := a.watcher.Stop(); err != nil {
				a.log.Warn().Err(err).Msg("stop watcher")
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()
		if err := a.Server.Stop(ctx); err != nil {
			a.log.Warn().Err(err).Msg("stop server")
		}
		a.closeErr = a.Store.Close()
	})
	return a.closeErr
}

// BreakerState reports the breaker state, or "disabled".
func (a *App) BreakerState() string {
	if a.Breaker == nil {
		return "disabled"
	}
	return a.Breaker.State()
}
