// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/artpar/entitled/adapters/clock"
	"github.com/artpar/entitled/adapters/hasher"
	entitledhttp "github.com/artpar/entitled/adapters/http"
	"github.com/artpar/entitled/adapters/idgen"
	"github.com/artpar/entitled/adapters/memory"
	"github.com/artpar/entitled/adapters/metrics"
	redisstore "github.com/artpar/entitled/adapters/redis"
	"github.com/artpar/entitled/adapters/sqlite"
	"github.com/artpar/entitled/app"
	"github.com/artpar/entitled/config"
	"github.com/artpar/entitled/ports"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Holder     *config.Holder
	HTTPServer *http.Server
	Metrics    *metrics.Collector

	Resolver  *app.ResolverService
	Overrides *app.OverrideService
	Gate      *app.GateService

	// hot-reloadable admin token hash
	adminHash atomic.Pointer[string]

	// backends (for cleanup and health probes)
	db   *sqlite.DB
	rdb  *redis.Client
	ping func(ctx context.Context) error
}

// New creates and initializes the application from the config file at
// path. An empty path falls back to pure environment configuration.
func New(path string) (*App, error) {
	holder, err := newHolder(path)
	if err != nil {
		return nil, err
	}
	cfg := holder.Get()

	logger := SetupLogger(cfg.Logging)
	logger.Info().Msg("initializing entitled")

	a := &App{
		Logger: logger,
		Holder: holder,
	}
	hash := cfg.Admin.TokenHash
	a.adminHash.Store(&hash)

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
		logger.Info().Msg("prometheus metrics enabled")
	}

	store, err := a.buildStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, fmt.Errorf("build catalog: %w", err)
	}
	table, err := cfg.FeatureTable()
	if err != nil {
		return nil, fmt.Errorf("build feature table: %w", err)
	}

	a.Resolver = app.NewResolverService(app.ResolverDeps{
		Store:   store,
		Clock:   clock.Real{},
		Logger:  logger,
		Metrics: a.Metrics,
	}, catalog, table)

	a.Overrides = app.NewOverrideService(app.OverrideDeps{
		Store:   store,
		Clock:   clock.Real{},
		IDGen:   idgen.UUID{},
		Logger:  logger,
		Metrics: a.Metrics,
	})

	a.Gate = app.NewGateService(a.Resolver, logger)

	a.initHTTPServer(cfg)
	a.wireReload()

	return a, nil
}

func newHolder(path string) (*config.Holder, error) {
	// The holder needs a logger before logging config exists; bootstrap
	// logging stays at the env-driven default until the config is read.
	bootLogger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return config.NewHolder(path, bootLogger)
		}
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}
	return config.NewStaticHolder(cfg), nil
}

func (a *App) buildStore(cfg *config.Config) (ports.OverrideStore, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.Open(cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		a.db = db
		a.ping = db.PingContext
		a.Logger.Info().Str("dsn", cfg.Database.DSN).Msg("sqlite store initialized")
		return sqlite.NewOverrideStore(db), nil

	case "redis":
		opts, err := redis.ParseURL(cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		a.rdb = rdb
		a.ping = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		a.Logger.Info().Str("addr", opts.Addr).Msg("redis store initialized")
		return redisstore.NewOverrideStore(rdb, ""), nil

	case "memory":
		a.Logger.Warn().Msg("memory store selected, overrides will not survive restarts")
		return memory.NewOverrideStore(), nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

func (a *App) initHTTPServer(cfg *config.Config) {
	handler := entitledhttp.NewHandler(entitledhttp.Deps{
		Gate:      a.Gate,
		Overrides: a.Overrides,
		Resolver:  a.Resolver,
		Hasher:    hasher.NewBcrypt(0),
		TokenHash: func() string { return *a.adminHash.Load() },
		Ping:      a.ping,
		Logger:    a.Logger,
		Metrics:   a.Metrics,
	})

	router := handler.Router(entitledhttp.RouterConfig{
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	a.HTTPServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	a.Logger.Info().Str("addr", addr).Msg("http server configured")
}

// wireReload pushes reloaded catalog, feature table, and admin hash
// into the running services. Store and server settings need a restart.
func (a *App) wireReload() {
	a.Holder.OnChange(func(cfg *config.Config) {
		catalog, err := cfg.Catalog()
		if err != nil {
			a.Logger.Error().Err(err).Msg("reload rejected, bad tier catalog")
			a.countReload(false)
			return
		}
		table, err := cfg.FeatureTable()
		if err != nil {
			a.Logger.Error().Err(err).Msg("reload rejected, bad feature table")
			a.countReload(false)
			return
		}

		a.Resolver.UpdateConfig(catalog, table)
		hash := cfg.Admin.TokenHash
		a.adminHash.Store(&hash)
		a.countReload(true)
		a.Logger.Info().Int("features", table.Len()).Msg("entitlement config swapped")
	})
}

func (a *App) countReload(ok bool) {
	if a.Metrics == nil {
		return
	}
	if ok {
		a.Metrics.ConfigReloads.Inc()
	} else {
		a.Metrics.ConfigReloadErrors.Inc()
	}
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	if err := a.Holder.WatchFile(); err != nil {
		a.Logger.Warn().Err(err).Msg("config file watch unavailable")
	}
	a.Holder.WatchSignals()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a.Holder.Stop()

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("redis close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

// SetupLogger builds the service logger from logging config.
func SetupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
