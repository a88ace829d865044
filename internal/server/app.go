// Package server wires configuration, storage, services and transports
// into the running auth server.
package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/httpapi"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/accesstokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/gophauth/internal/server/grpc"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	repos    repomanager.RepositoryManager
	redis    *redis.Client
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	sessions *services.SessionService
	accounts *services.AccountService
	seeder   *services.Seeder
	closers  []io.Closer
}

func NewApp(c *config.Config) (*App, error) {
	var out io.Writer = os.Stdout
	var closers []io.Closer
	if c.LogFile != "" {
		f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("log file error: %w", err)
		}
		out = f
		closers = append(closers, f)
	}
	logger := logging.NewJSONLogger(out, c.LogLevel)

	app, err := newApp(c, logger)
	if err != nil {
		for _, cl := range closers {
			_ = cl.Close()
		}
		return nil, err
	}
	// The log file goes first so it is closed last.
	app.closers = append(closers, app.closers...)
	return app, nil
}

func newApp(c *config.Config, logger logging.Logger) (*App, error) {
	repos, err := repomanager.New(c.Storage, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app := &App{config: c, logger: logger, repos: repos, closers: []io.Closer{repos}}

	tokens := repos.AccessTokens()
	switch c.TokenStore {
	case "":
	case config.TokenStoreRedis:
		app.redis = redis.NewClient(&redis.Options{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
		app.closers = append(app.closers, app.redis)
		tokens = accesstokens.NewRedisRepository(app.redis, c.RedisPrefix)
	default:
		_ = repos.Close()
		return nil, fmt.Errorf("unknown token store %q", c.TokenStore)
	}

	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = metrics.NewMetrics(app.registry)

	hasher := cryptox.NewHasher(c.PasswordSalt)
	app.sessions = services.NewSessionService(repos.Users(), tokens, logger, app.metrics)
	app.accounts = services.NewAccountService(repos.Users(), app.sessions, hasher, logger, app.metrics)
	app.seeder = services.NewSeeder(repos.Users(), hasher, logger)

	if c.PasswordSalt == "" {
		logger.Warn(context.Background(), "PASSWORD_SALT is empty; password hashes are unkeyed")
	}

	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) func() {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	done := make(chan struct{})
	go func() {
		select {
		case <-sigs:
			cancelFunc()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

// prepare brings storage up to date and provisions the protected account.
func (app *App) prepare(ctx context.Context) error {
	if err := app.repos.RunMigrations(ctx); err != nil {
		return err
	}
	if app.redis != nil {
		if err := app.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping error: %w", err)
		}
	}
	if err := app.seeder.Seed(ctx); err != nil {
		return fmt.Errorf("seed error: %w", err)
	}
	return nil
}

// Run prepares storage, then serves HTTP and gRPC until ctx is cancelled,
// a termination signal arrives, or either server fails.
func (app *App) Run(ctx context.Context) error {
	defer app.close()

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	stop := app.initSignalHandler(cancelFunc)
	defer stop()

	if err := app.prepare(ctx); err != nil {
		app.logger.Error(ctx, "startup failed", "error", err)
		return err
	}

	router := httpapi.NewRouter(app.sessions, app.accounts, httpapi.RouterConfig{
		Logger:         app.logger,
		Metrics:        app.metrics,
		Gatherer:       app.registry,
		RequestTimeout: app.config.RequestTimeout,
	})
	httpServer := httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, app.logger, router)
	grpcServer := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.config.RequestTimeout, app.sessions, app.accounts)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpServer.Run(gctx) })
	g.Go(func() error { return grpcServer.Run(gctx) })

	if err := g.Wait(); err != nil {
		app.logger.Error(ctx, "server failed", "error", err)
		return err
	}

	app.logger.Info(ctx, "App stopped")
	return nil
}

func (app *App) close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.logger.Warn(context.Background(), "close failed", "error", err)
		}
	}
	app.closers = nil
}
