package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/daas/internal/config"
	"github.com/imamik/daas/internal/events"
	"github.com/imamik/daas/internal/httpserver"
	"github.com/imamik/daas/internal/kube"
	"github.com/imamik/daas/internal/logging"
	"github.com/imamik/daas/internal/store"
)

// Factory function variables, replaced in tests.
var (
	loadConfig = config.Load
	newLogger  = logging.New

	newKubeClient = kube.NewFromConfig

	newPostgresStore = func(ctx context.Context, cfg config.StoreConfig) (store.Store, func(), error) {
		pool, err := store.NewPool(ctx, store.PoolConfig{ConnString: cfg.DSN, MaxConns: cfg.MaxConns})
		if err != nil {
			return nil, nil, err
		}
		pg := store.NewPostgresStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
		return pg, pg.Close, nil
	}

	newRedisPublisher = func(ctx context.Context, cfg config.EventsConfig) (events.Publisher, func(), error) {
		client, err := events.NewRedisClient(ctx, cfg.RedisAddress, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		pub := events.NewRedisStreamPublisher(client, events.WithStream(cfg.Stream), events.WithMaxLen(cfg.MaxLen))
		return pub, func() { _ = client.Close() }, nil
	}
)

// setup loads the configuration and installs the process logger.
func setup(configPath string) (*config.Config, logr.Logger, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, logr.Discard(), err
	}
	log, err := newLogger(logging.Options{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		return nil, logr.Discard(), fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, log, nil
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, func(), error) {
	switch cfg.Driver {
	case config.StoreMemory:
		return store.NewMemoryStore(), func() {}, nil
	case config.StorePostgres:
		st, closeFn, err := newPostgresStore(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return st, closeFn, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

// openPublisher always logs events and, with the redis driver, also
// appends them to a stream.
func openPublisher(ctx context.Context, cfg config.EventsConfig, log logr.Logger) (events.Publisher, func(), error) {
	logPub := events.NewLogPublisher(log)
	switch cfg.Driver {
	case config.EventsLog:
		return logPub, func() {}, nil
	case config.EventsRedis:
		pub, closeFn, err := newRedisPublisher(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return events.Fanout{logPub, pub}, closeFn, nil
	}
	return nil, nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
}

func openKube(cfg *config.Config, log logr.Logger) (*kube.Client, error) {
	c, err := newKubeClient(cfg.Kubernetes.Kubeconfig,
		kube.WithNamespace(cfg.Kubernetes.Namespace),
		kube.WithClusterDomain(cfg.Kubernetes.ClusterDomain),
		kube.WithRetryPolicy(kube.RetryPolicy{
			MaxRetries:   cfg.Timeouts.RetryMaxAttempts,
			InitialDelay: cfg.Timeouts.RetryInitialDelay,
			MaxDelay:     cfg.Timeouts.RetryMaxDelay,
		}),
		kube.WithWatchBackoff(cfg.Timeouts.WatchBackoff),
		kube.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	return c, nil
}

func newServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// serveMetrics exposes /metrics until ctx ends. An empty address disables it.
func serveMetrics(ctx context.Context, addr string, shutdownTimeout time.Duration, log logr.Logger) error {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", httpserver.MetricsHandler())
	return httpserver.Serve(ctx, newServer(addr, mux), shutdownTimeout, log.WithName("metrics"))
}

// readyUntil reports ready until ctx ends.
func readyUntil(ctx context.Context) httpserver.ReadyFunc {
	return func(context.Context) error {
		if ctx.Err() != nil {
			return errors.New("shutting down")
		}
		return nil
	}
}
