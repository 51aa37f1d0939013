package handlers

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/imamik/daas/internal/httpserver"
	"github.com/imamik/daas/internal/sqlproxy"
)

// SQLProxy serves the SQL execution proxy until ctx is cancelled.
func SQLProxy(ctx context.Context, configPath string) error {
	cfg, log, err := setup(configPath)
	if err != nil {
		return err
	}
	log = log.WithName("sql-proxy")

	st, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	kc, err := openKube(cfg, log)
	if err != nil {
		return err
	}

	exec := sqlproxy.NewExecutor(st, kc, &sqlproxy.MSSQLOpener{
		ConnectTimeout: cfg.Timeouts.Connect,
		AppName:        cfg.SQLProxy.AppName,
	}, log)

	g, gctx := errgroup.WithContext(ctx)
	handler := sqlproxy.NewRouter(exec, log, cfg.Timeouts.Request, readyUntil(gctx))

	log.Info("sql proxy starting", "address", cfg.SQLProxy.ListenAddress, "store", cfg.Store.Driver)
	g.Go(func() error {
		return httpserver.Serve(gctx, newServer(cfg.SQLProxy.ListenAddress, handler), cfg.Timeouts.Shutdown, log)
	})
	g.Go(func() error {
		return serveMetrics(gctx, cfg.Metrics.Address, cfg.Timeouts.Shutdown, log)
	})
	return g.Wait()
}
