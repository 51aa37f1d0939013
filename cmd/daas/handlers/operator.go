package handlers

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/imamik/daas/internal/config"
	"github.com/imamik/daas/internal/httpserver"
	"github.com/imamik/daas/internal/kube"
	"github.com/imamik/daas/internal/orchestrator"
	"github.com/imamik/daas/internal/sqlproxy"
	"github.com/imamik/daas/internal/store"
	"github.com/imamik/daas/pkg/sqlapi"
)

// watchResources is replaced in tests.
var watchResources = orchestrator.WatchResources

// Operator runs the reconciliation engine, the repair dispatcher and the
// operator API until ctx is cancelled.
//
// On shutdown the API stops accepting requests first, then running workers
// finish their current step. Work interrupted this way is picked up by the
// next start through Resume.
func Operator(ctx context.Context, configPath string) error {
	cfg, log, err := setup(configPath)
	if err != nil {
		return err
	}
	log = log.WithName("operator")

	st, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	publisher, closePublisher, err := openPublisher(ctx, cfg.Events, log)
	if err != nil {
		return err
	}
	defer closePublisher()

	kc, err := openKube(cfg, log)
	if err != nil {
		return err
	}

	cluster := orchestrator.NewKubeCluster(kc)
	engine := orchestrator.New(engineConfig(cfg), orchestrator.Dependencies{
		Store:     st,
		Cluster:   cluster,
		SQL:       sqlExecutor(cfg, st, kc, log),
		Publisher: publisher,
	}, log)

	resumed, err := engine.Resume(ctx)
	if err != nil {
		return fmt.Errorf("failed to resume interrupted work: %w", err)
	}
	log.Info("operator starting", "namespace", cfg.Kubernetes.Namespace, "resumed", resumed, "store", cfg.Store.Driver, "events", cfg.Events.Driver)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Orchestrator.Watch {
		dispatcher := orchestrator.NewDispatcher(engine, st, cluster, log)
		g.Go(func() error {
			dispatcher.Run(gctx, watchResources(gctx, kc))
			return nil
		})
	}

	router := httpserver.NewRouter(log, cfg.Timeouts.Request, readyUntil(gctx))
	orchestrator.NewAPI(engine, st, log).Routes(router)
	g.Go(func() error {
		return httpserver.Serve(gctx, newServer(cfg.Orchestrator.ListenAddress, router), cfg.Timeouts.Shutdown, log)
	})

	g.Go(func() error {
		return serveMetrics(gctx, cfg.Metrics.Address, cfg.Timeouts.Shutdown, log)
	})

	g.Go(func() error {
		<-gctx.Done()
		// Workers need up to one step to reach a safe point.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.Step+cfg.Timeouts.Shutdown)
		defer cancel()
		return engine.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	log.Info("operator stopped")
	return err
}

func engineConfig(cfg *config.Config) orchestrator.Config {
	return orchestrator.Config{
		Image:           cfg.Kubernetes.Image,
		IngressDomain:   cfg.Kubernetes.IngressDomain,
		IngressClass:    cfg.Kubernetes.IngressClass,
		StepTimeout:     cfg.Timeouts.Step,
		PodReadyTimeout: cfg.Timeouts.PodReady,
		PodPollInterval: cfg.Timeouts.PodPoll,
		PortTimeout:     cfg.Timeouts.PortWait,
		PasswordLength:  cfg.Orchestrator.PasswordLength,
	}
}

// sqlExecutor talks to a remote proxy when one is configured and otherwise
// executes batches in process.
func sqlExecutor(cfg *config.Config, st store.Store, kc *kube.Client, log logr.Logger) orchestrator.SQLExecutor {
	if cfg.Orchestrator.ProxyURL != "" {
		return sqlapi.NewClient(cfg.Orchestrator.ProxyURL, sqlapi.WithTimeout(cfg.Timeouts.Request))
	}
	return sqlproxy.NewExecutor(st, kc, &sqlproxy.MSSQLOpener{
		ConnectTimeout: cfg.Timeouts.Connect,
		AppName:        cfg.SQLProxy.AppName,
	}, log)
}
