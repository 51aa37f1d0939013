package handlers

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/imamik/daas/internal/config"
	"github.com/imamik/daas/internal/kube"
	"github.com/imamik/daas/internal/logging"
	"github.com/imamik/daas/internal/orchestrator"
)

// stubFactories replaces every external factory for the duration of a test
// and returns the configuration the handlers will load.
func stubFactories(t *testing.T) *config.Config {
	t.Helper()

	origLoad := loadConfig
	origLogger := newLogger
	origKube := newKubeClient
	origWatch := watchResources
	origPostgres := newPostgresStore
	origRedis := newRedisPublisher
	t.Cleanup(func() {
		loadConfig = origLoad
		newLogger = origLogger
		newKubeClient = origKube
		watchResources = origWatch
		newPostgresStore = origPostgres
		newRedisPublisher = origRedis
	})

	cfg := config.Default()
	cfg.Kubernetes.IngressDomain = "db.example.com"
	cfg.SQLProxy.ListenAddress = "127.0.0.1:0"
	cfg.Orchestrator.ListenAddress = "127.0.0.1:0"
	cfg.Orchestrator.Watch = false
	cfg.Metrics.Address = ""

	loadConfig = func(string) (*config.Config, error) { return cfg, nil }
	newLogger = func(logging.Options) (logr.Logger, error) { return logr.Discard(), nil }
	newKubeClient = func(_ string, opts ...kube.Option) (*kube.Client, error) {
		return kube.New(fake.NewSimpleClientset(), opts...), nil //nolint:staticcheck // SA1019
	}
	watchResources = func(ctx context.Context, _ *kube.Client) <-chan orchestrator.ResourceEvent {
		ch := make(chan orchestrator.ResourceEvent)
		go func() {
			<-ctx.Done()
			close(ch)
		}()
		return ch
	}
	return cfg
}
