package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/imamik/daas/internal/config"
	"github.com/imamik/daas/internal/kube"
)

func TestSQLProxy_StopsOnCancel(t *testing.T) {
	stubFactories(t)

	err := runUntilCancelled(t, func(ctx context.Context) error {
		return SQLProxy(ctx, "daas.yaml")
	})
	assert.NoError(t, err)
}

func TestSQLProxy_SetupErrors(t *testing.T) {
	stubFactories(t)

	loadConfig = func(string) (*config.Config, error) { return nil, errors.New("config file missing.yaml does not exist") }
	assert.ErrorContains(t, SQLProxy(context.Background(), "missing.yaml"), "does not exist")

	cfg := stubFactories(t)
	cfg.Store.Driver = "sqlite"
	assert.ErrorContains(t, SQLProxy(context.Background(), "daas.yaml"), "unknown store driver")

	stubFactories(t)
	newKubeClient = func(string, ...kube.Option) (*kube.Client, error) { return nil, errors.New("no cluster") }
	assert.ErrorContains(t, SQLProxy(context.Background(), "daas.yaml"), "no cluster")
}
