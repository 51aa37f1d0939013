package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/imamik/daas/internal/util/keygen"
)

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Kubernetes.Namespace == "" {
		errs = append(errs, fmt.Errorf("kubernetes.namespace is required"))
	}
	if c.Kubernetes.Image == "" {
		errs = append(errs, fmt.Errorf("kubernetes.image is required"))
	}

	switch c.Store.Driver {
	case StoreMemory:
	case StorePostgres:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver must be %q or %q, got %q", StoreMemory, StorePostgres, c.Store.Driver))
	}

	switch c.Events.Driver {
	case EventsLog:
	case EventsRedis:
		if c.Events.RedisAddress == "" {
			errs = append(errs, fmt.Errorf("events.redisAddress is required for the redis driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("events.driver must be %q or %q, got %q", EventsLog, EventsRedis, c.Events.Driver))
	}

	if c.Orchestrator.PasswordLength < keygen.MinPasswordLength {
		errs = append(errs, fmt.Errorf("orchestrator.passwordLength must be at least %d", keygen.MinPasswordLength))
	}

	errs = append(errs, c.Timeouts.validate()...)
	return errors.Join(errs...)
}

func (t Timeouts) validate() []error {
	var errs []error
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"step", t.Step},
		{"podReady", t.PodReady},
		{"podPoll", t.PodPoll},
		{"portWait", t.PortWait},
		{"request", t.Request},
		{"connect", t.Connect},
		{"shutdown", t.Shutdown},
		{"watchBackoff", t.WatchBackoff},
		{"retryInitialDelay", t.RetryInitialDelay},
		{"retryMaxDelay", t.RetryMaxDelay},
	} {
		if d.value <= 0 {
			errs = append(errs, fmt.Errorf("timeouts.%s must be positive", d.name))
		}
	}
	if t.RetryMaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("timeouts.retryMaxAttempts must not be negative"))
	}
	if t.PodReady > t.Step || t.PortWait > t.Step {
		errs = append(errs, fmt.Errorf("timeouts.step must cover podReady and portWait"))
	}
	return errs
}
