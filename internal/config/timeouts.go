package config

import "time"

// Timeouts holds every configurable duration and retry bound.
//
// Environment variables (prefix DAAS_TIMEOUT_):
//   - STEP (default: 10m) bounds one orchestrator step
//   - POD_READY (default: 5m)
//   - POD_POLL (default: 2s)
//   - PORT_WAIT (default: 5m) for SQL Server to accept TCP connections
//   - REQUEST (default: 5m) per SQL proxy HTTP request
//   - CONNECT (default: 30s) per SQL Server connection attempt
//   - SHUTDOWN (default: 30s)
//   - WATCH_BACKOFF (default: 1s)
//   - RETRY_MAX_ATTEMPTS (default: 5)
//   - RETRY_INITIAL_DELAY (default: 1s)
//   - RETRY_MAX_DELAY (default: 30s)
type Timeouts struct {
	Step              time.Duration `yaml:"step" env:"STEP"`
	PodReady          time.Duration `yaml:"podReady" env:"POD_READY"`
	PodPoll           time.Duration `yaml:"podPoll" env:"POD_POLL"`
	PortWait          time.Duration `yaml:"portWait" env:"PORT_WAIT"`
	Request           time.Duration `yaml:"request" env:"REQUEST"`
	Connect           time.Duration `yaml:"connect" env:"CONNECT"`
	Shutdown          time.Duration `yaml:"shutdown" env:"SHUTDOWN"`
	WatchBackoff      time.Duration `yaml:"watchBackoff" env:"WATCH_BACKOFF"`
	RetryMaxAttempts  int           `yaml:"retryMaxAttempts" env:"RETRY_MAX_ATTEMPTS"`
	RetryInitialDelay time.Duration `yaml:"retryInitialDelay" env:"RETRY_INITIAL_DELAY"`
	RetryMaxDelay     time.Duration `yaml:"retryMaxDelay" env:"RETRY_MAX_DELAY"`
}

// DefaultTimeouts returns the built-in timeout values.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Step:              10 * time.Minute,
		PodReady:          5 * time.Minute,
		PodPoll:           2 * time.Second,
		PortWait:          5 * time.Minute,
		Request:           5 * time.Minute,
		Connect:           30 * time.Second,
		Shutdown:          30 * time.Second,
		WatchBackoff:      1 * time.Second,
		RetryMaxAttempts:  5,
		RetryInitialDelay: 1 * time.Second,
		RetryMaxDelay:     30 * time.Second,
	}
}
