// Package netutil provides network utility functions for port checking.
package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

const (
	// SQLServerWaitTimeout is the default timeout for a freshly scheduled SQL Server to accept connections.
	SQLServerWaitTimeout = 5 * time.Minute

	defaultPollInterval = 1 * time.Second
	defaultDialTimeout  = 2 * time.Second
)

// WaitOptions tunes WaitForPort.
type WaitOptions struct {
	PollInterval time.Duration
	DialTimeout  time.Duration
}

// WaitForPort waits for a TCP port to accept connections on host.
// It checks immediately and then once per poll interval until the port is
// accessible, the timeout elapses or ctx is cancelled.
func WaitForPort(ctx context.Context, host string, port int, timeout time.Duration, opts ...WaitOptions) error {
	o := WaitOptions{PollInterval: defaultPollInterval, DialTimeout: defaultDialTimeout}
	if len(opts) > 0 {
		if opts[0].PollInterval > 0 {
			o.PollInterval = opts[0].PollInterval
		}
		if opts[0].DialTimeout > 0 {
			o.DialTimeout = opts[0].DialTimeout
		}
	}

	address := net.JoinHostPort(host, strconv.Itoa(port))
	ticker := time.NewTicker(o.PollInterval)
	defer ticker.Stop()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := net.Dialer{Timeout: o.DialTimeout}
	probe := func() bool {
		conn, err := dialer.DialContext(ctx, "tcp", address)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}

	if probe() {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("timeout waiting for %s", address)
			}
			return ctx.Err()
		case <-ticker.C:
			if probe() {
				return nil
			}
		}
	}
}
