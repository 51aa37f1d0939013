package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Backoff is an exponential schedule. Retries counts attempts after the
// first, so an operation runs at most Retries+1 times.
type Backoff struct {
	Retries int
	Initial time.Duration
	Max     time.Duration
	Factor  float64
}

// DefaultBackoff is five retries starting at one second, capped at thirty.
var DefaultBackoff = Backoff{
	Retries: 5,
	Initial: time.Second,
	Max:     30 * time.Second,
	Factor:  2,
}

// Delay returns the pause before retry n, counting from 1.
func (b Backoff) Delay(n int) time.Duration {
	factor := b.Factor
	if factor < 1 {
		factor = 1
	}
	d := float64(b.Initial)
	for i := 1; i < n; i++ {
		d *= factor
		if b.Max > 0 && time.Duration(d) >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && time.Duration(d) > b.Max {
		return b.Max
	}
	return time.Duration(d)
}

type settings struct {
	transient func(error) bool
	notify    func(retry int, err error, delay time.Duration)
}

// Option adjusts a single Do call.
type Option func(*settings)

// If retries only errors for which fn returns true. Without it every error
// that is not Permanent is retried.
func If(fn func(error) bool) Option {
	return func(s *settings) { s.transient = fn }
}

// Notify is called before each pause with the upcoming retry number.
func Notify(fn func(retry int, err error, delay time.Duration)) Option {
	return func(s *settings) { s.notify = fn }
}

// Do runs op until it succeeds, fails permanently, exhausts b or ctx ends.
// An error rejected by the If classifier is returned marked Permanent.
func Do(ctx context.Context, b Backoff, op func(context.Context) error, opts ...Option) error {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	for n := 0; ; n++ {
		err := op(ctx)
		switch {
		case err == nil:
			return nil
		case IsPermanent(err):
			return err
		case s.transient != nil && !s.transient(err):
			return Permanent(err)
		case n >= b.Retries:
			return fmt.Errorf("giving up after %d attempts: %w", n+1, err)
		}

		delay := b.Delay(n + 1)
		if s.notify != nil {
			s.notify(n+1, err, delay)
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("interrupted after %d attempts: %w", n+1, errors.Join(ctx.Err(), err))
		case <-t.C:
		}
	}
}

// PermanentError stops Do from retrying the error it wraps.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as not worth retrying. It returns nil for nil.
func Permanent(err error) error {
	if err == nil || IsPermanent(err) {
		return err
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err carries a Permanent mark.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}
