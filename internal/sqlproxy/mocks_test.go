package sqlproxy

import (
	"context"
	"sync"

	"github.com/imamik/daas/internal/model"
)

// mockResolver is a function-field EndpointResolver.
type mockResolver struct {
	ResolveFunc func(ctx context.Context, serverID string) (model.Endpoint, error)
	calls       []string
}

func (m *mockResolver) ResolveServerEndpoint(ctx context.Context, serverID string) (model.Endpoint, error) {
	m.calls = append(m.calls, serverID)
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, serverID)
	}
	return model.Endpoint{Host: "mssql-srv-1-internal.tenants.svc.cluster.local", Port: 1433}, nil
}

type scripted struct {
	result StatementResult
	err    error
}

// mockSession replays scripted outcomes keyed by statement text.
type mockSession struct {
	mu       sync.Mutex
	script   map[string]scripted
	executed []string
	queried  []string
	args     [][]any
	closed   bool
}

func (s *mockSession) Exec(_ context.Context, statement string, args []any) (StatementResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executed = append(s.executed, statement)
	s.args = append(s.args, args)
	out := s.script[statement]
	return out.result, out.err
}

func (s *mockSession) Query(_ context.Context, statement string, args []any) (StatementResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queried = append(s.queried, statement)
	s.args = append(s.args, args)
	out := s.script[statement]
	return out.result, out.err
}

func (s *mockSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// mockOpener hands out one session and records the settings it was asked for.
type mockOpener struct {
	session  *mockSession
	err      error
	settings []ConnectionSettings
}

func (o *mockOpener) Open(_ context.Context, cs ConnectionSettings) (Session, error) {
	o.settings = append(o.settings, cs)
	if o.err != nil {
		return nil, o.err
	}
	return o.session, nil
}
