package orchestrator

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/imamik/daas/internal/kube"
	"github.com/imamik/daas/internal/model"
	"github.com/imamik/daas/pkg/sqlapi"
)

// MockCluster is a Cluster recording every call in order.
type MockCluster struct {
	mu sync.Mutex

	EnsureAdminSecretFunc     func(ctx context.Context, spec kube.ServerSpec, password string) error
	EnsureDeploymentFunc      func(ctx context.Context, spec kube.ServerSpec) error
	EnsureServiceFunc         func(ctx context.Context, spec kube.ServerSpec) error
	EnsureIngressFunc         func(ctx context.Context, spec kube.ServerSpec) (string, error)
	DeleteIngressFunc         func(ctx context.Context, serverID string) error
	DeleteServiceFunc         func(ctx context.Context, serverID string) error
	DeleteDeploymentFunc      func(ctx context.Context, serverID string) error
	DeleteAdminSecretFunc     func(ctx context.Context, serverID string) error
	WaitForServerPodFunc      func(ctx context.Context, serverID string) error
	ResolveServerEndpointFunc func(ctx context.Context, serverID string) (model.Endpoint, error)
	ResourceExistsFunc        func(ctx context.Context, kind kube.Kind, serverID string) (bool, error)

	// Call tracking
	Calls           []string
	AdminPasswords  []string
	DeploymentSpecs []kube.ServerSpec
}

func (m *MockCluster) record(call string) {
	m.mu.Lock()
	m.Calls = append(m.Calls, call)
	m.mu.Unlock()
}

// CallsSnapshot returns a copy of the recorded calls.
func (m *MockCluster) CallsSnapshot() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Calls...)
}

// Count returns how many recorded calls start with prefix.
func (m *MockCluster) Count(prefix string) int {
	n := 0
	for _, c := range m.CallsSnapshot() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (m *MockCluster) EnsureAdminSecret(ctx context.Context, spec kube.ServerSpec, password string) error {
	m.record("EnsureAdminSecret:" + spec.ServerID)
	m.mu.Lock()
	m.AdminPasswords = append(m.AdminPasswords, password)
	m.mu.Unlock()
	if m.EnsureAdminSecretFunc != nil {
		return m.EnsureAdminSecretFunc(ctx, spec, password)
	}
	return nil
}

func (m *MockCluster) EnsureDeployment(ctx context.Context, spec kube.ServerSpec) error {
	m.record("EnsureDeployment:" + spec.ServerID)
	m.mu.Lock()
	m.DeploymentSpecs = append(m.DeploymentSpecs, spec)
	m.mu.Unlock()
	if m.EnsureDeploymentFunc != nil {
		return m.EnsureDeploymentFunc(ctx, spec)
	}
	return nil
}

func (m *MockCluster) EnsureService(ctx context.Context, spec kube.ServerSpec) error {
	m.record("EnsureService:" + spec.ServerID)
	if m.EnsureServiceFunc != nil {
		return m.EnsureServiceFunc(ctx, spec)
	}
	return nil
}

func (m *MockCluster) EnsureIngress(ctx context.Context, spec kube.ServerSpec) (string, error) {
	m.record("EnsureIngress:" + spec.ServerID)
	if m.EnsureIngressFunc != nil {
		return m.EnsureIngressFunc(ctx, spec)
	}
	return spec.ServerID + "." + spec.IngressDomain, nil
}

func (m *MockCluster) DeleteIngress(ctx context.Context, serverID string) error {
	m.record("DeleteIngress:" + serverID)
	if m.DeleteIngressFunc != nil {
		return m.DeleteIngressFunc(ctx, serverID)
	}
	return nil
}

func (m *MockCluster) DeleteService(ctx context.Context, serverID string) error {
	m.record("DeleteService:" + serverID)
	if m.DeleteServiceFunc != nil {
		return m.DeleteServiceFunc(ctx, serverID)
	}
	return nil
}

func (m *MockCluster) DeleteDeployment(ctx context.Context, serverID string) error {
	m.record("DeleteDeployment:" + serverID)
	if m.DeleteDeploymentFunc != nil {
		return m.DeleteDeploymentFunc(ctx, serverID)
	}
	return nil
}

func (m *MockCluster) DeleteAdminSecret(ctx context.Context, serverID string) error {
	m.record("DeleteAdminSecret:" + serverID)
	if m.DeleteAdminSecretFunc != nil {
		return m.DeleteAdminSecretFunc(ctx, serverID)
	}
	return nil
}

func (m *MockCluster) WaitForServerPod(ctx context.Context, serverID string, _, _ time.Duration) error {
	m.record("WaitForServerPod:" + serverID)
	if m.WaitForServerPodFunc != nil {
		return m.WaitForServerPodFunc(ctx, serverID)
	}
	return nil
}

func (m *MockCluster) ResolveServerEndpoint(ctx context.Context, serverID string) (model.Endpoint, error) {
	m.record("ResolveServerEndpoint:" + serverID)
	if m.ResolveServerEndpointFunc != nil {
		return m.ResolveServerEndpointFunc(ctx, serverID)
	}
	return model.Endpoint{Host: serverID + ".svc", Port: kube.SQLPort}, nil
}

func (m *MockCluster) ResourceExists(ctx context.Context, kind kube.Kind, serverID string) (bool, error) {
	m.record("ResourceExists:" + string(kind) + ":" + serverID)
	if m.ResourceExistsFunc != nil {
		return m.ResourceExistsFunc(ctx, kind, serverID)
	}
	return false, nil
}

// MockSQL is a SQLExecutor recording every request.
type MockSQL struct {
	mu sync.Mutex

	ExecuteCommandFunc func(ctx context.Context, req sqlapi.Request) (*sqlapi.Result, error)
	ExecuteQueryFunc   func(ctx context.Context, req sqlapi.Request) (*sqlapi.Result, error)

	CommandCalls []sqlapi.Request
	QueryCalls   []sqlapi.Request
}

func (m *MockSQL) ExecuteCommand(ctx context.Context, req sqlapi.Request) (*sqlapi.Result, error) {
	m.mu.Lock()
	m.CommandCalls = append(m.CommandCalls, req)
	m.mu.Unlock()
	if m.ExecuteCommandFunc != nil {
		return m.ExecuteCommandFunc(ctx, req)
	}
	return &sqlapi.Result{}, nil
}

func (m *MockSQL) ExecuteQuery(ctx context.Context, req sqlapi.Request) (*sqlapi.Result, error) {
	m.mu.Lock()
	m.QueryCalls = append(m.QueryCalls, req)
	m.mu.Unlock()
	if m.ExecuteQueryFunc != nil {
		return m.ExecuteQueryFunc(ctx, req)
	}
	return &sqlapi.Result{ResultSets: []sqlapi.ResultSet{{Rows: []sqlapi.Row{}}}}, nil
}

// Commands returns the first statement of every command batch, which is
// enough to tell the generated scripts apart.
func (m *MockSQL) Commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.CommandCalls))
	for _, c := range m.CommandCalls {
		out = append(out, c.Sql[0])
	}
	return out
}

// MockRequester records dispatcher repair requests.
type MockRequester struct {
	mu sync.Mutex

	ActiveFunc func(serverID string) bool
	Err        error

	Requests []string
}

func (m *MockRequester) RequestAction(serverID string, action model.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, serverID+":"+string(action))
	return m.Err
}

func (m *MockRequester) Active(serverID string) bool {
	if m.ActiveFunc != nil {
		return m.ActiveFunc(serverID)
	}
	return false
}
