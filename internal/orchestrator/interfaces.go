package orchestrator

import (
	"context"
	"time"

	"github.com/imamik/daas/internal/kube"
	"github.com/imamik/daas/internal/model"
	"github.com/imamik/daas/pkg/sqlapi"
)

// Cluster is the set of control-plane operations a worker needs. Every
// Ensure is get-or-create and every Delete succeeds when the object is
// already gone.
type Cluster interface {
	EnsureAdminSecret(ctx context.Context, spec kube.ServerSpec, password string) error
	EnsureDeployment(ctx context.Context, spec kube.ServerSpec) error
	EnsureService(ctx context.Context, spec kube.ServerSpec) error
	// EnsureIngress returns the public host routed to the server.
	EnsureIngress(ctx context.Context, spec kube.ServerSpec) (string, error)

	DeleteIngress(ctx context.Context, serverID string) error
	DeleteService(ctx context.Context, serverID string) error
	DeleteDeployment(ctx context.Context, serverID string) error
	DeleteAdminSecret(ctx context.Context, serverID string) error

	WaitForServerPod(ctx context.Context, serverID string, interval, timeout time.Duration) error
	ResolveServerEndpoint(ctx context.Context, serverID string) (model.Endpoint, error)
	ResourceExists(ctx context.Context, kind kube.Kind, serverID string) (bool, error)
}

// SQLExecutor runs management batches. Both sqlapi.Client and
// sqlproxy.Executor satisfy it.
type SQLExecutor interface {
	ExecuteCommand(ctx context.Context, req sqlapi.Request) (*sqlapi.Result, error)
	ExecuteQuery(ctx context.Context, req sqlapi.Request) (*sqlapi.Result, error)
}

// PortProber blocks until host:port accepts TCP connections.
type PortProber func(ctx context.Context, host string, port int, timeout time.Duration) error
