package orchestrator

import (
	"context"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"

	"github.com/imamik/daas/internal/kube"
	"github.com/imamik/daas/internal/model"
	"github.com/imamik/daas/internal/util/labels"
	"github.com/imamik/daas/internal/util/naming"
)

// KubeCluster implements Cluster on the typed kube client.
type KubeCluster struct {
	*kube.Client
}

var _ Cluster = (*KubeCluster)(nil)

// NewKubeCluster wraps a kube client.
func NewKubeCluster(c *kube.Client) *KubeCluster {
	return &KubeCluster{Client: c}
}

func (k *KubeCluster) EnsureAdminSecret(ctx context.Context, spec kube.ServerSpec, password string) error {
	_, _, err := kube.Ensure(ctx, k.Secrets, kube.BuildAdminSecret(spec, password), kube.EnsureFuncs[*corev1.Secret]{})
	return err
}

// EnsureDeployment updates the deployment in place when its image or memory
// settings drifted from spec.
func (k *KubeCluster) EnsureDeployment(ctx context.Context, spec kube.ServerSpec) error {
	_, _, err := kube.Ensure(ctx, k.Deployments, kube.BuildDeployment(spec), kube.EnsureFuncs[*appsv1.Deployment]{
		NeedsUpdate: kube.DeploymentDrifted,
		Mutate:      kube.MutateDeployment,
	})
	return err
}

func (k *KubeCluster) EnsureService(ctx context.Context, spec kube.ServerSpec) error {
	_, _, err := kube.Ensure(ctx, k.Services, kube.BuildInternalService(spec), kube.EnsureFuncs[*corev1.Service]{})
	return err
}

func (k *KubeCluster) EnsureIngress(ctx context.Context, spec kube.ServerSpec) (string, error) {
	ing, _, err := kube.Ensure(ctx, k.Ingresses, kube.BuildIngress(spec), kube.EnsureFuncs[*networkingv1.Ingress]{})
	if err != nil {
		return "", err
	}
	return kube.PublicEndpointHost(ing), nil
}

func (k *KubeCluster) DeleteIngress(ctx context.Context, serverID string) error {
	_, err := kube.Remove(ctx, k.Ingresses, naming.Ingress(serverID))
	return err
}

func (k *KubeCluster) DeleteService(ctx context.Context, serverID string) error {
	_, err := kube.Remove(ctx, k.Services, naming.InternalService(serverID))
	return err
}

func (k *KubeCluster) DeleteDeployment(ctx context.Context, serverID string) error {
	_, err := kube.Remove(ctx, k.Deployments, naming.Deployment(serverID))
	return err
}

func (k *KubeCluster) DeleteAdminSecret(ctx context.Context, serverID string) error {
	_, err := kube.Remove(ctx, k.Secrets, naming.AdminSecret(serverID))
	return err
}

func (k *KubeCluster) ResourceExists(ctx context.Context, kind kube.Kind, serverID string) (bool, error) {
	var (
		found bool
		err   error
	)
	switch kind {
	case kube.KindDeployment:
		_, found, err = k.Deployments.Get(ctx, naming.Deployment(serverID))
	case kube.KindService:
		_, found, err = k.Services.Get(ctx, naming.InternalService(serverID))
	case kube.KindIngress:
		_, found, err = k.Ingresses.Get(ctx, naming.Ingress(serverID))
	default:
		return false, fmt.Errorf("unsupported kind %s", kind)
	}
	return found, err
}

// ResourceEvent is a watch event reduced to what the dispatcher needs.
type ResourceEvent struct {
	Kind            kube.Kind
	Type            kube.EventType
	Name            string
	ServerID        string
	ResourceVersion string
}

// WatchResources merges the watches of every managed kind into one
// channel, closed when ctx ends.
func WatchResources(ctx context.Context, c *kube.Client) <-chan ResourceEvent {
	selector := labels.SelectorForManaged()
	out := make(chan ResourceEvent)

	forward := func(kind kube.Kind, ev kube.EventType, meta interface {
		GetName() string
		GetLabels() map[string]string
		GetResourceVersion() string
	}) bool {
		select {
		case out <- ResourceEvent{
			Kind:            kind,
			Type:            ev,
			Name:            meta.GetName(),
			ServerID:        meta.GetLabels()[labels.KeyServerID],
			ResourceVersion: meta.GetResourceVersion(),
		}:
			return true
		case <-ctx.Done():
			return false
		}
	}

	deployments := c.Deployments.WatchAll(ctx, selector)
	services := c.Services.WatchAll(ctx, selector)
	ingresses := c.Ingresses.WatchAll(ctx, selector)

	go func() {
		defer close(out)
		for deployments != nil || services != nil || ingresses != nil {
			select {
			case ev, ok := <-deployments:
				if !ok {
					deployments = nil
					continue
				}
				if !forward(ev.Kind, ev.Type, ev.Object) {
					return
				}
			case ev, ok := <-services:
				if !ok {
					services = nil
					continue
				}
				if !forward(ev.Kind, ev.Type, ev.Object) {
					return
				}
			case ev, ok := <-ingresses:
				if !ok {
					ingresses = nil
					continue
				}
				if !forward(ev.Kind, ev.Type, ev.Object) {
					return
				}
			}
		}
	}()
	return out
}

// phaseOf maps a resource kind to the phase that confirms it.
func phaseOf(kind kube.Kind) model.Phase {
	switch kind {
	case kube.KindDeployment:
		return model.PhaseReplicationResource
	case kube.KindService:
		return model.PhaseNetworkService
	case kube.KindIngress:
		return model.PhaseIngressRoute
	}
	return model.PhaseNone
}
