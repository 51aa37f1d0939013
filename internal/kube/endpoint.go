package kube

import (
	"context"
	"errors"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/imamik/daas/internal/model"
	"github.com/imamik/daas/internal/util/labels"
)

var (
	// ErrServiceNotFound means no internal service is labelled for the server.
	ErrServiceNotFound = errors.New("server's associated Kubernetes Service not found")
	// ErrPortNotFound means the service exists but lacks the SQL named port.
	ErrPortNotFound = fmt.Errorf("cannot find the port named '%s' on server's associated Kubernetes Service", SQLPortName)
)

// EndpointError is returned when a server's endpoint cannot be determined.
type EndpointError struct {
	ServerID string
	Err      error
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("server %s: %v", e.ServerID, e.Err)
}

func (e *EndpointError) Unwrap() error {
	return e.Err
}

// ResolveServerEndpoint finds the internal service of a server and returns
// the in-cluster host name and port of its SQL port. When several services
// match, the last one listed wins.
func (c *Client) ResolveServerEndpoint(ctx context.Context, serverID string) (model.Endpoint, error) {
	services, err := c.Services.List(ctx, labels.SelectorForInternalService(serverID))
	if err != nil {
		return model.Endpoint{}, err
	}
	if len(services) == 0 {
		return model.Endpoint{}, &EndpointError{ServerID: serverID, Err: ErrServiceNotFound}
	}

	svc := services[len(services)-1]
	for _, port := range svc.Spec.Ports {
		if port.Name == SQLPortName {
			return model.Endpoint{
				Host: fmt.Sprintf("%s.%s.svc.%s", svc.Name, svc.Namespace, c.clusterDomain),
				Port: int(port.Port),
			}, nil
		}
	}
	return model.Endpoint{}, &EndpointError{ServerID: serverID, Err: ErrPortNotFound}
}

// WaitForServerPod blocks until a pod of the server is running and ready.
// Transient list failures are tolerated while polling.
func (c *Client) WaitForServerPod(ctx context.Context, serverID string, interval, timeout time.Duration) error {
	selector := labels.SelectorForServer(serverID)
	err := wait.PollUntilContextTimeout(ctx, interval, timeout, true, func(ctx context.Context) (bool, error) {
		pods, err := c.Pods.List(ctx, selector)
		if err != nil {
			if IsTransient(err) {
				return false, nil
			}
			return false, err
		}
		for _, pod := range pods {
			if IsPodReady(pod) {
				return true, nil
			}
		}
		return false, nil
	})
	if err != nil {
		return fmt.Errorf("waiting for pod of server %s: %w", serverID, err)
	}
	return nil
}

// IsPodReady reports whether a pod is running with a true Ready condition.
func IsPodReady(pod *corev1.Pod) bool {
	if pod.Status.Phase != corev1.PodRunning || pod.DeletionTimestamp != nil {
		return false
	}
	for _, cond := range pod.Status.Conditions {
		if cond.Type == corev1.PodReady {
			return cond.Status == corev1.ConditionTrue
		}
	}
	return false
}
