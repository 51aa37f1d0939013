package kube

import (
	"fmt"
	"time"

	"github.com/go-logr/logr"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	ctrlconfig "sigs.k8s.io/controller-runtime/pkg/client/config"
)

const (
	DefaultNamespace     = "default"
	DefaultClusterDomain = "cluster.local"
)

// RetryPolicy bounds how Ensure and Remove retry transient errors.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryPolicy is used when no policy is configured.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:   5,
	InitialDelay: 1 * time.Second,
	MaxDelay:     30 * time.Second,
}

// Client groups the typed resources of one namespace.
// It is safe for concurrent use and meant to be shared by every worker.
type Client struct {
	clientset     kubernetes.Interface
	namespace     string
	clusterDomain string
	retry         RetryPolicy
	watchBackoff  time.Duration
	log           logr.Logger

	Deployments *Resource[*appsv1.Deployment, *appsv1.DeploymentList]
	Services    *Resource[*corev1.Service, *corev1.ServiceList]
	Ingresses   *Resource[*networkingv1.Ingress, *networkingv1.IngressList]
	Pods        *Resource[*corev1.Pod, *corev1.PodList]
	Secrets     *Resource[*corev1.Secret, *corev1.SecretList]
}

// Option configures a Client.
type Option func(*Client)

// WithNamespace sets the namespace objects are managed in.
func WithNamespace(ns string) Option {
	return func(c *Client) {
		if ns != "" {
			c.namespace = ns
		}
	}
}

// WithClusterDomain sets the DNS suffix used for service host names.
func WithClusterDomain(domain string) Option {
	return func(c *Client) {
		if domain != "" {
			c.clusterDomain = domain
		}
	}
}

// WithRetryPolicy overrides the transient error retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) {
		c.retry = p
	}
}

// WithWatchBackoff sets the initial delay before a dropped watch is re-established.
func WithWatchBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.watchBackoff = d
	}
}

// WithLogger sets the logger.
func WithLogger(log logr.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// New wraps an existing clientset, typically a fake one in tests.
func New(clientset kubernetes.Interface, opts ...Option) *Client {
	c := &Client{
		clientset:     clientset,
		namespace:     DefaultNamespace,
		clusterDomain: DefaultClusterDomain,
		retry:         DefaultRetryPolicy,
		watchBackoff:  time.Second,
		log:           logr.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.Deployments = newResource(c, KindDeployment,
		func(ns string) api[*appsv1.Deployment, *appsv1.DeploymentList] {
			return clientset.AppsV1().Deployments(ns)
		},
		func(l *appsv1.DeploymentList) []*appsv1.Deployment { return ptrs(l.Items) })
	c.Services = newResource(c, KindService,
		func(ns string) api[*corev1.Service, *corev1.ServiceList] {
			return clientset.CoreV1().Services(ns)
		},
		func(l *corev1.ServiceList) []*corev1.Service { return ptrs(l.Items) })
	c.Ingresses = newResource(c, KindIngress,
		func(ns string) api[*networkingv1.Ingress, *networkingv1.IngressList] {
			return clientset.NetworkingV1().Ingresses(ns)
		},
		func(l *networkingv1.IngressList) []*networkingv1.Ingress { return ptrs(l.Items) })
	c.Pods = newResource(c, KindPod,
		func(ns string) api[*corev1.Pod, *corev1.PodList] {
			return clientset.CoreV1().Pods(ns)
		},
		func(l *corev1.PodList) []*corev1.Pod { return ptrs(l.Items) })
	c.Secrets = newResource(c, KindSecret,
		func(ns string) api[*corev1.Secret, *corev1.SecretList] {
			return clientset.CoreV1().Secrets(ns)
		},
		func(l *corev1.SecretList) []*corev1.Secret { return ptrs(l.Items) })

	return c
}

// RESTConfig loads a kubeconfig file, or falls back to in-cluster and
// default loading rules when path is empty.
func RESTConfig(kubeconfigPath string) (*rest.Config, error) {
	if kubeconfigPath != "" {
		cfg, err := clientcmd.BuildConfigFromFlags("", kubeconfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to build kubeconfig: %w", err)
		}
		return cfg, nil
	}
	cfg, err := ctrlconfig.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load cluster config: %w", err)
	}
	return cfg, nil
}

// NewFromConfig creates a Client talking to a real control plane.
func NewFromConfig(kubeconfigPath string, opts ...Option) (*Client, error) {
	cfg, err := RESTConfig(kubeconfigPath)
	if err != nil {
		return nil, err
	}
	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}
	return New(clientset, opts...), nil
}

// Namespace returns the managed namespace.
func (c *Client) Namespace() string {
	return c.namespace
}

// Clientset exposes the underlying clientset.
func (c *Client) Clientset() kubernetes.Interface {
	return c.clientset
}

func ptrs[E any](items []E) []*E {
	out := make([]*E, len(items))
	for i := range items {
		out[i] = &items[i]
	}
	return out
}
