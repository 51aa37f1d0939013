package labels

import (
	k8slabels "k8s.io/apimachinery/pkg/labels"
)

// Label keys placed on every managed object.
const (
	// KeyServerID identifies which tenant server an object belongs to
	KeyServerID = "daas.io/server-id"

	// KeyTenantID identifies the owning tenant
	KeyTenantID = "daas.io/tenant-id"

	// KeyServiceType distinguishes a server's own internal service from others
	KeyServiceType = "daas.io/service-type"

	// KeyManagedBy identifies the management system
	KeyManagedBy = "daas.io/managed-by"

	// Recommended Kubernetes labels
	KeyAppName      = "app.kubernetes.io/name"
	KeyAppInstance  = "app.kubernetes.io/instance"
	KeyAppComponent = "app.kubernetes.io/component"
)

// ServiceType values
const (
	ServiceTypeInternal = "internal"
)

// ManagedBy values
const (
	ManagedByDaas = "daas"
)

// Component values
const (
	ComponentServer = "sql-server"
)

// LabelBuilder provides a fluent interface for building object labels.
type LabelBuilder struct {
	labels map[string]string
}

// NewLabelBuilder creates a new label builder with the server id pre-set.
func NewLabelBuilder(serverID string) *LabelBuilder {
	return &LabelBuilder{
		labels: map[string]string{
			KeyServerID:  serverID,
			KeyManagedBy: ManagedByDaas,
		},
	}
}

// WithTenant adds the tenant label when tenantID is non-empty.
func (lb *LabelBuilder) WithTenant(tenantID string) *LabelBuilder {
	if tenantID != "" {
		lb.labels[KeyTenantID] = tenantID
	}
	return lb
}

// WithServiceType marks a Service as the server's internal or external service.
func (lb *LabelBuilder) WithServiceType(serviceType string) *LabelBuilder {
	lb.labels[KeyServiceType] = serviceType
	return lb
}

// WithApp adds the recommended app.kubernetes.io labels.
func (lb *LabelBuilder) WithApp(instance string) *LabelBuilder {
	lb.labels[KeyAppName] = "mssql"
	lb.labels[KeyAppInstance] = instance
	lb.labels[KeyAppComponent] = ComponentServer
	return lb
}

// Merge adds all labels from the provided map.
func (lb *LabelBuilder) Merge(extra map[string]string) *LabelBuilder {
	for k, v := range extra {
		lb.labels[k] = v
	}
	return lb
}

// Build returns a copy of the labels map.
func (lb *LabelBuilder) Build() map[string]string {
	result := make(map[string]string, len(lb.labels))
	for k, v := range lb.labels {
		result[k] = v
	}
	return result
}

// PodSelector returns the labels a server's pods are selected by.
func PodSelector(serverID string) map[string]string {
	return map[string]string{
		KeyServerID:  serverID,
		KeyManagedBy: ManagedByDaas,
	}
}

// SelectorForServer returns a label selector string matching every object of a server.
func SelectorForServer(serverID string) string {
	return k8slabels.SelectorFromSet(PodSelector(serverID)).String()
}

// SelectorForInternalService returns the selector used by endpoint discovery.
func SelectorForInternalService(serverID string) string {
	return k8slabels.SelectorFromSet(k8slabels.Set{
		KeyServerID:    serverID,
		KeyServiceType: ServiceTypeInternal,
	}).String()
}

// SelectorForManaged returns a selector matching every object this system manages.
func SelectorForManaged() string {
	return k8slabels.SelectorFromSet(k8slabels.Set{KeyManagedBy: ManagedByDaas}).String()
}
