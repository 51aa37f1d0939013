package labels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	k8slabels "k8s.io/apimachinery/pkg/labels"
)

func TestNewLabelBuilder(t *testing.T) {
	t.Parallel()

	labels := NewLabelBuilder("srv-1").Build()

	assert.Equal(t, "srv-1", labels[KeyServerID])
	assert.Equal(t, ManagedByDaas, labels[KeyManagedBy])
	assert.NotContains(t, labels, KeyTenantID)
}

func TestLabelBuilder_Chain(t *testing.T) {
	t.Parallel()

	labels := NewLabelBuilder("srv-1").
		WithTenant("tenant-a").
		WithServiceType(ServiceTypeInternal).
		WithApp("acme").
		Merge(map[string]string{"extra": "yes"}).
		Build()

	assert.Equal(t, "tenant-a", labels[KeyTenantID])
	assert.Equal(t, ServiceTypeInternal, labels[KeyServiceType])
	assert.Equal(t, "mssql", labels[KeyAppName])
	assert.Equal(t, "acme", labels[KeyAppInstance])
	assert.Equal(t, ComponentServer, labels[KeyAppComponent])
	assert.Equal(t, "yes", labels["extra"])
}

func TestLabelBuilder_WithTenantEmpty(t *testing.T) {
	t.Parallel()

	labels := NewLabelBuilder("srv-1").WithTenant("").Build()
	assert.NotContains(t, labels, KeyTenantID)
}

func TestBuild_ReturnsCopy(t *testing.T) {
	t.Parallel()

	lb := NewLabelBuilder("srv-1")
	first := lb.Build()
	first[KeyServerID] = "mutated"

	assert.Equal(t, "srv-1", lb.Build()[KeyServerID])
}

func TestSelectorForInternalService(t *testing.T) {
	t.Parallel()

	sel, err := k8slabels.Parse(SelectorForInternalService("srv-1"))
	require.NoError(t, err)

	own := NewLabelBuilder("srv-1").WithServiceType(ServiceTypeInternal).Build()
	other := NewLabelBuilder("srv-2").WithServiceType(ServiceTypeInternal).Build()
	external := NewLabelBuilder("srv-1").WithServiceType("external").Build()

	assert.True(t, sel.Matches(k8slabels.Set(own)))
	assert.False(t, sel.Matches(k8slabels.Set(other)))
	assert.False(t, sel.Matches(k8slabels.Set(external)))
}

func TestSelectorForServer(t *testing.T) {
	t.Parallel()

	sel, err := k8slabels.Parse(SelectorForServer("srv-1"))
	require.NoError(t, err)
	assert.True(t, sel.Matches(k8slabels.Set(NewLabelBuilder("srv-1").WithApp("x").Build())))
	assert.False(t, sel.Matches(k8slabels.Set(NewLabelBuilder("srv-10").Build())))
}

func TestSelectorForManaged(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "daas.io/managed-by=daas", SelectorForManaged())
}
