package kube

import (
	"testing"
	"time"

	"k8s.io/client-go/kubernetes/fake"
)

func testSpec() ServerSpec {
	return ServerSpec{
		ServerID:      "srv-1",
		TenantID:      "tenant-a",
		Name:          "Acme Prod",
		MemoryLimitMB: 2048,
		StorageSizeMB: 10240,
		IngressDomain: "db.example.com",
		IngressClass:  "nginx",
	}
}

func newTestClient(t *testing.T) (*Client, *fake.Clientset) {
	t.Helper()
	cs := fake.NewSimpleClientset() //nolint:staticcheck // SA1019: NewClientset requires generated apply configurations
	c := New(cs,
		WithNamespace("tenants"),
		WithRetryPolicy(RetryPolicy{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}),
		WithWatchBackoff(5*time.Millisecond),
	)
	return c, cs
}
