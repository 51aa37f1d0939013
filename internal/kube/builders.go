package kube

import (
	"fmt"
	"strconv"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/imamik/daas/internal/util/labels"
	"github.com/imamik/daas/internal/util/naming"
	"github.com/imamik/daas/internal/util/ptr"
)

const (
	// SQLPortName is the named port endpoint discovery looks for.
	SQLPortName = "sql-server"
	// SQLPort is the port SQL Server listens on inside the container.
	SQLPort = 1433

	DefaultImage = "mcr.microsoft.com/mssql/server:2022-latest"

	// ContainerMemoryOverheadMB is added on top of the SQL Server memory cap
	// so the engine's own ceiling is hit before the container's.
	ContainerMemoryOverheadMB = 512

	adminPasswordKey  = "password"
	containerName     = "mssql"
	dataVolumeName    = "data"
	dataMountPath     = "/var/opt/mssql"
	annotationName    = "daas.io/server-name"
	envMemoryLimitKey = "MSSQL_MEMORY_LIMIT_MB"
)

// ServerSpec is everything needed to build the objects of one server.
type ServerSpec struct {
	ServerID      string
	TenantID      string
	Name          string
	Image         string
	MemoryLimitMB int
	StorageSizeMB int

	IngressDomain string
	IngressClass  string
}

func (s ServerSpec) image() string {
	if s.Image == "" {
		return DefaultImage
	}
	return s.Image
}

func (s ServerSpec) meta(name string, lb *labels.LabelBuilder) metav1.ObjectMeta {
	return metav1.ObjectMeta{
		Name:        name,
		Labels:      lb.WithTenant(s.TenantID).WithApp(naming.Normalize(s.ServerID)).Build(),
		Annotations: map[string]string{annotationName: s.Name},
	}
}

// BuildAdminSecret holds the sa password consumed by the server container.
func BuildAdminSecret(spec ServerSpec, password string) *corev1.Secret {
	return &corev1.Secret{
		ObjectMeta: spec.meta(naming.AdminSecret(spec.ServerID), labels.NewLabelBuilder(spec.ServerID)),
		Type:       corev1.SecretTypeOpaque,
		StringData: map[string]string{adminPasswordKey: password},
	}
}

// BuildDeployment is the replication resource running a single SQL Server pod.
func BuildDeployment(spec ServerSpec) *appsv1.Deployment {
	memory := resource.MustParse(fmt.Sprintf("%dMi", spec.MemoryLimitMB+ContainerMemoryOverheadMB))

	volume := corev1.Volume{
		Name:         dataVolumeName,
		VolumeSource: corev1.VolumeSource{EmptyDir: &corev1.EmptyDirVolumeSource{}},
	}
	if spec.StorageSizeMB > 0 {
		size := resource.MustParse(fmt.Sprintf("%dMi", spec.StorageSizeMB))
		volume.EmptyDir.SizeLimit = &size
	}

	return &appsv1.Deployment{
		ObjectMeta: spec.meta(naming.Deployment(spec.ServerID), labels.NewLabelBuilder(spec.ServerID)),
		Spec: appsv1.DeploymentSpec{
			Replicas: ptr.To[int32](1),
			Selector: &metav1.LabelSelector{MatchLabels: labels.PodSelector(spec.ServerID)},
			Strategy: appsv1.DeploymentStrategy{Type: appsv1.RecreateDeploymentStrategyType},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: labels.NewLabelBuilder(spec.ServerID).WithTenant(spec.TenantID).WithApp(naming.Normalize(spec.ServerID)).Build(),
				},
				Spec: corev1.PodSpec{
					TerminationGracePeriodSeconds: ptr.To[int64](30),
					Containers: []corev1.Container{{
						Name:  containerName,
						Image: spec.image(),
						Ports: []corev1.ContainerPort{{
							Name:          SQLPortName,
							ContainerPort: SQLPort,
							Protocol:      corev1.ProtocolTCP,
						}},
						Env: []corev1.EnvVar{
							{Name: "ACCEPT_EULA", Value: "Y"},
							{Name: "MSSQL_PID", Value: "Developer"},
							{Name: envMemoryLimitKey, Value: strconv.Itoa(spec.MemoryLimitMB)},
							{
								Name: "MSSQL_SA_PASSWORD",
								ValueFrom: &corev1.EnvVarSource{SecretKeyRef: &corev1.SecretKeySelector{
									LocalObjectReference: corev1.LocalObjectReference{Name: naming.AdminSecret(spec.ServerID)},
									Key:                  adminPasswordKey,
								}},
							},
						},
						Resources: corev1.ResourceRequirements{
							Requests: corev1.ResourceList{corev1.ResourceMemory: memory},
							Limits:   corev1.ResourceList{corev1.ResourceMemory: memory},
						},
						ReadinessProbe: &corev1.Probe{
							ProbeHandler: corev1.ProbeHandler{
								TCPSocket: &corev1.TCPSocketAction{Port: intstr.FromString(SQLPortName)},
							},
							InitialDelaySeconds: 10,
							PeriodSeconds:       5,
						},
						VolumeMounts: []corev1.VolumeMount{{Name: dataVolumeName, MountPath: dataMountPath}},
					}},
					Volumes: []corev1.Volume{volume},
				},
			},
		},
	}
}

// BuildInternalService is the ClusterIP service endpoint discovery resolves.
func BuildInternalService(spec ServerSpec) *corev1.Service {
	return &corev1.Service{
		ObjectMeta: spec.meta(naming.InternalService(spec.ServerID),
			labels.NewLabelBuilder(spec.ServerID).WithServiceType(labels.ServiceTypeInternal)),
		Spec: corev1.ServiceSpec{
			Type:     corev1.ServiceTypeClusterIP,
			Selector: labels.PodSelector(spec.ServerID),
			Ports: []corev1.ServicePort{{
				Name:       SQLPortName,
				Port:       SQLPort,
				TargetPort: intstr.FromString(SQLPortName),
				Protocol:   corev1.ProtocolTCP,
			}},
		},
	}
}

// BuildIngress routes the server's public host to its internal service.
func BuildIngress(spec ServerSpec) *networkingv1.Ingress {
	pathType := networkingv1.PathTypePrefix
	ing := &networkingv1.Ingress{
		ObjectMeta: spec.meta(naming.Ingress(spec.ServerID), labels.NewLabelBuilder(spec.ServerID)),
		Spec: networkingv1.IngressSpec{
			Rules: []networkingv1.IngressRule{{
				Host: naming.PublicHost(spec.ServerID, spec.IngressDomain),
				IngressRuleValue: networkingv1.IngressRuleValue{HTTP: &networkingv1.HTTPIngressRuleValue{
					Paths: []networkingv1.HTTPIngressPath{{
						Path:     "/",
						PathType: &pathType,
						Backend: networkingv1.IngressBackend{Service: &networkingv1.IngressServiceBackend{
							Name: naming.InternalService(spec.ServerID),
							Port: networkingv1.ServiceBackendPort{Name: SQLPortName},
						}},
					}},
				}},
			}},
		},
	}
	if spec.IngressClass != "" {
		ing.Spec.IngressClassName = ptr.To(spec.IngressClass)
	}
	return ing
}

// DeploymentDrifted reports whether the running deployment differs from the
// desired one in the fields a reconfigure may change.
func DeploymentDrifted(existing, desired *appsv1.Deployment) bool {
	ec, dc := serverContainer(existing), serverContainer(desired)
	if ec == nil || dc == nil {
		return true
	}
	if ec.Image != dc.Image {
		return true
	}
	if envValue(ec, envMemoryLimitKey) != envValue(dc, envMemoryLimitKey) {
		return true
	}
	if !ec.Resources.Limits.Memory().Equal(*dc.Resources.Limits.Memory()) {
		return true
	}
	return existing.Spec.Replicas == nil || *existing.Spec.Replicas != *desired.Spec.Replicas
}

// MutateDeployment applies the desired pod template onto an existing deployment.
func MutateDeployment(existing, desired *appsv1.Deployment) *appsv1.Deployment {
	existing.Labels = desired.Labels
	existing.Spec.Replicas = desired.Spec.Replicas
	existing.Spec.Template = desired.Spec.Template
	return existing
}

// PublicEndpointHost returns the host routed by an ingress built here.
func PublicEndpointHost(ing *networkingv1.Ingress) string {
	if len(ing.Spec.Rules) == 0 {
		return ""
	}
	return ing.Spec.Rules[0].Host
}

func serverContainer(d *appsv1.Deployment) *corev1.Container {
	for i := range d.Spec.Template.Spec.Containers {
		if d.Spec.Template.Spec.Containers[i].Name == containerName {
			return &d.Spec.Template.Spec.Containers[i]
		}
	}
	return nil
}

func envValue(c *corev1.Container, name string) string {
	for _, e := range c.Env {
		if e.Name == name {
			return e.Value
		}
	}
	return ""
}
