package apply

import (
	corev1 "k8s.io/api/core/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/objectHuang/jenkube/pkg/state"
)

// Kind enumerates the object kinds the applier manages, in dependency order.
type Kind string

const (
	KindNamespace          Kind = "Namespace"
	KindServiceAccount     Kind = "ServiceAccount"
	KindClusterRole        Kind = "ClusterRole"
	KindClusterRoleBinding Kind = "ClusterRoleBinding"
	KindPodTemplate        Kind = "PodTemplate"
)

// managedByLabel marks objects created by this tool. It is informational
// only; convergence never depends on it.
const managedByLabel = "app.kubernetes.io/managed-by"

const managedByValue = "jenkube"

func managedLabels() map[string]string {
	return map[string]string{managedByLabel: managedByValue}
}

func namespaceFor(d *state.DesiredState) *corev1.Namespace {
	return &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name:   d.Namespace,
			Labels: managedLabels(),
		},
	}
}

func serviceAccountFor(d *state.DesiredState) *corev1.ServiceAccount {
	return &corev1.ServiceAccount{
		ObjectMeta: metav1.ObjectMeta{
			Name:      d.ServiceAccount,
			Namespace: d.Namespace,
			Labels:    managedLabels(),
		},
	}
}

// clusterRoleFor grants the permissions the Jenkins kubernetes plugin needs
// to dispatch and attach to agent pods.
func clusterRoleFor(d *state.DesiredState) *rbacv1.ClusterRole {
	return &rbacv1.ClusterRole{
		ObjectMeta: metav1.ObjectMeta{
			Name:   d.RoleName,
			Labels: managedLabels(),
		},
		Rules: []rbacv1.PolicyRule{
			{
				APIGroups: []string{""},
				Resources: []string{"pods"},
				Verbs:     []string{"create", "delete", "get", "list", "patch", "update", "watch"},
			},
			{
				APIGroups: []string{""},
				Resources: []string{"pods/exec", "pods/log"},
				Verbs:     []string{"get", "list", "watch"},
			},
			{
				APIGroups: []string{""},
				Resources: []string{"events"},
				Verbs:     []string{"get", "list", "watch"},
			},
			{
				APIGroups: []string{""},
				Resources: []string{"secrets"},
				Verbs:     []string{"get"},
			},
		},
	}
}

func clusterRoleBindingFor(d *state.DesiredState) *rbacv1.ClusterRoleBinding {
	return &rbacv1.ClusterRoleBinding{
		ObjectMeta: metav1.ObjectMeta{
			Name:   d.BindingName,
			Labels: managedLabels(),
		},
		Subjects: []rbacv1.Subject{
			{
				Kind:      rbacv1.ServiceAccountKind,
				Name:      d.ServiceAccount,
				Namespace: d.Namespace,
			},
		},
		RoleRef: rbacv1.RoleRef{
			APIGroup: rbacv1.GroupName,
			Kind:     "ClusterRole",
			Name:     d.RoleName,
		},
	}
}

func podTemplateFor(d *state.DesiredState) *corev1.PodTemplate {
	tpl := d.PodTemplate

	labels := map[string]string{managedByLabel: managedByValue}
	for k, v := range tpl.Labels {
		labels[k] = v
	}
	if tpl.Label != "" {
		labels["jenkins/label"] = tpl.Label
	}

	container := corev1.Container{
		Name:       "jnlp",
		Image:      tpl.Image,
		WorkingDir: tpl.WorkingDir,
	}

	requests := corev1.ResourceList{}
	if tpl.CPURequest != "" {
		requests[corev1.ResourceCPU] = resource.MustParse(tpl.CPURequest)
	}
	if tpl.MemoryRequest != "" {
		requests[corev1.ResourceMemory] = resource.MustParse(tpl.MemoryRequest)
	}
	if len(requests) > 0 {
		container.Resources = corev1.ResourceRequirements{Requests: requests}
	}

	return &corev1.PodTemplate{
		ObjectMeta: metav1.ObjectMeta{
			Name:      tpl.Name,
			Namespace: d.Namespace,
			Labels:    managedLabels(),
		},
		Template: corev1.PodTemplateSpec{
			ObjectMeta: metav1.ObjectMeta{
				Labels: labels,
			},
			Spec: corev1.PodSpec{
				ServiceAccountName: d.ServiceAccount,
				RestartPolicy:      corev1.RestartPolicyNever,
				Containers:         []corev1.Container{container},
			},
		},
	}
}
