// Package apply converges the cluster-side objects the Jenkins controller
// depends on: namespace, service account, RBAC, and the agent pod template.
//
// Application is idempotent per object and strictly ordered. A partial
// failure leaves earlier objects converged; re-running resumes at the
// failed object.
package apply

import (
	"context"
	"log/slog"

	corev1 "k8s.io/api/core/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	"k8s.io/apimachinery/pkg/api/equality"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/objectHuang/jenkube/pkg/state"
)

// Applier drives the cluster toward the desired object set.
type Applier struct {
	Client  kubernetes.Interface
	Desired *state.DesiredState
}

// NewApplier returns an applier for the given client and desired state.
func NewApplier(client kubernetes.Interface, desired *state.DesiredState) *Applier {
	return &Applier{Client: client, Desired: desired}
}

type step struct {
	kind  Kind
	name  string
	apply func(ctx context.Context) (Outcome, error)
}

func (a *Applier) steps() []step {
	d := a.Desired
	return []step{
		{KindNamespace, d.Namespace, a.ensureNamespace},
		{KindServiceAccount, d.ServiceAccount, a.ensureServiceAccount},
		{KindClusterRole, d.RoleName, a.ensureClusterRole},
		{KindClusterRoleBinding, d.BindingName, a.ensureClusterRoleBinding},
		{KindPodTemplate, d.PodTemplate.Name, a.ensurePodTemplate},
	}
}

// Apply creates or updates every managed object in dependency order.
// On failure it returns a *PartialError recording what already converged.
func (a *Applier) Apply(ctx context.Context) (*Report, error) {
	report := &Report{}

	for _, s := range a.steps() {
		if err := ctx.Err(); err != nil {
			return nil, &PartialError{
				Applied:    report.Applied,
				FailedKind: s.kind,
				FailedName: s.name,
				Err:        err,
			}
		}

		outcome, err := s.apply(ctx)
		if err != nil {
			return nil, &PartialError{
				Applied:    report.Applied,
				FailedKind: s.kind,
				FailedName: s.name,
				Err:        err,
			}
		}

		slog.Info("applied object",
			slog.String("kind", string(s.kind)),
			slog.String("name", s.name),
			slog.String("outcome", string(outcome)),
		)
		report.Applied = append(report.Applied, ObjectStatus{Kind: s.kind, Name: s.name, Outcome: outcome})
	}

	return report, nil
}

func (a *Applier) ensureNamespace(ctx context.Context) (Outcome, error) {
	desired := namespaceFor(a.Desired)

	_, err := a.Client.CoreV1().Namespaces().Get(ctx, desired.Name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		if _, err := a.Client.CoreV1().Namespaces().Create(ctx, desired, metav1.CreateOptions{}); err != nil {
			return "", err
		}
		return OutcomeCreated, nil
	}
	if err != nil {
		return "", err
	}

	// A namespace carries no spec we manage beyond existence.
	return OutcomeUnchanged, nil
}

func (a *Applier) ensureServiceAccount(ctx context.Context) (Outcome, error) {
	desired := serviceAccountFor(a.Desired)
	accounts := a.Client.CoreV1().ServiceAccounts(a.Desired.Namespace)

	_, err := accounts.Get(ctx, desired.Name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		if _, err := accounts.Create(ctx, desired, metav1.CreateOptions{}); err != nil {
			return "", err
		}
		return OutcomeCreated, nil
	}
	if err != nil {
		return "", err
	}

	return OutcomeUnchanged, nil
}

func (a *Applier) ensureClusterRole(ctx context.Context) (Outcome, error) {
	desired := clusterRoleFor(a.Desired)
	roles := a.Client.RbacV1().ClusterRoles()

	existing, err := roles.Get(ctx, desired.Name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		if _, err := roles.Create(ctx, desired, metav1.CreateOptions{}); err != nil {
			return "", err
		}
		return OutcomeCreated, nil
	}
	if err != nil {
		return "", err
	}

	if equality.Semantic.DeepEqual(existing.Rules, desired.Rules) {
		return OutcomeUnchanged, nil
	}

	updated := existing.DeepCopy()
	updated.Rules = desired.Rules
	if _, err := roles.Update(ctx, updated, metav1.UpdateOptions{}); err != nil {
		return "", err
	}
	return OutcomeUpdated, nil
}

func (a *Applier) ensureClusterRoleBinding(ctx context.Context) (Outcome, error) {
	desired := clusterRoleBindingFor(a.Desired)
	bindings := a.Client.RbacV1().ClusterRoleBindings()

	existing, err := bindings.Get(ctx, desired.Name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		if _, err := bindings.Create(ctx, desired, metav1.CreateOptions{}); err != nil {
			return "", err
		}
		return OutcomeCreated, nil
	}
	if err != nil {
		return "", err
	}

	if bindingConverged(existing, desired) {
		return OutcomeUnchanged, nil
	}

	updated := existing.DeepCopy()
	updated.Subjects = desired.Subjects
	updated.RoleRef = desired.RoleRef
	if _, err := bindings.Update(ctx, updated, metav1.UpdateOptions{}); err != nil {
		return "", err
	}
	return OutcomeUpdated, nil
}

func bindingConverged(existing, desired *rbacv1.ClusterRoleBinding) bool {
	return equality.Semantic.DeepEqual(existing.Subjects, desired.Subjects) &&
		equality.Semantic.DeepEqual(existing.RoleRef, desired.RoleRef)
}

func (a *Applier) ensurePodTemplate(ctx context.Context) (Outcome, error) {
	desired := podTemplateFor(a.Desired)
	templates := a.Client.CoreV1().PodTemplates(a.Desired.Namespace)

	existing, err := templates.Get(ctx, desired.Name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		if _, err := templates.Create(ctx, desired, metav1.CreateOptions{}); err != nil {
			return "", err
		}
		return OutcomeCreated, nil
	}
	if err != nil {
		return "", err
	}

	if templateConverged(existing, desired) {
		return OutcomeUnchanged, nil
	}

	updated := existing.DeepCopy()
	updated.Template = desired.Template
	if _, err := templates.Update(ctx, updated, metav1.UpdateOptions{}); err != nil {
		return "", err
	}
	return OutcomeUpdated, nil
}

func templateConverged(existing, desired *corev1.PodTemplate) bool {
	return equality.Semantic.DeepEqual(existing.Template, desired.Template)
}
