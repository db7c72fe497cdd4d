package apply

import (
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// Outcome is the per-object result of a create-or-update.
type Outcome string

const (
	OutcomeCreated   Outcome = "Created"
	OutcomeUpdated   Outcome = "Updated"
	OutcomeUnchanged Outcome = "Unchanged"
)

// ObjectStatus records what happened to one object.
type ObjectStatus struct {
	Kind    Kind    `json:"kind" yaml:"kind"`
	Name    string  `json:"name" yaml:"name"`
	Outcome Outcome `json:"outcome" yaml:"outcome"`
}

// Report is the result of a fully successful Apply.
type Report struct {
	Applied []ObjectStatus `json:"applied" yaml:"applied"`
}

// Changed reports whether any object was created or updated.
func (r *Report) Changed() bool {
	for _, s := range r.Applied {
		if s.Outcome != OutcomeUnchanged {
			return true
		}
	}
	return false
}

// PartialError reports an Apply that failed partway through. Objects in
// Applied are converged and will be no-ops on the next run; re-invoking
// Apply resumes at the failed object.
type PartialError struct {
	Applied    []ObjectStatus
	FailedKind Kind
	FailedName string
	Err        error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("failed to apply %s %q after %d object(s): %v",
		e.FailedKind, e.FailedName, len(e.Applied), e.Err)
}

func (e *PartialError) Unwrap() error {
	return e.Err
}

// Fatal reports whether re-running apply cannot help: the API server
// understood the request and rejected it (permissions or invalid spec),
// as opposed to a transient transport failure.
func (e *PartialError) Fatal() bool {
	return apierrors.IsForbidden(e.Err) || apierrors.IsUnauthorized(e.Err) ||
		apierrors.IsInvalid(e.Err) || apierrors.IsBadRequest(e.Err)
}
