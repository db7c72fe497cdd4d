package pipeline

import (
	"errors"
	"fmt"
)

// Stage names the five checkpoints of a convergence run.
type Stage string

const (
	StageProbe      Stage = "probe"
	StageApply      Stage = "apply"
	StageCredential Stage = "credential"
	StageRender     Stage = "render"
	StageActivate   Stage = "activate"
)

// Exit codes distinguishing the failing stage for callers and scripts.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitPrecond    = 2
	ExitApply      = 3
	ExitCredential = 4
	ExitRender     = 5
	ExitActivation = 6
)

// StageError wraps a stage failure with the stage it happened in. No stage
// swallows a failure: every error propagates to the top level carrying
// enough context for the operator to act.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ExitCode maps an error to the process exit code for the failing stage.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		return ExitFailure
	}

	switch stageErr.Stage {
	case StageProbe:
		return ExitPrecond
	case StageApply:
		return ExitApply
	case StageCredential:
		return ExitCredential
	case StageRender:
		return ExitRender
	case StageActivate:
		return ExitActivation
	default:
		return ExitFailure
	}
}
