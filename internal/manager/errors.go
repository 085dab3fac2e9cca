package manager

import (
	"errors"
	"fmt"
)

// Kind classifies a manager failure for result envelopes and HTTP mapping.
type Kind string

const (
	KindModelNotFound     Kind = "model_not_found"
	KindArtifactMissing   Kind = "artifact_missing"
	KindBudgetExceeded    Kind = "budget_exceeded"
	KindRuntimeLoad       Kind = "runtime_load_error"
	KindRuntimeUnload     Kind = "runtime_unload_error"
	KindRuntimeGeneration Kind = "runtime_generation_error"
	KindUnknownAction     Kind = "unknown_action"
	KindInternal          Kind = "internal"
)

type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

// ErrModelNotFound returns an error for a model id absent from the registry.
func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model id.
func IsModelNotFound(err error) bool {
	var e modelNotFoundError
	return errors.As(err, &e)
}

type artifactMissingError struct {
	id   string
	path string
}

func (e artifactMissingError) Error() string {
	return fmt.Sprintf("artifact missing for model %s: %s", e.id, e.path)
}

// ErrArtifactMissing returns an error for a registered model whose artifact
// path does not resolve.
func ErrArtifactMissing(id, path string) error { return artifactMissingError{id: id, path: path} }

// IsArtifactMissing reports whether the error indicates an unresolvable artifact path.
func IsArtifactMissing(err error) bool {
	var e artifactMissingError
	return errors.As(err, &e)
}

type budgetExceededError struct {
	id         string
	requiredMB int
	freeMB     int
}

func (e budgetExceededError) Error() string {
	return fmt.Sprintf("budget exceeded loading %s: need %d MB, %d MB free", e.id, e.requiredMB, e.freeMB)
}

// ErrBudgetExceeded returns an error for a load rejected by admission control.
func ErrBudgetExceeded(id string, requiredMB, freeMB int) error {
	return budgetExceededError{id: id, requiredMB: requiredMB, freeMB: freeMB}
}

// IsBudgetExceeded reports whether the error indicates admission-control rejection.
func IsBudgetExceeded(err error) bool {
	var e budgetExceededError
	return errors.As(err, &e)
}

// runtimeError wraps a failure from the inference runtime, tagged with the
// phase it occurred in.
type runtimeError struct {
	kind Kind
	id   string
	err  error
}

func (e runtimeError) Error() string {
	return fmt.Sprintf("%s (model %s): %v", e.kind, e.id, e.err)
}

func (e runtimeError) Unwrap() error { return e.err }

// ErrRuntime wraps a runtime failure with the phase kind it occurred in.
func ErrRuntime(kind Kind, id string, err error) error {
	return runtimeError{kind: kind, id: id, err: err}
}

// IsRuntimeLoad reports whether the error came from the runtime's load path.
func IsRuntimeLoad(err error) bool {
	var e runtimeError
	return errors.As(err, &e) && e.kind == KindRuntimeLoad
}

// IsRuntimeGeneration reports whether the error came from the generation path.
func IsRuntimeGeneration(err error) bool {
	var e runtimeError
	return errors.As(err, &e) && e.kind == KindRuntimeGeneration
}

type unknownActionError struct{ action string }

func (e unknownActionError) Error() string { return "unknown action: " + e.action }

// ErrUnknownAction returns an error for an action outside the supported set.
func ErrUnknownAction(action string) error { return unknownActionError{action: action} }

// IsUnknownAction reports whether the error indicates an unsupported action name.
func IsUnknownAction(err error) bool {
	var e unknownActionError
	return errors.As(err, &e)
}

// KindOf maps an error to its failure kind. Unrecognized errors classify as
// internal; nil maps to the empty kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	switch {
	case IsModelNotFound(err):
		return KindModelNotFound
	case IsArtifactMissing(err):
		return KindArtifactMissing
	case IsBudgetExceeded(err):
		return KindBudgetExceeded
	case IsUnknownAction(err):
		return KindUnknownAction
	}
	var re runtimeError
	if errors.As(err, &re) {
		return re.kind
	}
	return KindInternal
}
