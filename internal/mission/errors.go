package mission

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error produced by the engine matches exactly one of
// these with errors.Is.
var (
	ErrMissionValidation    = errors.New("mission validation failed")
	ErrToolNotFound         = errors.New("tool not found")
	ErrStepTimeout          = errors.New("step timed out")
	ErrStepExecutionFailure = errors.New("step execution failed")
	ErrMissionAborted       = errors.New("mission aborted")
)

// ErrCycle refines ErrMissionValidation for cyclic dependency graphs.
var ErrCycle = errors.New("graph has a cycle")

// Error is a typed engine error. Kind is one of the sentinel kinds above;
// Err is the optional underlying cause.
type Error struct {
	Kind   error
	StepID string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.StepID != "" {
		fmt.Fprintf(&b, " (step %q)", e.StepID)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Kind returns the kind of the outermost engine error in err's chain, or nil
// when err did not originate from the engine.
func Kind(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}

// Invalidf builds a MissionValidation error.
func Invalidf(format string, args ...any) error {
	return &Error{Kind: ErrMissionValidation, Msg: fmt.Sprintf(format, args...)}
}

// CycleError builds a MissionValidation error naming a step on the cycle.
// path lists the cycle in dependency order, starting and ending on the same step.
func CycleError(stepID string, path []string) error {
	msg := fmt.Sprintf("dependency cycle involving step '%s'", stepID)
	if len(path) > 0 {
		msg += ": " + strings.Join(path, " -> ")
	}
	return &Error{Kind: ErrMissionValidation, StepID: stepID, Msg: msg, Err: ErrCycle}
}

// StepError builds a step-scoped error of the given kind.
func StepError(kind error, stepID string, cause error) error {
	return &Error{Kind: kind, StepID: stepID, Err: cause}
}
