package slicerpdf

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the library.
var (
	// ErrClosed is returned when attempting to use a closed [Session].
	ErrClosed = errors.New("slicerpdf: session is closed")

	// ErrEmptyName is returned when an entity name normalizes to "".
	ErrEmptyName = errors.New("empty name after normalization")

	// ErrNoMatch is returned when the slicer shows no options for a search.
	ErrNoMatch = errors.New("no match")

	// ErrNoExactMatch is returned when options rendered but none equals the
	// requested name after normalization.
	ErrNoExactMatch = errors.New("no exact match")

	// ErrWaitTimeout is returned when a bounded wait exhausts its budget.
	ErrWaitTimeout = errors.New("wait budget exceeded")

	// ErrNotPDF is returned when exported bytes are not a readable PDF.
	ErrNotPDF = errors.New("export is not a valid PDF")

	// ErrExists is returned when the canonical output path is already taken.
	ErrExists = errors.New("output file already exists")
)

// FailureKind tags why an entity export failed.
type FailureKind string

const (
	// KindMatch: the entity has no corresponding dropdown option.
	KindMatch FailureKind = "match"
	// KindTimeout: a UI step did not complete within its wait budget.
	KindTimeout FailureKind = "timeout"
	// KindExport: selection succeeded but no usable PDF materialized.
	KindExport FailureKind = "export"
	// KindInfrastructure: the browser failed to launch or crashed.
	KindInfrastructure FailureKind = "infrastructure"
)

// StepError reports the failure of one step of the export sequence.
type StepError struct {
	Kind FailureKind
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func stepErr(kind FailureKind, step string, err error) *StepError {
	return &StepError{Kind: kind, Step: step, Err: err}
}

// KindOf classifies err. Errors that are not a [*StepError] are classified
// by the sentinel they wrap, and as infrastructure failures otherwise.
func KindOf(err error) FailureKind {
	var se *StepError
	if errors.As(err, &se) {
		return se.Kind
	}
	switch {
	case errors.Is(err, ErrWaitTimeout):
		return KindTimeout
	case errors.Is(err, ErrNoMatch), errors.Is(err, ErrNoExactMatch), errors.Is(err, ErrEmptyName):
		return KindMatch
	}
	return KindInfrastructure
}
