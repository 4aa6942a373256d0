package slicerpdf

import "time"

// Entity is one named unit whose report is exported, identified by its raw
// display name as supplied by the input list.
type Entity struct {
	Name string
}

// Key returns the normalized form of the entity name. It is recomputed on
// every call and never persisted.
func (e Entity) Key() string {
	return Normalize(e.Name)
}

// Status is the result of one export attempt for one entity.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Outcome is the per-entity result of one export attempt. It is produced once
// per entity per attempt and not modified afterwards.
type Outcome struct {
	Entity Entity
	Status Status

	// Kind is empty on success.
	Kind FailureKind

	// ArtifactPath is the exported PDF on success and the diagnostic
	// screenshot (if one was captured) on failure.
	ArtifactPath string

	// Diagnostic is a human-readable failure description.
	Diagnostic string

	Worker   int
	Duration time.Duration
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool { return o.Status == StatusSuccess }

// Succeeded returns a success Outcome for e.
func Succeeded(e Entity, artifact string) Outcome {
	return Outcome{Entity: e, Status: StatusSuccess, ArtifactPath: artifact}
}

// Failed returns a failure Outcome for e classified from err.
func Failed(e Entity, err error) Outcome {
	o := Outcome{Entity: e, Status: StatusFailure, Kind: KindOf(err)}
	if err != nil {
		o.Diagnostic = err.Error()
	}
	return o
}
