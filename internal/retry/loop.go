// Package retry runs export attempts until every entity has succeeded or
// the attempt budget is spent, persisting the remaining failures after each
// attempt so that a later run can resume from them.
//
// The loop is an explicit state machine:
//
//	Start -> Decision -> Attempt -> Checkpoint -> Decision -> ... -> Done
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	slicerpdf "github.com/porticus-lab/go-slicer-pdf"
	"github.com/porticus-lab/go-slicer-pdf/internal/batch"
	"github.com/porticus-lab/go-slicer-pdf/internal/roster"
)

// ErrPartial is returned when a run ends with entities still failing.
var ErrPartial = errors.New("run finished with failures")

// RunContext identifies one invocation. Only Attempt changes during a run.
type RunContext struct {
	RunID     string
	OutputDir string
	Stamp     string
	Attempt   int
}

// Runner executes one attempt. *batch.Coordinator implements it.
type Runner interface {
	Run(ctx context.Context, attempt int, entities []slicerpdf.Entity) batch.AttemptResult
}

// RunnerFunc adapts a function to [Runner].
type RunnerFunc func(ctx context.Context, attempt int, entities []slicerpdf.Entity) batch.AttemptResult

func (f RunnerFunc) Run(ctx context.Context, attempt int, entities []slicerpdf.Entity) batch.AttemptResult {
	return f(ctx, attempt, entities)
}

// FailureStore persists the failure list. roster.FailureList implements it.
type FailureStore interface {
	Load() ([]slicerpdf.Entity, error)
	Save([]slicerpdf.Entity) error
}

// Recorder receives every attempt result, for example to journal it.
type Recorder interface {
	RecordAttempt(ctx context.Context, rc RunContext, res batch.AttemptResult) error
}

// Config bounds a run.
type Config struct {
	// MaxAttempts is the number of attempts per run, at least 1.
	MaxAttempts int
	// Dedupe merges entities whose names normalize equal. When false only
	// identical raw names are merged.
	Dedupe bool
	// FailuresOnly skips the primary list.
	FailuresOnly bool
	// Limit caps the working set; zero means no cap.
	Limit int
}

// Loop drives a run.
type Loop struct {
	Config
	Primary  func() ([]slicerpdf.Entity, error)
	Failures FailureStore
	Runner   Runner
	Recorder Recorder
	Logger   *slog.Logger

	// Prepared, when set, is called once with the initial working set before
	// the first attempt.
	Prepared func(rc RunContext, working []slicerpdf.Entity) error
}

// Report describes a finished run.
type Report struct {
	RunID       string
	Status      Status
	Attempts    []batch.AttemptResult
	Total       int
	Exported    []slicerpdf.Outcome
	Remaining   []slicerpdf.Entity
	Interrupted bool
	Duration    time.Duration
}

type run struct {
	*Loop
	log     *slog.Logger
	rc      RunContext
	state   State
	working []slicerpdf.Entity
	// deferred holds persisted failures cut from the working set by Limit.
	deferred []slicerpdf.Entity
	report   Report
}

func (r *run) to(next State) error {
	if !isAllowedTransition(r.state, next) {
		return fmt.Errorf("invalid retry transition %s -> %s", r.state, next)
	}
	r.log.Debug("retry transition", "from", r.state, "to", next, "attempt", r.rc.Attempt)
	r.state = next
	return nil
}

// Run executes the loop. It returns an error wrapping [ErrPartial] when
// entities remain after the last attempt or after ctx is canceled, and any
// error reading the inputs or persisting the failure list. The report is
// valid whenever the loop got past Start.
func (l *Loop) Run(ctx context.Context, rc RunContext) (Report, error) {
	if l.MaxAttempts < 1 {
		return Report{}, fmt.Errorf("max attempts must be at least 1, got %d", l.MaxAttempts)
	}
	log := l.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	rc.Attempt = 0
	r := &run{Loop: l, log: log.With("run", rc.RunID), rc: rc, state: StateStart}
	r.report.RunID = rc.RunID
	start := time.Now()
	err := r.drive(ctx)
	r.report.Duration = time.Since(start)
	return r.report, err
}

func (r *run) drive(ctx context.Context) error {
	if err := r.start(); err != nil {
		return err
	}
	if err := r.to(StateDecision); err != nil {
		return err
	}
	for {
		switch {
		case len(r.working) == 0 && len(r.deferred) == 0:
			r.report.Status = StatusSuccess
		case len(r.working) > 0 && r.rc.Attempt < r.MaxAttempts && ctx.Err() == nil:
			if err := r.attempt(ctx); err != nil {
				return err
			}
			continue
		default:
			r.report.Status = StatusPartial
			r.report.Interrupted = ctx.Err() != nil
		}
		break
	}
	if err := r.to(StateDone); err != nil {
		return err
	}
	r.report.Remaining = append(append([]slicerpdf.Entity{}, r.working...), r.deferred...)
	r.log.Info("run finished", "status", r.report.Status, "attempts", len(r.report.Attempts),
		"exported", len(r.report.Exported), "remaining", len(r.report.Remaining))
	if r.report.Status == StatusPartial {
		return fmt.Errorf("%w: %d of %d entities not exported", ErrPartial, len(r.report.Remaining), r.report.Total)
	}
	return nil
}

// start assembles the working set: primary list, then persisted failures,
// deduplicated and capped.
func (r *run) start() error {
	var primary []slicerpdf.Entity
	if !r.FailuresOnly {
		if r.Primary == nil {
			return errors.New("no primary list configured")
		}
		var err error
		if primary, err = r.Primary(); err != nil {
			return fmt.Errorf("reading primary list: %w", err)
		}
	}
	var failed []slicerpdf.Entity
	if r.Failures != nil {
		var err error
		if failed, err = r.Failures.Load(); err != nil {
			return fmt.Errorf("reading failure list: %w", err)
		}
	}
	working := roster.Merge(r.Dedupe, primary, failed)
	if r.Limit > 0 && len(working) > r.Limit {
		kept := working[:r.Limit:r.Limit]
		r.deferred = roster.Merge(r.Dedupe, kept, failed)[len(kept):]
		working = kept
	}
	r.working = working
	r.report.Total = len(working) + len(r.deferred)
	r.log.Info("working set assembled", "primary", len(primary), "carried", len(failed),
		"working", len(working), "deferred", len(r.deferred))

	if r.Prepared != nil {
		if err := r.Prepared(r.rc, working); err != nil {
			return err
		}
	}
	return nil
}

// attempt runs one attempt over the working set and checkpoints the result.
func (r *run) attempt(ctx context.Context) error {
	if err := r.to(StateAttempt); err != nil {
		return err
	}
	r.rc.Attempt++
	res := r.Runner.Run(ctx, r.rc.Attempt, r.working)
	r.report.Attempts = append(r.report.Attempts, res)
	for _, o := range res.Outcomes {
		if o.OK() {
			r.report.Exported = append(r.report.Exported, o)
		}
	}
	r.working = res.Failed

	if err := r.to(StateCheckpoint); err != nil {
		return err
	}
	if r.Failures != nil {
		remaining := append(append([]slicerpdf.Entity{}, r.working...), r.deferred...)
		if err := r.Failures.Save(remaining); err != nil {
			return fmt.Errorf("checkpoint after attempt %d: %w", r.rc.Attempt, err)
		}
	}
	if r.Recorder != nil {
		if err := r.Recorder.RecordAttempt(context.WithoutCancel(ctx), r.rc, res); err != nil {
			r.log.Warn("recording attempt", "attempt", r.rc.Attempt, "error", err)
		}
	}
	r.log.Info("checkpoint written", "attempt", r.rc.Attempt, "remaining", len(r.working))
	return r.to(StateDecision)
}
