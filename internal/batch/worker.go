// Package batch fans one attempt's entities out over parallel workers, each
// owning its own browser session, and merges their outcomes.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	slicerpdf "github.com/porticus-lab/go-slicer-pdf"
)

// Exporter is the part of a dashboard session a worker needs.
// *slicerpdf.Session implements it.
type Exporter interface {
	ExportEntity(ctx context.Context, name string) slicerpdf.Outcome
	Close() error
}

// Slot identifies the worker and attempt a session is launched for.
type Slot struct {
	Worker  int
	Attempt int
}

// Launcher starts a fresh session for slot.
type Launcher func(ctx context.Context, slot Slot) (Exporter, error)

// DefaultMaxRelaunches bounds how often a worker replaces a broken session
// within one attempt.
const DefaultMaxRelaunches = 1

// Worker exports a subset of entities sequentially through one session.
type Worker struct {
	Slot   Slot
	Launch Launcher

	// MaxRelaunches is the number of replacement sessions a worker may start
	// after infrastructure failures. Zero disables replacement.
	MaxRelaunches int

	Logger *slog.Logger
}

// RunSubset returns exactly one outcome per entity, in input order. It
// launches a session only for a non-empty subset and always closes it.
func (w *Worker) RunSubset(ctx context.Context, subset []slicerpdf.Entity) []slicerpdf.Outcome {
	if len(subset) == 0 {
		return nil
	}
	log := w.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	log = log.With("worker", w.Slot.Worker, "attempt", w.Slot.Attempt)

	out := make([]slicerpdf.Outcome, 0, len(subset))
	fail := func(rest []slicerpdf.Entity, err error) []slicerpdf.Outcome {
		for _, e := range rest {
			o := slicerpdf.Failed(e, err)
			o.Kind = slicerpdf.KindInfrastructure
			o.Worker = w.Slot.Worker
			out = append(out, o)
		}
		return out
	}

	start := time.Now()
	sess, err := w.Launch(ctx, w.Slot)
	if err != nil {
		log.Error("session launch failed", "error", err, "entities", len(subset))
		return fail(subset, fmt.Errorf("launch session: %w", err))
	}
	log.Debug("session launched", "elapsed", time.Since(start))
	defer func() {
		if sess == nil {
			return
		}
		if err := sess.Close(); err != nil {
			log.Warn("closing session", "error", err)
		}
	}()

	relaunches := 0
	for i, e := range subset {
		if err := ctx.Err(); err != nil {
			return fail(subset[i:], fmt.Errorf("not attempted: %w", err))
		}
		o := export(ctx, sess, e)
		o.Entity = e
		o.Worker = w.Slot.Worker
		out = append(out, o)

		if o.Kind != slicerpdf.KindInfrastructure || i == len(subset)-1 || ctx.Err() != nil {
			continue
		}
		if relaunches >= w.MaxRelaunches {
			continue
		}
		relaunches++
		log.Warn("replacing session after infrastructure failure", "entity", e.Name, "relaunch", relaunches)
		if err := sess.Close(); err != nil {
			log.Debug("closing broken session", "error", err)
		}
		sess = nil
		next, err := w.Launch(ctx, w.Slot)
		if err != nil {
			log.Error("session relaunch failed", "error", err)
			return fail(subset[i+1:], fmt.Errorf("relaunch session: %w", err))
		}
		sess = next
	}
	return out
}

var errPanic = errors.New("exporter panicked")

// export calls ExportEntity and converts a panic into a failure outcome.
func export(ctx context.Context, sess Exporter, e slicerpdf.Entity) (o slicerpdf.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			o = slicerpdf.Failed(e, fmt.Errorf("%w: %v", errPanic, r))
			o.Kind = slicerpdf.KindInfrastructure
		}
	}()
	return sess.ExportEntity(ctx, e.Name)
}
