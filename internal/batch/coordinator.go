package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	slicerpdf "github.com/porticus-lab/go-slicer-pdf"
)

// errNoOutcome marks an entity a worker returned no outcome for.
var errNoOutcome = errors.New("no outcome returned")

// AttemptResult is the merged result of one attempt. Every dispatched
// entity appears in exactly one of Succeeded and Failed.
type AttemptResult struct {
	Attempt   int
	Outcomes  []slicerpdf.Outcome // dispatch order
	Succeeded []slicerpdf.Entity
	Failed    []slicerpdf.Entity
	Duration  time.Duration
}

// Coordinator runs attempts over a fixed number of workers.
type Coordinator struct {
	Workers       int
	Launch        Launcher
	MaxRelaunches int
	Logger        *slog.Logger
}

// Partition splits entities into n contiguous chunks of ceil(len/n)
// entities. Chunk i holds entities[i*size : min((i+1)*size, len)], so
// trailing chunks may be empty. The result always has n chunks (at least
// one) and is a pure function of its arguments.
func Partition(entities []slicerpdf.Entity, n int) [][]slicerpdf.Entity {
	if n < 1 {
		n = 1
	}
	size := (len(entities) + n - 1) / n
	chunks := make([][]slicerpdf.Entity, n)
	for i := range chunks {
		lo := min(i*size, len(entities))
		hi := min(lo+size, len(entities))
		chunks[i] = entities[lo:hi:hi]
	}
	return chunks
}

// Run exports entities concurrently, one goroutine and one session per
// non-empty chunk, and merges the outcomes by dispatch position.
func (c *Coordinator) Run(ctx context.Context, attempt int, entities []slicerpdf.Entity) AttemptResult {
	log := c.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	start := time.Now()
	chunks := Partition(entities, c.Workers)
	results := make([][]slicerpdf.Outcome, len(chunks))

	log.Info("attempt started", "attempt", attempt, "entities", len(entities), "workers", len(chunks))

	var g errgroup.Group
	for i, chunk := range chunks {
		w := &Worker{
			Slot:          Slot{Worker: i + 1, Attempt: attempt},
			Launch:        c.Launch,
			MaxRelaunches: c.MaxRelaunches,
			Logger:        log,
		}
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					log.Error("worker panicked", "worker", w.Slot.Worker, "panic", r)
					results[i] = nil
				}
			}()
			results[i] = w.RunSubset(ctx, chunk)
			return nil
		})
	}
	_ = g.Wait()

	res := AttemptResult{Attempt: attempt, Outcomes: make([]slicerpdf.Outcome, 0, len(entities))}
	for i, chunk := range chunks {
		for j, e := range chunk {
			var o slicerpdf.Outcome
			if j < len(results[i]) {
				o = results[i][j]
			} else {
				o = slicerpdf.Failed(e, errNoOutcome)
				o.Kind = slicerpdf.KindInfrastructure
				o.Worker = i + 1
			}
			o.Entity = e
			res.Outcomes = append(res.Outcomes, o)
			if o.OK() {
				res.Succeeded = append(res.Succeeded, e)
			} else {
				res.Failed = append(res.Failed, e)
			}
		}
	}
	res.Duration = time.Since(start)
	log.Info("attempt finished", "attempt", attempt,
		"succeeded", len(res.Succeeded), "failed", len(res.Failed), "elapsed", res.Duration)
	return res
}

// String summarizes r for logs.
func (r AttemptResult) String() string {
	return fmt.Sprintf("attempt %d: %d succeeded, %d failed", r.Attempt, len(r.Succeeded), len(r.Failed))
}
