package slicerpdf

import (
	"context"
	"fmt"
	"time"
)

// Condition is evaluated repeatedly by [Poll]. An error means "not yet" and is
// reported only if the budget runs out.
type Condition func(ctx context.Context) (bool, error)

// Observation is evaluated repeatedly by [PollStable]. It returns a fingerprint of
// the observed state and whether that state is eligible to settle.
type Observation func(ctx context.Context) (fingerprint string, ready bool, err error)

// Poll evaluates cond every interval until it reports true or budget elapses.
//
// On budget exhaustion the returned error wraps [ErrWaitTimeout] and, when
// present, the last condition error. Cancellation of ctx itself is returned
// as ctx.Err().
func Poll(ctx context.Context, budget, interval time.Duration, cond Condition) error {
	wctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last error
	for {
		ok, err := cond(wctx)
		if err == nil && ok {
			return nil
		}
		if err != nil {
			last = err
		}
		select {
		case <-wctx.Done():
			return waitErr(ctx, budget, last)
		case <-ticker.C:
		}
	}
}

// PollStable evaluates observe every interval until it has reported ready with
// the same fingerprint for at least settle, or budget elapses.
//
// Any change of fingerprint, a not-ready observation or an observation error
// restarts the settle window.
func PollStable(ctx context.Context, budget, interval, settle time.Duration, observe Observation) error {
	var (
		seen  string
		since time.Time
	)
	return Poll(ctx, budget, interval, func(ctx context.Context) (bool, error) {
		fp, ready, err := observe(ctx)
		if err != nil || !ready {
			since = time.Time{}
			return false, err
		}
		now := time.Now()
		if since.IsZero() || fp != seen {
			seen, since = fp, now
		}
		return now.Sub(since) >= settle, nil
	})
}

func waitErr(parent context.Context, budget time.Duration, last error) error {
	if err := parent.Err(); err != nil {
		return err
	}
	if last != nil {
		return fmt.Errorf("%w after %s: %w", ErrWaitTimeout, budget, last)
	}
	return fmt.Errorf("%w after %s", ErrWaitTimeout, budget)
}
