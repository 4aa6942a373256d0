package slicerpdf

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"
)

func TestPoll_Succeeds(t *testing.T) {
	calls := 0
	err := Poll(context.Background(), time.Second, time.Millisecond, func(context.Context) (bool, error) {
		calls++
		return calls >= 3, nil
	})
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestPoll_Timeout(t *testing.T) {
	boom := errors.New("element not found")
	err := Poll(context.Background(), 30*time.Millisecond, 5*time.Millisecond, func(context.Context) (bool, error) {
		return false, boom
	})
	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("err = %v, want ErrWaitTimeout", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want it to wrap the last condition error", err)
	}
	if KindOf(err) != KindTimeout {
		t.Errorf("KindOf = %q, want %q", KindOf(err), KindTimeout)
	}
}

func TestPoll_ParentCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Poll(ctx, time.Second, time.Millisecond, func(context.Context) (bool, error) {
		return false, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if errors.Is(err, ErrWaitTimeout) {
		t.Error("caller cancellation must not be reported as a wait timeout")
	}
}

func TestPollStable_WaitsForSettle(t *testing.T) {
	n := 0
	start := time.Now()
	err := PollStable(context.Background(), time.Second, 2*time.Millisecond, 20*time.Millisecond,
		func(context.Context) (string, bool, error) {
			n++
			if n < 5 {
				return strconv.Itoa(n), true, nil // still changing
			}
			return "final", true, nil
		})
	if err != nil {
		t.Fatalf("PollStable: %v", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("returned before the settle window elapsed")
	}
}

func TestPollStable_NeverSettles(t *testing.T) {
	n := 0
	err := PollStable(context.Background(), 40*time.Millisecond, 2*time.Millisecond, 20*time.Millisecond,
		func(context.Context) (string, bool, error) {
			n++
			return strconv.Itoa(n), true, nil
		})
	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("err = %v, want ErrWaitTimeout", err)
	}
}

func TestPollStable_NotReadyRestartsWindow(t *testing.T) {
	err := PollStable(context.Background(), 40*time.Millisecond, 2*time.Millisecond, 10*time.Millisecond,
		func(context.Context) (string, bool, error) {
			return "same", false, nil
		})
	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("err = %v, want ErrWaitTimeout", err)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want FailureKind
	}{
		{stepErr(KindMatch, "match option", ErrNoExactMatch), KindMatch},
		{stepErr(KindExport, "export", ErrNotPDF), KindExport},
		{ErrWaitTimeout, KindTimeout},
		{fmt.Errorf("among 3 options: %w", ErrNoExactMatch), KindMatch},
		{errors.New("websocket closed"), KindInfrastructure},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestStepError(t *testing.T) {
	err := stepErr(KindMatch, "match option", ErrNoMatch)
	if got, want := err.Error(), "match: match option: no match"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrNoMatch) {
		t.Error("StepError must unwrap to its cause")
	}
}
