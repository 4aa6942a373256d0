package retry

import "testing"

func TestTransitions(t *testing.T) {
	allowed := [][2]State{
		{StateStart, StateDecision},
		{StateDecision, StateAttempt},
		{StateAttempt, StateCheckpoint},
		{StateCheckpoint, StateDecision},
		{StateDecision, StateDone},
	}
	for _, tr := range allowed {
		if !isAllowedTransition(tr[0], tr[1]) {
			t.Errorf("%s -> %s rejected", tr[0], tr[1])
		}
	}
	rejected := [][2]State{
		{StateStart, StateAttempt},
		{StateAttempt, StateDecision},
		{StateCheckpoint, StateDone},
		{StateDone, StateStart},
		{StateDone, StateAttempt},
	}
	for _, tr := range rejected {
		if isAllowedTransition(tr[0], tr[1]) {
			t.Errorf("%s -> %s allowed", tr[0], tr[1])
		}
	}
	if StateCheckpoint.String() != "checkpoint" || State(99).String() != "State(99)" {
		t.Error("unexpected State names")
	}
}
