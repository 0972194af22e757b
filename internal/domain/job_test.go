package domain

import (
	"errors"
	"testing"
)

func TestJobAdvanceHappySequence(t *testing.T) {
	j := &Job{State: JobStateReserved}
	for _, next := range []JobState{JobStateSubmitted, JobStatePolling, JobStateCompleted} {
		if err := j.Advance(next); err != nil {
			t.Fatalf("advance to %s: %v", next, err)
		}
	}
	if j.State != JobStateCompleted {
		t.Fatalf("state = %s, want completed", j.State)
	}
}

func TestJobAdvanceRejectsTerminalTransitions(t *testing.T) {
	for _, terminal := range []JobState{JobStateCompleted, JobStateFailed, JobStateTimedOut} {
		j := &Job{State: terminal}
		if err := j.Advance(JobStatePolling); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("advance out of %s: err = %v, want ErrInvalidTransition", terminal, err)
		}
		if j.State != terminal {
			t.Fatalf("terminal state mutated to %s", j.State)
		}
	}
}

func TestJobAdvanceRejectsSkippingBackward(t *testing.T) {
	tests := []struct {
		from JobState
		to   JobState
	}{
		{JobStatePolling, JobStateSubmitted},
		{JobStateSubmitted, JobStateSubmitted},
		{JobStateReserved, JobStatePolling},
		{JobStateReserved, JobStateCompleted},
	}
	for _, tc := range tests {
		j := &Job{State: tc.from}
		if err := j.Advance(tc.to); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("%s -> %s: err = %v, want ErrInvalidTransition", tc.from, tc.to, err)
		}
	}
}

func TestJobStateTerminal(t *testing.T) {
	terminal := map[JobState]bool{
		JobStateReserved:  false,
		JobStateSubmitted: false,
		JobStatePolling:   false,
		JobStateCompleted: true,
		JobStateFailed:    true,
		JobStateTimedOut:  true,
	}
	for state, want := range terminal {
		if got := state.Terminal(); got != want {
			t.Fatalf("%s.Terminal() = %v, want %v", state, got, want)
		}
	}
}

func TestOutcomeCharged(t *testing.T) {
	if !(Outcome{Status: OutcomeCompleted}).Charged() {
		t.Fatalf("completed outcome should be charged")
	}
	for _, status := range []OutcomeStatus{OutcomeRejected, OutcomeFailed, OutcomeTimedOut} {
		if (Outcome{Status: status}).Charged() {
			t.Fatalf("%s outcome should not be charged", status)
		}
	}
}
