package state

import "testing"

func TestBuildTransitions(t *testing.T) {
	cases := []struct {
		from, to BuildState
		ok       bool
	}{
		{BuildStateCreated, BuildStateStarted, true},
		{BuildStateCreated, BuildStateForceRemoved, true},
		{BuildStateStarted, BuildStateSucceeded, true},
		{BuildStateStarted, BuildStateFailed, true},
		{BuildStateSucceeded, BuildStateRemoved, true},
		{BuildStateFailed, BuildStateForceRemoved, true},
		{BuildStateFailed, BuildStateRemoved, false},
		{BuildStateCreated, BuildStateSucceeded, false},
		{BuildStateRemoved, BuildStateStarted, false},
	}
	for _, tc := range cases {
		err := validateBuildTransition("b1", tc.from, tc.to)
		if tc.ok && err != nil {
			t.Fatalf("%s -> %s: unexpected error %v", tc.from, tc.to, err)
		}
		if !tc.ok && !IsTransitionError(err) {
			t.Fatalf("%s -> %s: expected transition error, got %v", tc.from, tc.to, err)
		}
	}
}

func TestUnknownBuildState(t *testing.T) {
	if err := validateBuildTransition("b1", "BOGUS", BuildStateStarted); !IsUnknownStateError(err) {
		t.Fatalf("expected unknown state error, got %v", err)
	}
	if err := validateBuildTransition("b1", BuildStateCreated, "BOGUS"); !IsUnknownStateError(err) {
		t.Fatalf("expected unknown state error, got %v", err)
	}
}

func TestTerminalStates(t *testing.T) {
	if !BuildStateRemoved.Terminal() || !BuildStateForceRemoved.Terminal() {
		t.Fatalf("expected removal states to be terminal")
	}
	if BuildStateFailed.Terminal() {
		t.Fatalf("failed builds still need their container removed")
	}
}
