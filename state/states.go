package state

import (
	"errors"
	"fmt"
)

type BuildState string

const (
	BuildStateCreated      BuildState = "CREATED"
	BuildStateStarted      BuildState = "STARTED"
	BuildStateSucceeded    BuildState = "SUCCEEDED"
	BuildStateFailed       BuildState = "FAILED"
	BuildStateRemoved      BuildState = "REMOVED"
	BuildStateForceRemoved BuildState = "FORCE_REMOVED"
)

var buildTransitions = map[BuildState][]BuildState{
	BuildStateCreated:      {BuildStateCreated, BuildStateStarted, BuildStateForceRemoved},
	BuildStateStarted:      {BuildStateStarted, BuildStateSucceeded, BuildStateFailed, BuildStateForceRemoved},
	BuildStateSucceeded:    {BuildStateSucceeded, BuildStateRemoved, BuildStateForceRemoved},
	BuildStateFailed:       {BuildStateFailed, BuildStateForceRemoved},
	BuildStateRemoved:      {BuildStateRemoved},
	BuildStateForceRemoved: {BuildStateForceRemoved},
}

// Terminal reports whether no further transition leaves s.
func (s BuildState) Terminal() bool {
	return s == BuildStateRemoved || s == BuildStateForceRemoved
}

// TransitionError signals an illegal state transition detected in the persistence layer.
type TransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
}

func (e TransitionError) Error() string {
	return fmt.Sprintf("%s %s: invalid transition from %s to %s", e.Entity, e.ID, e.From, e.To)
}

// UnknownStateError signals a state value that is not part of the build state machine.
type UnknownStateError struct {
	Entity string
	State  string
}

func (e UnknownStateError) Error() string {
	return fmt.Sprintf("%s: unknown state %q", e.Entity, e.State)
}

func validateBuildTransition(id string, from, to BuildState) error {
	allowed, ok := buildTransitions[from]
	if !ok {
		return UnknownStateError{Entity: "build", State: string(from)}
	}
	if _, ok := buildTransitions[to]; !ok {
		return UnknownStateError{Entity: "build", State: string(to)}
	}
	for _, candidate := range allowed {
		if candidate == to {
			return nil
		}
	}
	return TransitionError{Entity: "build", ID: id, From: string(from), To: string(to)}
}

func IsTransitionError(err error) bool {
	var te TransitionError
	return errors.As(err, &te)
}

func IsUnknownStateError(err error) bool {
	var ue UnknownStateError
	return errors.As(err, &ue)
}
