package state

import (
	"context"
	"fmt"

	"github.com/izavyalov-dev/jarforge/orchestrator"
)

var containerStates = map[orchestrator.ContainerState]BuildState{
	orchestrator.StateCreated:       BuildStateCreated,
	orchestrator.StateStarted:       BuildStateStarted,
	orchestrator.StateExitedSuccess: BuildStateSucceeded,
	orchestrator.StateExitedFailure: BuildStateFailed,
	orchestrator.StateRemoved:       BuildStateRemoved,
	orchestrator.StateForceRemoved:  BuildStateForceRemoved,
}

// Recorder persists orchestrator transitions as build history.
type Recorder struct {
	store *Store
}

func NewRecorder(store *Store) *Recorder {
	return &Recorder{store: store}
}

func (r *Recorder) Record(ctx context.Context, t orchestrator.Transition) error {
	next, ok := containerStates[t.State]
	if !ok {
		return UnknownStateError{Entity: "build", State: string(t.State)}
	}

	if next == BuildStateCreated {
		_, err := r.store.CreateBuild(ctx, Build{
			ID:          t.BuildID,
			Kind:        t.Kind,
			Version:     t.Version,
			ContainerID: t.ContainerID,
			State:       BuildStateCreated,
		})
		return err
	}

	if t.BuildID == "" {
		if err := r.store.TransitionBuildByContainer(ctx, t.ContainerID, next); err != nil {
			return fmt.Errorf("record %s for container %s: %w", next, t.ContainerID, err)
		}
		return nil
	}
	if err := r.store.TransitionBuildState(ctx, t.BuildID, next, BuildUpdate{ExitCode: t.ExitCode, LogTail: t.LogTail}); err != nil {
		return fmt.Errorf("record %s for build %s: %w", next, t.BuildID, err)
	}
	return nil
}
