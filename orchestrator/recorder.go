package orchestrator

import (
	"context"

	"go.uber.org/multierr"
)

// Recorder observes container lifecycle transitions.
type Recorder interface {
	Record(ctx context.Context, t Transition) error
}

// NoopRecorder ignores transitions.
type NoopRecorder struct{}

func (NoopRecorder) Record(ctx context.Context, t Transition) error {
	return nil
}

// MultiRecorder fans a transition out to every recorder.
type MultiRecorder []Recorder

func (m MultiRecorder) Record(ctx context.Context, t Transition) error {
	var errs error
	for _, r := range m {
		if r == nil {
			continue
		}
		errs = multierr.Append(errs, r.Record(ctx, t))
	}
	return errs
}
