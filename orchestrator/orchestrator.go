// Package orchestrator runs one build per container and owns the set of
// running build containers, so that every container it creates is removed
// on success, failure or abort.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/izavyalov-dev/jarforge/engine"
	"github.com/izavyalov-dev/jarforge/internal/observability"
)

// Engine is the subset of the engine client the orchestrator drives.
type Engine interface {
	CreateContainer(ctx context.Context, spec engine.ContainerSpec) (string, error)
	StartContainer(ctx context.Context, id string) error
	WaitContainer(ctx context.Context, id string, conditions ...string) (int, error)
	DeleteContainer(ctx context.Context, id string, force, ignoreMissing bool) ([]engine.DeletedContainer, error)
	ContainerLogs(ctx context.Context, id string) (string, error)
}

// Orchestrator creates, waits for and removes build containers.
type Orchestrator struct {
	engine   Engine
	cfg      Config
	registry *Registry
	recorder Recorder
	ids      IDGenerator
	metrics  *observability.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

func WithIDGenerator(ids IDGenerator) Option {
	return func(o *Orchestrator) {
		if ids != nil {
			o.ids = ids
		}
	}
}

func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New constructs an orchestrator. A nil registry gets a fresh one.
func New(eng Engine, cfg Config, registry *Registry, opts ...Option) *Orchestrator {
	if registry == nil {
		registry = NewRegistry()
	}
	o := &Orchestrator{
		engine:   eng,
		cfg:      cfg.withDefaults(),
		registry: registry,
		recorder: NoopRecorder{},
		ids:      RandomIDGenerator{},
		logger:   observability.NewLogger("orchestrator"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Running returns the ids of containers currently tracked as running.
func (o *Orchestrator) Running() []string {
	return o.registry.Snapshot()
}

// RunBuild runs job in a fresh container and waits for it to exit. A
// non-zero exit returns *BuildError carrying the tail of the container log.
func (o *Orchestrator) RunBuild(ctx context.Context, job Job) (Result, error) {
	if job.Kind == "" || job.OutputDir == "" {
		return Result{}, errors.New("job kind and output dir are required")
	}
	if o.registry.ShuttingDown() {
		return Result{}, ErrShuttingDown
	}

	started := o.now()
	buildID := o.ids.BuildID()
	logger := observability.WithVersion(observability.WithKind(o.logger, job.Kind), job.Version()).With("build_id", buildID)
	base := Transition{BuildID: buildID, Kind: job.Kind, Version: job.Version()}

	spec := o.cfg.containerSpec(job, o.ids.ContainerName(job.Kind))
	id, err := o.engine.CreateContainer(ctx, spec)
	if err != nil {
		logger.Error("container create failed", "event", "container_create_failed", "error", err)
		return Result{BuildID: buildID}, fmt.Errorf("create container: %w", err)
	}
	logger = observability.WithContainer(logger, id)
	base.ContainerID = id
	o.record(ctx, logger, base, StateCreated)
	logger.Info("container created", "event", "container_created", "name", spec.Name)

	result := Result{BuildID: buildID, ContainerID: id}

	if !o.registry.Add(id) {
		logger.Warn("shutdown began before start", "event", "container_discarded")
		o.forceRemove(ctx, logger, base)
		return result, ErrShuttingDown
	}
	o.syncRunning()
	defer func() {
		o.registry.Remove(id)
		o.syncRunning()
	}()

	if err := o.engine.StartContainer(ctx, id); err != nil {
		o.forceRemove(ctx, logger, base)
		return result, o.abortedOr(fmt.Errorf("start container: %w", err))
	}
	o.record(ctx, logger, base, StateStarted)
	logger.Info("container started", "event", "container_started")

	exitCode, err := o.engine.WaitContainer(ctx, id, engine.ConditionExited)
	if err != nil {
		o.forceRemove(ctx, logger, base)
		return result, o.abortedOr(fmt.Errorf("wait container: %w", err))
	}
	result.ExitCode = exitCode
	result.Duration = o.now().Sub(started)

	if exitCode != 0 {
		tail := o.logTail(ctx, logger, id)
		failed := base
		failed.ExitCode = &exitCode
		failed.LogTail = tail
		o.record(ctx, logger, failed, StateExitedFailure)
		logger.Warn("build container failed", "event", "build_failed", "exit_code", exitCode)
		o.forceRemove(ctx, logger, base)
		return result, &BuildError{Kind: job.Kind, Version: job.Version(), ExitCode: exitCode, LogTail: tail}
	}

	succeeded := base
	succeeded.ExitCode = &exitCode
	o.record(ctx, logger, succeeded, StateExitedSuccess)

	cleanupCtx := context.WithoutCancel(ctx)
	if _, err := o.engine.DeleteContainer(cleanupCtx, id, false, false); err != nil {
		if !engine.IsNotFound(err) {
			logger.Error("container delete failed", "event", "container_delete_failed", "error", err)
			o.forceRemove(cleanupCtx, logger, base)
			return result, fmt.Errorf("delete container: %w", err)
		}
		// Removed by the abort path between exit and delete.
		logger.Info("container already removed", "event", "container_vanished")
	}
	o.record(cleanupCtx, logger, base, StateRemoved)
	logger.Info("build succeeded", "event", "build_succeeded", "duration_ms", result.Duration.Milliseconds())
	return result, nil
}

// AbortAll force-removes every running container concurrently and waits for
// all removals. Containers that are already gone are not errors.
func (o *Orchestrator) AbortAll(ctx context.Context) error {
	ids := o.registry.Snapshot()
	o.logger.Warn("aborting running containers", "event", "abort_started", "count", len(ids))

	var (
		mu   sync.Mutex
		errs error
		wg   sync.WaitGroup
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			logger := observability.WithContainer(o.logger, id)
			if err := o.forceRemove(ctx, logger, Transition{ContainerID: id}); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	if errs != nil {
		o.logger.Error("abort finished with errors", "event", "abort_failed", "error", errs)
	} else {
		o.logger.Info("abort finished", "event", "abort_finished", "count", len(ids))
	}
	return errs
}

func (o *Orchestrator) forceRemove(ctx context.Context, logger *slog.Logger, t Transition) error {
	ctx = context.WithoutCancel(ctx)
	if _, err := o.engine.DeleteContainer(ctx, t.ContainerID, true, true); err != nil {
		if engine.IsNotFound(err) {
			return nil
		}
		logger.Error("force remove failed", "event", "container_force_remove_failed", "error", err)
		return fmt.Errorf("force remove %s: %w", t.ContainerID, err)
	}
	o.record(ctx, logger, t, StateForceRemoved)
	logger.Info("container force removed", "event", "container_force_removed")
	return nil
}

// logTail fetches the container log for diagnostics. Failures never fail the
// build a second time.
func (o *Orchestrator) logTail(ctx context.Context, logger *slog.Logger, id string) string {
	logs, err := o.engine.ContainerLogs(context.WithoutCancel(ctx), id)
	if err != nil {
		if !engine.IsNotFound(err) {
			logger.Warn("log fetch failed", "event", "log_fetch_failed", "error", err)
		}
		return ""
	}
	return TailLines(logs, o.cfg.LogTailLines)
}

func (o *Orchestrator) abortedOr(err error) error {
	if o.registry.ShuttingDown() {
		return fmt.Errorf("%w: %v", ErrShuttingDown, err)
	}
	return err
}

func (o *Orchestrator) record(ctx context.Context, logger *slog.Logger, t Transition, state ContainerState) {
	t.State = state
	t.At = o.now().UTC()
	o.metrics.IncContainer(string(state))
	if err := o.recorder.Record(context.WithoutCancel(ctx), t); err != nil {
		logger.Warn("record transition failed", "event", "record_failed", "state", state, "error", err)
	}
}

func (o *Orchestrator) syncRunning() {
	o.metrics.SetRunning(o.registry.Len())
}

// TailLines returns the last n lines of text.
func TailLines(text string, n int) string {
	text = strings.Trim(text, "\n")
	if n <= 0 || text == "" {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) <= n {
		return text
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
