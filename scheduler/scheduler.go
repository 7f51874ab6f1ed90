// Package scheduler plans every configured kind and runs its builds through
// a fixed-size worker pool per kind, with a bound on how many kinds of a
// group are active at once.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/izavyalov-dev/jarforge/builders"
	"github.com/izavyalov-dev/jarforge/engine"
	"github.com/izavyalov-dev/jarforge/internal/config"
	"github.com/izavyalov-dev/jarforge/internal/observability"
	"github.com/izavyalov-dev/jarforge/orchestrator"
	"github.com/izavyalov-dev/jarforge/planner"
)

// ErrShuttingDown is returned for work refused after shutdown began.
var ErrShuttingDown = orchestrator.ErrShuttingDown

// Engine is the engine surface used once at startup.
type Engine interface {
	Ping(ctx context.Context) (engine.PingInfo, error)
	PruneContainers(ctx context.Context, filters engine.PruneFilters) ([]engine.PrunedContainer, error)
	BuildImage(ctx context.Context, containerfilePath, nameAndTag string, labels map[string]string) (string, error)
	PullImage(ctx context.Context, reference string, policy engine.PullPolicy) (string, error)
}

// Runner runs single builds. It is implemented by *orchestrator.Orchestrator.
type Runner interface {
	RunBuild(ctx context.Context, job orchestrator.Job) (orchestrator.Result, error)
	AbortAll(ctx context.Context) error
}

// LogArchiver stores the log tail of a failed build and returns its location.
type LogArchiver interface {
	UploadLogTail(ctx context.Context, kind, version, buildID, tail string) (string, error)
}

// Deps are the collaborators of a Scheduler.
type Deps struct {
	Engine   Engine
	Runner   Runner
	Registry *orchestrator.Registry
	Builders *builders.Registry
	Planner  planner.Planner
	Archiver LogArchiver
	Metrics  *observability.Metrics
	Logger   *slog.Logger
}

type Scheduler struct {
	cfg      config.Config
	engine   Engine
	runner   Runner
	registry *orchestrator.Registry
	builders *builders.Registry
	planner  planner.Planner
	archiver LogArchiver
	metrics  *observability.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

func New(cfg config.Config, deps Deps) (*Scheduler, error) {
	if deps.Runner == nil || deps.Registry == nil || deps.Builders == nil {
		return nil, errors.New("scheduler requires runner, registry and builders")
	}
	if deps.Planner == nil {
		deps.Planner = planner.ExistencePlanner{}
	}
	if deps.Logger == nil {
		deps.Logger = observability.NewLogger("scheduler")
	}
	return &Scheduler{
		cfg:      cfg,
		engine:   deps.Engine,
		runner:   deps.Runner,
		registry: deps.Registry,
		builders: deps.Builders,
		planner:  deps.Planner,
		archiver: deps.Archiver,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		now:      time.Now,
	}, nil
}

// Prepare pings the engine, prunes stale build containers and builds or
// pulls the builder image. It runs once before any pool starts.
func (s *Scheduler) Prepare(ctx context.Context) error {
	if s.engine == nil {
		return errors.New("prepare: engine required")
	}
	info, err := s.engine.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping engine: %w", err)
	}
	s.logger.Info("engine reachable", "event", "engine_ping",
		"server", info.Server, "api_version", info.APIVersion, "libpod_api_version", info.LibpodAPIVersion)

	pruned, err := s.engine.PruneContainers(ctx, engine.PruneBefore(s.now(), orchestrator.OwnerLabel()))
	if err != nil {
		return fmt.Errorf("prune containers: %w", err)
	}
	var reclaimed int64
	for _, p := range pruned {
		reclaimed += p.Size
	}
	s.logger.Info("stale containers pruned", "event", "containers_pruned", "count", len(pruned), "bytes", reclaimed)

	image := s.cfg.Image
	if image.Pull != "" {
		id, err := s.engine.PullImage(ctx, image.Tag, engine.PullPolicy(image.Pull))
		if err != nil {
			return fmt.Errorf("pull image: %w", err)
		}
		s.logger.Info("image pulled", "event", "image_pulled", "tag", image.Tag, "image_id", id)
		return nil
	}
	id, err := s.engine.BuildImage(ctx, image.Containerfile, image.Tag, map[string]string{
		orchestrator.LabelOwner: orchestrator.OwnerValue,
	})
	if err != nil {
		return fmt.Errorf("build image: %w", err)
	}
	s.logger.Info("image built", "event", "image_built", "tag", image.Tag, "image_id", id)
	return nil
}

// Run plans and builds every configured kind. Individual build failures are
// recorded in the summary and never stop other builds.
func (s *Scheduler) Run(ctx context.Context) *Summary {
	summary := newSummary()

	var groups errgroup.Group
	for _, group := range s.cfg.Groups {
		groups.Go(func() error {
			var kinds errgroup.Group
			kinds.SetLimit(group.Parallel)
			for _, kind := range group.Kinds {
				kinds.Go(func() error {
					s.runKind(ctx, kind, summary)
					return nil
				})
			}
			return kinds.Wait()
		})
	}
	_ = groups.Wait()
	return summary
}

func (s *Scheduler) stopping(ctx context.Context) bool {
	return s.registry.ShuttingDown() || ctx.Err() != nil
}

func (s *Scheduler) runKind(ctx context.Context, kind config.Kind, summary *Summary) {
	logger := observability.WithKind(s.logger, kind.Name)
	if s.stopping(ctx) {
		logger.Info("kind skipped during shutdown", "event", "kind_skipped")
		return
	}

	plan, outputDir, err := s.planKind(ctx, kind.Name)
	if err != nil {
		logger.Error("planning failed", "event", "plan_failed", "error", err)
		summary.planFailed(kind.Name, err)
		return
	}
	summary.skipped(kind.Name, plan.Skipped...)
	logger.Info("kind planned", "event", "kind_planned", "to_build", len(plan.Jobs), "skipped", len(plan.Skipped))

	jobs := make(chan planner.PlannedJob)
	var wg sync.WaitGroup
	for range kind.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if s.stopping(ctx) {
					summary.aborted(kind.Name, job.Version)
					s.metrics.IncBuild(kind.Name, "aborted")
					continue
				}
				s.runJob(ctx, kind, outputDir, job, summary)
			}
		}()
	}
	for _, job := range plan.Jobs {
		jobs <- job
	}
	close(jobs)
	wg.Wait()
}

func (s *Scheduler) planKind(ctx context.Context, kind string) (planner.PlanResult, string, error) {
	b, err := s.builders.Get(kind)
	if err != nil {
		return planner.PlanResult{}, "", err
	}
	outputDir, err := s.cfg.OutputDir(kind)
	if err != nil {
		return planner.PlanResult{}, "", err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return planner.PlanResult{}, "", fmt.Errorf("create output dir: %w", err)
	}
	plan, err := s.planner.Plan(ctx, planner.PlanRequest{
		Kind:    kind,
		Builder: b,
		Context: builders.BuildContext{Workspace: s.cfg.AppRoot, OutputDir: outputDir},
	})
	return plan, outputDir, err
}

func (s *Scheduler) runJob(ctx context.Context, kind config.Kind, outputDir string, job planner.PlannedJob, summary *Summary) {
	logger := observability.WithVersion(observability.WithKind(s.logger, kind.Name), job.Version)
	logger.Info("build started", "event", "build_started", "existence", job.Existence.String())

	result, err := s.runner.RunBuild(ctx, orchestrator.Job{
		Kind:           kind.Name,
		Args:           job.Args,
		OutputDir:      outputDir,
		ReadOnlyRootFS: kind.ReadOnlyRoot,
	})
	switch {
	case err == nil:
		summary.built(kind.Name, job.Version)
		s.metrics.IncBuild(kind.Name, "built")
		logger.Info("build finished", "event", "build_finished", "duration_ms", result.Duration.Milliseconds())
	case errors.Is(err, ErrShuttingDown) || s.registry.ShuttingDown():
		summary.aborted(kind.Name, job.Version)
		s.metrics.IncBuild(kind.Name, "aborted")
		logger.Warn("build aborted", "event", "build_aborted", "error", err)
	default:
		failure := classifyFailure(kind.Name, job.Version, err)
		summary.failed(failure)
		s.metrics.IncBuild(kind.Name, "failed")
		s.metrics.IncFailure(string(failure.Category))
		logger.Error("build failed", "event", "build_failed",
			"category", failure.Category, "summary", failure.Summary, "error", err)
		s.archiveLogTail(ctx, logger, kind.Name, job.Version, result.BuildID, err)
	}
}

func (s *Scheduler) archiveLogTail(ctx context.Context, logger *slog.Logger, kind, version, buildID string, err error) {
	var buildErr *orchestrator.BuildError
	if s.archiver == nil || !errors.As(err, &buildErr) || buildErr.LogTail == "" {
		return
	}
	location, uploadErr := s.archiver.UploadLogTail(ctx, kind, version, buildID, buildErr.LogTail)
	if uploadErr != nil {
		logger.Warn("log tail upload failed", "event", "log_upload_failed", "error", uploadErr)
		return
	}
	logger.Info("log tail uploaded", "event", "log_uploaded", "location", location)
}
