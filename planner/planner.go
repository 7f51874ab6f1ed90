// Package planner decides which versions of a kind still need building.
package planner

import (
	"context"
	"fmt"

	"github.com/izavyalov-dev/jarforge/builders"
)

// Planner produces the build jobs for one kind.
type Planner interface {
	Plan(ctx context.Context, req PlanRequest) (PlanResult, error)
}

// PlanRequest contains the context needed to generate a plan.
type PlanRequest struct {
	Kind    string
	Builder builders.Builder
	Context builders.BuildContext
}

// PlanResult is the outcome of the planning step.
type PlanResult struct {
	Kind    string
	Jobs    []PlannedJob
	Skipped []string
}

// Versions returns the versions of the planned jobs in plan order.
func (r PlanResult) Versions() []string {
	out := make([]string, 0, len(r.Jobs))
	for _, job := range r.Jobs {
		out = append(out, job.Version)
	}
	return out
}

// PlannedJob describes a single version to build.
type PlannedJob struct {
	Version   string
	Args      builders.Args
	Existence builders.Existence
}

// ExistencePlanner asks the builder for its known versions, checks them all
// in one bulk call and plans every version not confirmed present.
type ExistencePlanner struct{}

func (ExistencePlanner) Plan(ctx context.Context, req PlanRequest) (PlanResult, error) {
	if req.Builder == nil {
		return PlanResult{}, fmt.Errorf("plan %s: builder required", req.Kind)
	}
	versions, err := req.Builder.KnownVersions(ctx)
	if err != nil {
		return PlanResult{}, fmt.Errorf("plan %s: known versions: %w", req.Kind, err)
	}

	argsList := make([]builders.Args, len(versions))
	for i, v := range versions {
		argsList[i] = builders.VersionArgs(v)
	}
	existence, err := req.Builder.AlreadyBuiltBulk(ctx, req.Context, argsList)
	if err != nil {
		return PlanResult{}, fmt.Errorf("plan %s: existence check: %w", req.Kind, err)
	}
	if len(existence) != len(versions) {
		return PlanResult{}, fmt.Errorf("plan %s: existence check returned %d results for %d versions", req.Kind, len(existence), len(versions))
	}

	result := PlanResult{Kind: req.Kind}
	for i, v := range versions {
		if !existence[i].NeedsBuild() {
			result.Skipped = append(result.Skipped, v)
			continue
		}
		result.Jobs = append(result.Jobs, PlannedJob{
			Version:   v,
			Args:      argsList[i],
			Existence: existence[i],
		})
	}
	return result, nil
}
