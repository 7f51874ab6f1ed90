// Package builders holds the per-kind build strategies run inside build
// containers, and the registry that maps kind names to them.
package builders

import (
	"context"
	"errors"
)

var (
	// ErrMissingArg indicates a required builder argument was not supplied.
	ErrMissingArg = errors.New("builders: missing argument")
	// ErrAlreadyBuilt indicates the artifact is already present in the output directory.
	ErrAlreadyBuilt = errors.New("builders: artifact already built")
	// ErrUnknownKind indicates no builder is registered under the requested name.
	ErrUnknownKind = errors.New("builders: unknown kind")
	// ErrUnknownVersion indicates the upstream does not know the requested version.
	ErrUnknownVersion = errors.New("builders: unknown version")
)

// Existence is the tri-state answer to "is this artifact already built".
type Existence int

const (
	// Unknown means presence cannot be determined without side effects.
	Unknown Existence = iota
	Missing
	Present
)

func (e Existence) String() string {
	switch e {
	case Missing:
		return "missing"
	case Present:
		return "present"
	default:
		return "unknown"
	}
}

// NeedsBuild reports whether a version in this state should be built.
func (e Existence) NeedsBuild() bool {
	return e != Present
}

// BuildContext locates the directories a strategy may write to.
type BuildContext struct {
	Workspace string
	OutputDir string
}

// Builder is the capability set every artifact kind implements.
type Builder interface {
	// KnownVersions lists every version the upstream offers.
	KnownVersions(ctx context.Context) ([]string, error)
	// Build produces the artifact described by args in bctx.OutputDir.
	Build(ctx context.Context, bctx BuildContext, args Args) error
	// AlreadyBuilt checks the output directory for the artifact.
	AlreadyBuilt(ctx context.Context, bctx BuildContext, args Args) (Existence, error)
	// AlreadyBuiltBulk answers AlreadyBuilt for every entry of argsList, in
	// order, without writing anything.
	AlreadyBuiltBulk(ctx context.Context, bctx BuildContext, argsList []Args) ([]Existence, error)
}
