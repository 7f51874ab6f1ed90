package orchestrator

import (
	"errors"
	"fmt"
	"time"

	"github.com/izavyalov-dev/jarforge/builders"
)

var (
	// ErrShuttingDown indicates the build was refused or torn down because the
	// process is shutting down.
	ErrShuttingDown = errors.New("orchestrator: shutting down")
)

// Container labels attached to every build container.
const (
	LabelOwner = "jarforge.owner"
	LabelKind  = "jarforge.kind"
	OwnerValue = "jarforge"
)

// OwnerLabel is the label filter matching every container this tool created.
func OwnerLabel() string {
	return LabelOwner + "=" + OwnerValue
}

const (
	DefaultImage        = "localhost/jarforge-builder:latest"
	DefaultLogTailLines = 250

	containerAppRoot = "/app"
	containerOutput  = "/output"
	containerScratch = "/tmp"
	prodEntrypoint   = "/app/jarforge"
)

// Config controls how build containers are shaped.
type Config struct {
	Image        string
	AppRoot      string
	SocketPath   string
	DevMode      bool
	LogTailLines int
}

func (c Config) withDefaults() Config {
	if c.Image == "" {
		c.Image = DefaultImage
	}
	if c.LogTailLines <= 0 {
		c.LogTailLines = DefaultLogTailLines
	}
	return c
}

// Job is one build request: a kind, its builder arguments and the host
// directory the artifact lands in.
type Job struct {
	Kind           string
	Args           builders.Args
	OutputDir      string
	ReadOnlyRootFS bool
}

func (j Job) Version() string {
	return j.Args.Version()
}

// Result describes a finished build container.
type Result struct {
	BuildID     string
	ContainerID string
	ExitCode    int
	Duration    time.Duration
}

// BuildError is returned when a build container exits non-zero.
type BuildError struct {
	Kind     string
	Version  string
	ExitCode int
	LogTail  string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build %s %s exited with code %d:\n%s", e.Kind, e.Version, e.ExitCode, e.LogTail)
}

// ContainerState is a step of a build container's lifecycle.
type ContainerState string

const (
	StateCreated       ContainerState = "created"
	StateStarted       ContainerState = "started"
	StateExitedSuccess ContainerState = "exited_success"
	StateExitedFailure ContainerState = "exited_failure"
	StateRemoved       ContainerState = "removed"
	StateForceRemoved  ContainerState = "force_removed"
)

// Transition is reported to the Recorder on every lifecycle step.
type Transition struct {
	BuildID     string
	Kind        string
	Version     string
	ContainerID string
	State       ContainerState
	ExitCode    *int
	LogTail     string
	At          time.Time
}
