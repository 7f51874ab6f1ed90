package orchestrator

import (
	"github.com/izavyalov-dev/jarforge/engine"
)

// builderCommand is the in-container invocation for job.
func (c Config) builderCommand(job Job) []string {
	var cmd []string
	if c.DevMode {
		cmd = []string{"go", "run", "./cmd/jarforge"}
	} else {
		cmd = []string{prodEntrypoint}
	}
	cmd = append(cmd, "builder", job.Kind)
	for _, pair := range job.Args.Pairs() {
		cmd = append(cmd, "--builderArg", pair)
	}
	return cmd
}

// containerSpec shapes the locked-down container for job.
func (c Config) containerSpec(job Job, name string) engine.ContainerSpec {
	mounts := []engine.Mount{
		engine.BindMount(c.AppRoot, containerAppRoot, "ro"),
		engine.BindMount(job.OutputDir, containerOutput, "rw"),
	}
	if c.SocketPath != "" {
		mounts = append(mounts, engine.BindMount(c.SocketPath, c.SocketPath, "ro"))
	}
	mounts = append(mounts, engine.TmpfsMount(containerScratch))

	return engine.ContainerSpec{
		Image:   c.Image,
		Command: c.builderCommand(job),
		Name:    name,
		Labels: map[string]string{
			LabelOwner: OwnerValue,
			LabelKind:  job.Kind,
		},
		Mounts:             mounts,
		WorkDir:            containerAppRoot,
		NoNewPrivileges:    true,
		ReadOnlyFilesystem: job.ReadOnlyRootFS,
		Volatile:           true,
	}
}
