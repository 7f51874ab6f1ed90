package builders

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

var buildArtifactPattern = regexp.MustCompile(`^Build (\d+) \[(.+)\]\.jar$`)

// BuildArtifactName is the file name for a numbered upstream build of version.
func BuildArtifactName(build int, version string) string {
	return fmt.Sprintf("Build %d [%s].jar", build, version)
}

// ParseBuildArtifact extracts the build number and version from a name
// produced by BuildArtifactName.
func ParseBuildArtifact(name string) (int, string, bool) {
	m := buildArtifactPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, "", false
	}
	build, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	return build, m[2], true
}

// outputListing is a one-shot read of an output directory.
type outputListing struct {
	names map[string]struct{}
	err   error
}

func readOutput(dir string) outputListing {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return outputListing{names: map[string]struct{}{}}
		}
		return outputListing{err: err}
	}
	names := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names[entry.Name()] = struct{}{}
		}
	}
	return outputListing{names: names}
}

func (l outputListing) has(name string) Existence {
	if l.err != nil {
		return Unknown
	}
	if _, ok := l.names[name]; ok {
		return Present
	}
	return Missing
}

// hasBuildOf reports whether any numbered build of exactly version is present.
func (l outputListing) hasBuildOf(version string) Existence {
	if l.err != nil {
		return Unknown
	}
	for name := range l.names {
		if _, v, ok := ParseBuildArtifact(name); ok && v == version {
			return Present
		}
	}
	return Missing
}

// installFile moves a finished download into dir under name. The temporary
// file must already live in dir so the rename stays on one filesystem.
func installFile(tmpPath, dir, name string) error {
	dst := filepath.Join(dir, name)
	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("install %s: %w", name, err)
	}
	return nil
}
