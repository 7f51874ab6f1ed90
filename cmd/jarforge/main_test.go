package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	return exitFailure
}

func TestBuilderRejectsUnknownKind(t *testing.T) {
	_, err := execute(t, "builder", "forge", "--builderArg", "version=1.0", "--output", t.TempDir())
	if code := exitCode(err); code != exitUsage {
		t.Fatalf("expected exit %d, got %d (%v)", exitUsage, code, err)
	}
}

func TestBuilderRejectsMalformedArg(t *testing.T) {
	_, err := execute(t, "builder", "vanilla", "--builderArg", "version", "--output", t.TempDir())
	if code := exitCode(err); code != exitUsage {
		t.Fatalf("expected exit %d, got %d (%v)", exitUsage, code, err)
	}
}

func TestBuilderRequiresVersion(t *testing.T) {
	_, err := execute(t, "builder", "paper", "--output", t.TempDir())
	if code := exitCode(err); code != exitUsage {
		t.Fatalf("expected exit %d, got %d (%v)", exitUsage, code, err)
	}
}

func TestBuilderRequiresOneKind(t *testing.T) {
	_, err := execute(t, "builder")
	if code := exitCode(err); code != exitUsage {
		t.Fatalf("expected exit %d, got %d (%v)", exitUsage, code, err)
	}
}

func TestUnknownFlagIsUsageError(t *testing.T) {
	_, err := execute(t, "prune", "--bogus")
	if code := exitCode(err); code != exitUsage {
		t.Fatalf("expected exit %d, got %d (%v)", exitUsage, code, err)
	}
}

func TestInvalidConfigIsUsageError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jarforge.yaml")
	if err := os.WriteFile(path, []byte("image:\n  pull: sometimes\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := execute(t, "ping", "--config", path)
	if code := exitCode(err); code != exitUsage {
		t.Fatalf("expected exit %d, got %d (%v)", exitUsage, code, err)
	}
}

func TestPingUnreachableEngineFails(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "missing.sock")
	_, err := execute(t, "ping", "--config", filepath.Join(t.TempDir(), "absent.yaml"), "--socket", socket)
	if err == nil {
		t.Fatalf("expected error")
	}
	_, err = execute(t, "ping", "--socket", socket)
	if code := exitCode(err); code != exitFailure {
		t.Fatalf("expected exit %d, got %d (%v)", exitFailure, code, err)
	}
}
