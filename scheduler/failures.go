package scheduler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/izavyalov-dev/jarforge/builders"
	"github.com/izavyalov-dev/jarforge/engine"
	"github.com/izavyalov-dev/jarforge/orchestrator"
)

const maxFailureSummaryLen = 160

// FailureCategory groups build failures for the summary and metrics.
type FailureCategory string

const (
	FailureCategoryInfra    FailureCategory = "infra"
	FailureCategoryTooling  FailureCategory = "tooling"
	FailureCategoryUpstream FailureCategory = "upstream"
	FailureCategoryEngine   FailureCategory = "engine"
	FailureCategoryUser     FailureCategory = "user"
)

// Failure is the rule-based explanation of one failed build.
type Failure struct {
	Kind     string
	Version  string
	Category FailureCategory
	Summary  string
	ExitCode int
	Err      error
}

// classifyFailure explains err from heuristics over the exit code and log tail.
func classifyFailure(kind, version string, err error) Failure {
	f := Failure{Kind: kind, Version: version, Err: err}

	var buildErr *orchestrator.BuildError
	if !errors.As(err, &buildErr) {
		var apiErr *engine.APIError
		if errors.As(err, &apiErr) {
			f.Category = FailureCategoryEngine
			f.Summary = truncateText(fmt.Sprintf("Engine rejected %s (status %d).", apiErr.Operation, apiErr.StatusCode), maxFailureSummaryLen)
			return f
		}
		f.Category = FailureCategoryInfra
		f.Summary = truncateText(sanitizeText(err.Error()), maxFailureSummaryLen)
		return f
	}

	f.ExitCode = buildErr.ExitCode
	lower := strings.ToLower(buildErr.LogTail)
	exitCode := buildErr.ExitCode

	switch {
	case exitCode == 137 || containsAny(lower, "out of memory", "signal: killed", "killed"):
		f.Category, f.Summary = FailureCategoryInfra, fmt.Sprintf("Container killed or out of memory (exit code %d).", exitCode)
	case containsAny(lower, "no space", "disk full", "read-only file system"):
		f.Category, f.Summary = FailureCategoryInfra, fmt.Sprintf("Output storage unavailable (exit code %d).", exitCode)
	case containsAny(lower, "dial tcp", "connection refused", "i/o timeout", "temporary failure", "tls handshake timeout", "no such host"):
		f.Category, f.Summary = FailureCategoryInfra, fmt.Sprintf("Network error detected (exit code %d).", exitCode)
	case containsAny(lower, "upstream error", "checksum mismatch", strings.ToLower(builders.ErrUnknownVersion.Error())):
		f.Category, f.Summary = FailureCategoryUpstream, fmt.Sprintf("Upstream rejected the download (exit code %d).", exitCode)
	case containsAny(lower, "command not found", "executable file not found", "no such file or directory"):
		f.Category, f.Summary = FailureCategoryTooling, fmt.Sprintf("Missing tool in builder image (exit code %d).", exitCode)
	case containsAny(lower, "permission denied"):
		f.Category, f.Summary = FailureCategoryTooling, fmt.Sprintf("Permission error detected (exit code %d).", exitCode)
	case exitCode == 2:
		f.Category, f.Summary = FailureCategoryUser, "Builder rejected its arguments (exit code 2)."
	default:
		f.Category, f.Summary = FailureCategoryUser, fmt.Sprintf("Build failed (exit code %d).", exitCode)
	}
	return f
}

func sanitizeText(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

func truncateText(value string, maxLen int) string {
	if maxLen <= 0 || len(value) <= maxLen {
		return value
	}
	if maxLen <= 3 {
		return value[:maxLen]
	}
	return value[:maxLen-3] + "..."
}

func containsAny(value string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(value, needle) {
			return true
		}
	}
	return false
}
