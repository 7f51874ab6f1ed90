package orchestrator

import (
	"strings"

	"github.com/google/uuid"
)

// IDGenerator produces build identifiers and container names.
type IDGenerator interface {
	BuildID() string
	ContainerName(kind string) string
}

// RandomIDGenerator derives identifiers from random UUIDs.
type RandomIDGenerator struct{}

func (RandomIDGenerator) BuildID() string {
	return uuid.NewString()
}

func (RandomIDGenerator) ContainerName(kind string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return "jarforge-" + sanitizeName(kind) + "-" + suffix
}

// sanitizeName keeps the characters the engine accepts in container names.
func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "build"
	}
	return b.String()
}
