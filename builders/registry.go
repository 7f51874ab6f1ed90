package builders

import (
	"fmt"
	"net/http"
	"sort"
	"time"
)

// Registry maps kind names to builders. It is filled once at startup.
type Registry struct {
	builders map[string]Builder
}

func NewRegistry() *Registry {
	return &Registry{builders: map[string]Builder{}}
}

func (r *Registry) Register(name string, b Builder) error {
	if name == "" || b == nil {
		return fmt.Errorf("register builder: name and builder required")
	}
	if _, exists := r.builders[name]; exists {
		return fmt.Errorf("register builder: %s already registered", name)
	}
	r.builders[name] = b
	return nil
}

func (r *Registry) Get(name string) (Builder, error) {
	b, ok := r.builders[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, name)
	}
	return b, nil
}

// Names returns the registered kinds in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default registers every built-in kind. A nil client gets a client with a
// generous timeout suitable for jar downloads.
func Default(client *http.Client) *Registry {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Minute}
	}
	r := NewRegistry()
	for _, project := range []string{"paper", "folia", "velocity", "waterfall"} {
		_ = r.Register(project, NewPaperMC(project, client))
	}
	_ = r.Register("vanilla", NewVanilla(client))
	return r
}
