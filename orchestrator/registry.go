package orchestrator

import (
	"sort"
	"sync"
)

// Registry tracks running build containers and the process-wide shutdown
// flag. Both live under one lock so a container can never be added after
// the abort path has taken its snapshot.
type Registry struct {
	mu           sync.Mutex
	running      map[string]struct{}
	shuttingDown bool
}

func NewRegistry() *Registry {
	return &Registry{running: map[string]struct{}{}}
}

// Add records id as running. It returns false once shutdown has begun; the
// caller then owns removing the container.
func (r *Registry) Add(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shuttingDown {
		return false
	}
	r.running[id] = struct{}{}
	return true
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.running, id)
	r.mu.Unlock()
}

// Snapshot returns the running ids in lexical order.
func (r *Registry) Snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.running))
	for id := range r.running {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.running)
}

// BeginShutdown sets the shutdown flag and reports whether this call set it.
func (r *Registry) BeginShutdown() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shuttingDown {
		return false
	}
	r.shuttingDown = true
	return true
}

func (r *Registry) ShuttingDown() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shuttingDown
}
