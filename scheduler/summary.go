package scheduler

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/fatih/color"
)

// KindSummary is the outcome of one kind's pool.
type KindSummary struct {
	Kind     string
	Built    []string
	Skipped  []string
	Aborted  []string
	Failures []Failure
	PlanErr  error
}

func (k KindSummary) Failed() int {
	return len(k.Failures)
}

// Summary aggregates results across every kind. It is safe for concurrent use.
type Summary struct {
	mu    sync.Mutex
	kinds map[string]*KindSummary
}

func newSummary() *Summary {
	return &Summary{kinds: map[string]*KindSummary{}}
}

func (s *Summary) update(kind string, fn func(*KindSummary)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.kinds[kind]
	if !ok {
		k = &KindSummary{Kind: kind}
		s.kinds[kind] = k
	}
	fn(k)
}

func (s *Summary) built(kind, version string) {
	s.update(kind, func(k *KindSummary) { k.Built = append(k.Built, version) })
}

func (s *Summary) skipped(kind string, versions ...string) {
	s.update(kind, func(k *KindSummary) { k.Skipped = append(k.Skipped, versions...) })
}

func (s *Summary) aborted(kind, version string) {
	s.update(kind, func(k *KindSummary) { k.Aborted = append(k.Aborted, version) })
}

func (s *Summary) failed(f Failure) {
	s.update(f.Kind, func(k *KindSummary) { k.Failures = append(k.Failures, f) })
}

func (s *Summary) planFailed(kind string, err error) {
	s.update(kind, func(k *KindSummary) { k.PlanErr = err })
}

// Kinds returns a copy of every kind's summary ordered by kind name.
func (s *Summary) Kinds() []KindSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]KindSummary, 0, len(s.kinds))
	for _, k := range s.kinds {
		c := *k
		c.Built = sortedCopy(k.Built)
		c.Skipped = sortedCopy(k.Skipped)
		c.Aborted = sortedCopy(k.Aborted)
		c.Failures = append([]Failure(nil), k.Failures...)
		sort.Slice(c.Failures, func(i, j int) bool { return c.Failures[i].Version < c.Failures[j].Version })
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

func (s *Summary) Kind(name string) KindSummary {
	for _, k := range s.Kinds() {
		if k.Kind == name {
			return k
		}
	}
	return KindSummary{Kind: name}
}

// HasFailures reports whether any build or plan failed.
func (s *Summary) HasFailures() bool {
	for _, k := range s.Kinds() {
		if k.PlanErr != nil || len(k.Failures) > 0 {
			return true
		}
	}
	return false
}

// Print writes a colored per-kind report to w.
func (s *Summary) Print(w io.Writer) {
	bold := color.New(color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	for _, k := range s.Kinds() {
		fmt.Fprintf(w, "%s  built %s  skipped %d  aborted %s  failed %s\n",
			bold(k.Kind),
			green(len(k.Built)),
			len(k.Skipped),
			yellow(len(k.Aborted)),
			red(len(k.Failures)),
		)
		if k.PlanErr != nil {
			fmt.Fprintf(w, "  %s %v\n", red("plan failed:"), k.PlanErr)
		}
		for _, f := range k.Failures {
			fmt.Fprintf(w, "  %s %s [%s] %s\n", red("✖"), f.Version, f.Category, f.Summary)
		}
	}
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
