package plan

import (
	"fmt"
	"sort"
)

// Entry is one planned file work item.
type Entry struct {
	Path      string   `json:"path"`
	Purpose   string   `json:"purpose"`
	DependsOn []string `json:"depends_on"`

	// Scaffold marks boilerplate files whose content is produced locally
	// without a generation call.
	Scaffold bool `json:"-"`
}

// Manifest is an ordered list of planned file work items.
type Manifest []Entry

// PlanningError reports an invalid or unorderable manifest. It is fatal to
// the build session; the orchestrator never retries planning failures.
type PlanningError struct {
	Reason string
}

func (e *PlanningError) Error() string {
	return "planning failed: " + e.Reason
}

// Sort orders the manifest topologically by dependency edges using Kahn's
// algorithm. Ties among independent entries break lexicographically by path
// so scheduling is deterministic. Dependencies on paths outside the manifest
// are treated as already satisfied. A cycle yields a PlanningError.
func (m Manifest) Sort() (Manifest, error) {
	byPath := make(map[string]Entry, len(m))
	for _, e := range m {
		if _, dup := byPath[e.Path]; dup {
			return nil, &PlanningError{Reason: fmt.Sprintf("duplicate manifest entry for %q", e.Path)}
		}
		byPath[e.Path] = e
	}

	indegree := make(map[string]int, len(m))
	dependents := make(map[string][]string)
	for _, e := range m {
		indegree[e.Path] = 0
	}
	for _, e := range m {
		for _, dep := range e.DependsOn {
			if dep == e.Path {
				return nil, &PlanningError{Reason: fmt.Sprintf("cyclic dependency: %q depends on itself", e.Path)}
			}
			if _, in := byPath[dep]; !in {
				continue // Existing file outside this plan, already satisfied
			}
			indegree[e.Path]++
			dependents[dep] = append(dependents[dep], e.Path)
		}
	}

	var frontier []string
	for path, deg := range indegree {
		if deg == 0 {
			frontier = append(frontier, path)
		}
	}
	sort.Strings(frontier)

	ordered := make(Manifest, 0, len(m))
	for len(frontier) > 0 {
		path := frontier[0]
		frontier = frontier[1:]
		ordered = append(ordered, byPath[path])

		released := false
		for _, next := range dependents[path] {
			indegree[next]--
			if indegree[next] == 0 {
				frontier = append(frontier, next)
				released = true
			}
		}
		if released {
			sort.Strings(frontier)
		}
	}

	if len(ordered) != len(m) {
		var stuck []string
		for path, deg := range indegree {
			if deg > 0 {
				stuck = append(stuck, path)
			}
		}
		sort.Strings(stuck)
		return nil, &PlanningError{Reason: fmt.Sprintf("cyclic dependency among %v", stuck)}
	}

	return ordered, nil
}

// Paths returns the entry paths in manifest order.
func (m Manifest) Paths() []string {
	out := make([]string, len(m))
	for i, e := range m {
		out[i] = e.Path
	}
	return out
}
