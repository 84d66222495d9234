package plan

import (
	"sort"

	"github.com/viant/fluxgate/model/types"
)

// validate checks identity, sequencing, dependency references and acyclicity
// of the supplied steps. It never mutates them.
func validate(steps []*Step) error {
	byID := make(map[string]*Step, len(steps))
	for _, step := range steps {
		if step == nil {
			return types.NewValidationError("steps", "nil step")
		}
		if step.ID == "" {
			return types.NewValidationError("step.id", "step %d has empty id", step.Order)
		}
		if _, ok := byID[step.ID]; ok {
			return &types.GraphError{Kind: types.GraphErrorDuplicate, StepID: step.ID}
		}
		byID[step.ID] = step
	}

	sorted := make([]*Step, len(steps))
	copy(sorted, steps)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })
	for i, step := range sorted {
		if step.Order != i+1 {
			return &types.GraphError{Kind: types.GraphErrorSequence, StepID: step.ID, Order: step.Order}
		}
	}

	for _, step := range sorted {
		for _, dep := range step.Dependencies {
			if dep == step.ID {
				return &types.GraphError{Kind: types.GraphErrorSelfDependency, StepID: step.ID}
			}
			if _, ok := byID[dep]; !ok {
				return &types.GraphError{Kind: types.GraphErrorUnknownDependency, StepID: step.ID, Dependency: dep}
			}
		}
	}

	if cycle := findCycle(sorted); len(cycle) > 0 {
		return &types.GraphError{Kind: types.GraphErrorCycle, StepID: cycle[0], Cycle: cycle}
	}
	return nil
}

// cycleDetector walks dependency edges depth first. visited holds fully
// explored nodes, onPath maps nodes on the current path to their path index.
type cycleDetector struct {
	edges   map[string][]string
	visited map[string]bool
	onPath  map[string]int
	path    []string
}

// findCycle returns the first dependency cycle found, with the entry id
// repeated at the end, or nil when the graph is acyclic.
func findCycle(steps []*Step) []string {
	d := &cycleDetector{
		edges:   make(map[string][]string, len(steps)),
		visited: make(map[string]bool, len(steps)),
		onPath:  make(map[string]int),
	}
	for _, step := range steps {
		d.edges[step.ID] = step.Dependencies
	}
	for _, step := range steps {
		if d.visited[step.ID] {
			continue
		}
		if cycle := d.visit(step.ID); cycle != nil {
			return cycle
		}
	}
	return nil
}

func (d *cycleDetector) visit(id string) []string {
	d.visited[id] = true
	d.onPath[id] = len(d.path)
	d.path = append(d.path, id)
	for _, dep := range d.edges[id] {
		if _, ok := d.edges[dep]; !ok {
			continue
		}
		if start, ok := d.onPath[dep]; ok {
			cycle := append([]string(nil), d.path[start:]...)
			return append(cycle, dep)
		}
		if d.visited[dep] {
			continue
		}
		if cycle := d.visit(dep); cycle != nil {
			return cycle
		}
	}
	delete(d.onPath, id)
	d.path = d.path[:len(d.path)-1]
	return nil
}
