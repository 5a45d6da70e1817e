package cmpkit

import (
	"fmt"
	"strings"
)

// depGraph is a dependency graph over named nodes. deps[i] lists the nodes
// node i waits for.
type depGraph struct {
	names []string
	deps  [][]int
}

// detectCycles uses DFS to find a cycle and reports its path.
func (g *depGraph) detectCycles() error {
	visited := make([]bool, len(g.names))
	recStack := make([]bool, len(g.names))

	var dfs func(int, []string) error
	dfs = func(i int, path []string) error {
		visited[i] = true
		recStack[i] = true
		path = append(path, g.names[i])

		for _, j := range g.deps[i] {
			if !visited[j] {
				if err := dfs(j, path); err != nil {
					return err
				}
			} else if recStack[j] {
				cycle := append(path, g.names[j])
				return fmt.Errorf("%w: %s", ErrDependencyCycle, strings.Join(cycle, " -> "))
			}
		}

		recStack[i] = false
		return nil
	}

	for i := range g.names {
		if !visited[i] {
			if err := dfs(i, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// dependents inverts the graph: out[j] lists the nodes waiting for j, in
// ascending order.
func (g *depGraph) dependents() [][]int {
	out := make([][]int, len(g.names))
	for i, deps := range g.deps {
		for _, j := range deps {
			out[j] = append(out[j], i)
		}
	}
	return out
}

// pending returns the number of unsettled dependencies of every node.
func (g *depGraph) pending() []int {
	out := make([]int, len(g.names))
	for i, deps := range g.deps {
		out[i] = len(deps)
	}
	return out
}
