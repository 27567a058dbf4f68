// SPDX-License-Identifier: MPL-2.0

// Package dag provides directed acyclic graph operations for topological sorting
// and cycle detection. It orders modules by their declared dependencies for
// offline validation and the load-order graph.
package dag

import (
	"fmt"
	"slices"
	"strings"
)

type (
	// CycleError indicates that the graph contains a cycle, preventing topological ordering.
	CycleError struct {
		// Cycle contains the nodes that sit on a cycle, in insertion order.
		Cycle []string
		// Blocked contains the nodes that are not on a cycle but depend on one.
		Blocked []string
	}

	// Graph is a directed graph for topological sorting.
	// Nodes are identified by string keys. Edges represent "must load before" relationships:
	// an edge from A to B means A must be loaded before B.
	Graph struct {
		// adjacency maps each node to its outgoing neighbors (nodes that depend on it).
		adjacency map[string][]string
		// nodes tracks all nodes in insertion order for deterministic output.
		nodes   []string
		nodeSet map[string]bool
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		adjacency: make(map[string][]string),
		nodeSet:   make(map[string]bool),
	}
}

// FromDependencies builds a graph from a node -> dependencies map. Nodes are
// added in sorted order. Dependencies that are not keys of deps are left out
// of the graph and returned per dependent, sorted.
func FromDependencies(deps map[string][]string) (g *Graph, missing map[string][]string) {
	g = New()
	keys := make([]string, 0, len(deps))
	for k := range deps {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		g.AddNode(k)
	}
	for _, k := range keys {
		for _, dep := range deps[k] {
			if _, ok := deps[dep]; !ok {
				if missing == nil {
					missing = make(map[string][]string)
				}
				missing[k] = append(missing[k], dep)
				continue
			}
			g.AddEdge(dep, k)
		}
		slices.Sort(missing[k])
	}
	return g, missing
}

// AddNode adds a node to the graph. If the node already exists, this is a no-op.
func (g *Graph) AddNode(name string) {
	if g.nodeSet[name] {
		return
	}
	g.nodeSet[name] = true
	g.nodes = append(g.nodes, name)
}

// AddEdge adds a directed edge from -> to, meaning "from" must load before "to".
// Both nodes are implicitly added if they don't exist.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	g.adjacency[from] = append(g.adjacency[from], to)
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []string {
	return slices.Clone(g.nodes)
}

// Dependents returns the direct successors of name, without duplicates.
func (g *Graph) Dependents(name string) []string {
	return slices.Compact(slices.Sorted(slices.Values(g.adjacency[name])))
}

// TopologicalSort returns a valid load order using Kahn's algorithm.
// Returns CycleError if the graph contains a cycle.
// The returned order is deterministic: nodes at the same topological level
// appear in the order they were first added to the graph.
func (g *Graph) TopologicalSort() ([]string, error) {
	layers, err := g.Layers()
	if err != nil {
		return nil, err
	}
	var result []string
	for _, layer := range layers {
		result = append(result, layer...)
	}
	return result, nil
}

// Layers groups the nodes by depth: the first layer has no incoming edges,
// every later layer only depends on earlier ones.
func (g *Graph) Layers() ([][]string, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int, len(g.nodes))
	for _, node := range g.nodes {
		inDegree[node] = 0
	}
	for _, neighbors := range g.adjacency {
		for _, neighbor := range neighbors {
			inDegree[neighbor]++
		}
	}

	var current []string
	for _, node := range g.nodes {
		if inDegree[node] == 0 {
			current = append(current, node)
		}
	}

	var (
		layers [][]string
		seen   int
	)
	for len(current) > 0 {
		layers = append(layers, current)
		seen += len(current)

		var next []string
		for _, node := range current {
			for _, neighbor := range g.adjacency[node] {
				inDegree[neighbor]--
				if inDegree[neighbor] == 0 {
					next = append(next, neighbor)
				}
			}
		}
		slices.SortStableFunc(next, func(a, b string) int {
			return slices.Index(g.nodes, a) - slices.Index(g.nodes, b)
		})
		current = next
	}

	if seen != len(g.nodes) {
		return nil, g.cycleError(inDegree)
	}
	return layers, nil
}

func (g *Graph) cycleError(inDegree map[string]int) *CycleError {
	onCycle := make(map[string]bool)
	for _, scc := range g.Cycles() {
		for _, n := range scc {
			onCycle[n] = true
		}
	}
	err := &CycleError{}
	for _, node := range g.nodes {
		switch {
		case onCycle[node]:
			err.Cycle = append(err.Cycle, node)
		case inDegree[node] > 0:
			err.Blocked = append(err.Blocked, node)
		}
	}
	return err
}

// Cycles returns the strongly connected components that form cycles: every
// component with more than one node, and single nodes with a self edge.
// Components and their members follow insertion order.
func (g *Graph) Cycles() [][]string {
	t := &tarjan{
		g:       g,
		index:   make(map[string]int),
		lowlink: make(map[string]int),
		onStack: make(map[string]bool),
	}
	for _, node := range g.nodes {
		if _, ok := t.index[node]; !ok {
			t.strongConnect(node)
		}
	}

	order := make(map[string]int, len(g.nodes))
	for i, n := range g.nodes {
		order[n] = i
	}
	var cycles [][]string
	for _, scc := range t.components {
		if len(scc) == 1 && !slices.Contains(g.adjacency[scc[0]], scc[0]) {
			continue
		}
		slices.SortFunc(scc, func(a, b string) int { return order[a] - order[b] })
		cycles = append(cycles, scc)
	}
	slices.SortFunc(cycles, func(a, b []string) int { return order[a[0]] - order[b[0]] })
	return cycles
}

type tarjan struct {
	g          *Graph
	next       int
	index      map[string]int
	lowlink    map[string]int
	stack      []string
	onStack    map[string]bool
	components [][]string
}

func (t *tarjan) strongConnect(v string) {
	t.index[v] = t.next
	t.lowlink[v] = t.next
	t.next++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, w := range t.g.adjacency[v] {
		if _, ok := t.index[w]; !ok {
			t.strongConnect(w)
			t.lowlink[v] = min(t.lowlink[v], t.lowlink[w])
		} else if t.onStack[w] {
			t.lowlink[v] = min(t.lowlink[v], t.index[w])
		}
	}

	if t.lowlink[v] != t.index[v] {
		return
	}
	var scc []string
	for {
		w := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.onStack[w] = false
		scc = append(scc, w)
		if w == v {
			break
		}
	}
	t.components = append(t.components, scc)
}
