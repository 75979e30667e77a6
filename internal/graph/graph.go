// Package graph models the directed join graph between data sources.
// It supports cycle detection with cycle-path reporting and deterministic
// neighbor iteration; traversal order must never depend on map iteration.
package graph

import (
	"sort"

	"github.com/leapstack-labs/expsql/pkg/core"
)

// Graph is a slug-indexed directed graph of data source joins.
type Graph struct {
	nodes map[string]bool
	edges map[string][]string // source -> sorted join targets
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]bool),
		edges: make(map[string][]string),
	}
}

// FromConfiguration builds the join graph of a resolved configuration.
// Edges pointing at data sources missing from the configuration are not
// added; the reference validator reports those separately.
func FromConfiguration(cfg *core.Configuration) *Graph {
	g := New()
	for slug := range cfg.DataSources {
		g.AddNode(slug)
	}
	for slug, ds := range cfg.DataSources {
		for _, target := range ds.JoinTargets() {
			if g.nodes[target] {
				g.AddEdge(slug, target)
			}
		}
	}
	return g
}

// AddNode adds a node. Adding an existing node is a no-op.
func (g *Graph) AddNode(slug string) {
	if !g.nodes[slug] {
		g.nodes[slug] = true
		g.edges[slug] = nil
	}
}

// AddEdge adds a directed edge from source to target, creating missing
// nodes. Duplicate edges are dropped; edge lists stay sorted.
func (g *Graph) AddEdge(source, target string) {
	g.AddNode(source)
	g.AddNode(target)
	neighbors := g.edges[source]
	i := sort.SearchStrings(neighbors, target)
	if i < len(neighbors) && neighbors[i] == target {
		return
	}
	neighbors = append(neighbors, "")
	copy(neighbors[i+1:], neighbors[i:])
	neighbors[i] = target
	g.edges[source] = neighbors
}

// Neighbors returns the join targets of slug in sorted order.
func (g *Graph) Neighbors(slug string) []string {
	return g.edges[slug]
}

// HasNode reports whether slug is in the graph.
func (g *Graph) HasNode(slug string) bool {
	return g.nodes[slug]
}

// HasCycle reports whether the graph contains a cycle. When it does, the
// returned path lists the slugs along the cycle with the entry slug
// repeated at the end. Detection is a DFS with a per-path recursion stack;
// nodes are visited in sorted order so the reported cycle is deterministic.
func (g *Graph) HasCycle() (bool, []string) {
	visited := make(map[string]bool)
	onPath := make(map[string]bool)
	parent := make(map[string]string)

	var cycle []string

	var dfs func(slug string) bool
	dfs = func(slug string) bool {
		visited[slug] = true
		onPath[slug] = true

		for _, next := range g.edges[slug] {
			if !visited[next] {
				parent[next] = slug
				if dfs(next) {
					return true
				}
			} else if onPath[next] {
				// Walk parents back to the start of the cycle.
				cycle = []string{next}
				for curr := slug; curr != next; curr = parent[curr] {
					cycle = append([]string{curr}, cycle...)
				}
				cycle = append([]string{next}, cycle...)
				return true
			}
		}

		onPath[slug] = false
		return false
	}

	slugs := make([]string, 0, len(g.nodes))
	for slug := range g.nodes {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	for _, slug := range slugs {
		if !visited[slug] {
			if dfs(slug) {
				return true, cycle
			}
		}
	}
	return false, nil
}
