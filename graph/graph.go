// Package graph provides the typed configuration graph: nodes keyed by point
// and edges keyed by vector. A Graph is immutable once built; every
// transformation returns a new Graph.
package graph

import (
	"github.com/ruteri/omnichain-configurator/interfaces"
)

// Node attaches a configuration to one point.
type Node[N any] struct {
	Point  interfaces.Point `json:"point"`
	Config N                `json:"config"`
}

// Edge attaches a configuration to one directed vector.
type Edge[E any] struct {
	Vector interfaces.Vector `json:"vector"`
	Config E                 `json:"config"`
}

// Graph is a set of nodes and edges with unique points and vectors.
type Graph[N, E any] struct {
	nodes     []Node[N]
	edges     []Edge[E]
	nodeIndex map[string]int
	edgeIndex map[string]int
}

// Build creates a graph from nodes and edges. It fails with a
// *interfaces.DuplicateIdentityError if two nodes share a point or two edges
// share a vector.
func Build[N, E any](nodes []Node[N], edges []Edge[E]) (*Graph[N, E], error) {
	g := &Graph[N, E]{
		nodes:     make([]Node[N], 0, len(nodes)),
		edges:     make([]Edge[E], 0, len(edges)),
		nodeIndex: make(map[string]int, len(nodes)),
		edgeIndex: make(map[string]int, len(edges)),
	}
	if err := g.appendNodes(nodes); err != nil {
		return nil, err
	}
	if err := g.appendEdges(edges); err != nil {
		return nil, err
	}
	return g, nil
}

// Empty returns a graph without nodes or edges.
func Empty[N, E any]() *Graph[N, E] {
	g, _ := Build[N, E](nil, nil)
	return g
}

func (g *Graph[N, E]) appendNodes(nodes []Node[N]) error {
	for _, n := range nodes {
		key := n.Point.Key()
		if _, exists := g.nodeIndex[key]; exists {
			return &interfaces.DuplicateIdentityError{Kind: "node", Key: key}
		}
		g.nodeIndex[key] = len(g.nodes)
		g.nodes = append(g.nodes, n)
	}
	return nil
}

func (g *Graph[N, E]) appendEdges(edges []Edge[E]) error {
	for _, e := range edges {
		key := e.Vector.Key()
		if _, exists := g.edgeIndex[key]; exists {
			return &interfaces.DuplicateIdentityError{Kind: "edge", Key: key}
		}
		g.edgeIndex[key] = len(g.edges)
		g.edges = append(g.edges, e)
	}
	return nil
}

// AddNodes returns a new graph with the given nodes appended. A node whose
// point is already present is an error, never an overwrite.
func (g *Graph[N, E]) AddNodes(nodes ...Node[N]) (*Graph[N, E], error) {
	return Build(append(g.Nodes(), nodes...), g.edges)
}

// AddEdges returns a new graph with the given edges appended. An edge whose
// vector is already present is an error, never an overwrite.
func (g *Graph[N, E]) AddEdges(edges ...Edge[E]) (*Graph[N, E], error) {
	return Build(g.nodes, append(g.Edges(), edges...))
}

// Nodes returns the nodes in insertion order.
func (g *Graph[N, E]) Nodes() []Node[N] {
	out := make([]Node[N], len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Edges returns the edges in insertion order.
func (g *Graph[N, E]) Edges() []Edge[E] {
	out := make([]Edge[E], len(g.edges))
	copy(out, g.edges)
	return out
}

// Node looks up the node at point.
func (g *Graph[N, E]) Node(point interfaces.Point) (Node[N], bool) {
	i, ok := g.nodeIndex[point.Key()]
	if !ok {
		return Node[N]{}, false
	}
	return g.nodes[i], true
}

// Edge looks up the edge at vector.
func (g *Graph[N, E]) Edge(vector interfaces.Vector) (Edge[E], bool) {
	i, ok := g.edgeIndex[vector.Key()]
	if !ok {
		return Edge[E]{}, false
	}
	return g.edges[i], true
}

// Len returns the number of nodes and edges.
func (g *Graph[N, E]) Len() int {
	return len(g.nodes) + len(g.edges)
}

// Filter rebuilds the graph keeping only the nodes and edges accepted by the
// predicates. A nil predicate drops everything of its kind.
func (g *Graph[N, E]) Filter(keepNode func(Node[N]) bool, keepEdge func(Edge[E]) bool) *Graph[N, E] {
	var nodes []Node[N]
	var edges []Edge[E]
	for _, n := range g.nodes {
		if keepNode != nil && keepNode(n) {
			nodes = append(nodes, n)
		}
	}
	for _, e := range g.edges {
		if keepEdge != nil && keepEdge(e) {
			edges = append(edges, e)
		}
	}
	// A subset of a valid graph cannot contain duplicates.
	filtered, _ := Build(nodes, edges)
	return filtered
}
