package graph

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"
)

// Node is a street network intersection.
type Node struct {
	ID          int64
	Lat         float64
	Lon         float64
	StreetCount int
}

// Point returns the node position in GeoJSON lon/lat order.
func (n Node) Point() orb.Point {
	return orb.Point{n.Lon, n.Lat}
}

// Edge is a directed street segment between two nodes. Parallel edges
// between the same node pair are distinguished by Key.
type Edge struct {
	From      int64
	To        int64
	Key       int
	OSMID     int64
	Geometry  orb.LineString
	Highway   string
	Name      string
	Length    float64
	Width     *float64
	MaxSpeeds []int
	Lanes     []int
	Oneway    bool
	Tunnel    bool
	Bridge    bool
}

// Graph is a directed multigraph of street segments. One-way streets are
// represented by the absence of the reverse edge, so traversal never needs
// to consult the Oneway attribute.
type Graph struct {
	nodes    map[int64]Node
	out      map[int64][]Edge
	numEdges int
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[int64]Node),
		out:   make(map[int64][]Edge),
	}
}

// AddNode inserts or replaces a node.
func (g *Graph) AddNode(n Node) {
	g.nodes[n.ID] = n
}

// AddEdge inserts a directed edge. Both endpoints must already exist.
// An edge with the same (From, To, Key) replaces the previous one.
// Missing geometry is synthesized as the straight segment between the
// endpoint coordinates.
func (g *Graph) AddEdge(e Edge) error {
	from, ok := g.nodes[e.From]
	if !ok {
		return fmt.Errorf("add edge %d->%d: unknown node %d", e.From, e.To, e.From)
	}
	to, ok := g.nodes[e.To]
	if !ok {
		return fmt.Errorf("add edge %d->%d: unknown node %d", e.From, e.To, e.To)
	}

	if len(e.Geometry) == 0 {
		e.Geometry = orb.LineString{from.Point(), to.Point()}
	}

	for i, existing := range g.out[e.From] {
		if existing.To == e.To && existing.Key == e.Key {
			g.out[e.From][i] = e
			return nil
		}
	}
	g.out[e.From] = append(g.out[e.From], e)
	g.numEdges++
	return nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id int64) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// NodeIDs returns all node ids in ascending order.
func (g *Graph) NodeIDs() []int64 {
	ids := make([]int64, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// EdgesFrom returns the outgoing edges of a node, ordered by (To, Key).
func (g *Graph) EdgesFrom(id int64) []Edge {
	edges := make([]Edge, len(g.out[id]))
	copy(edges, g.out[id])
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].To != edges[j].To {
			return edges[i].To < edges[j].To
		}
		return edges[i].Key < edges[j].Key
	})
	return edges
}

// Edges returns every edge ordered by (From, To, Key).
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, 0, g.numEdges)
	for _, id := range g.NodeIDs() {
		edges = append(edges, g.EdgesFrom(id)...)
	}
	return edges
}

// NumNodes returns the node count.
func (g *Graph) NumNodes() int {
	return len(g.nodes)
}

// NumEdges returns the edge count. Parallel edges count individually.
func (g *Graph) NumEdges() int {
	return g.numEdges
}
