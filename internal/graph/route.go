package graph

import (
	"container/heap"
	"errors"
	"fmt"
)

// ErrNoPath reports that no directed path connects two nodes. Callers
// check for it with errors.Is and treat the trip as skipped data, not as
// a failure of the run.
var ErrNoPath = errors.New("no path between nodes")

// ErrUnknownStrategy reports a strategy name with no registered
// implementation.
var ErrUnknownStrategy = errors.New("unknown route strategy")

// Strategy computes a route between two graph nodes as an ordered list of
// node ids, origin and destination included.
type Strategy interface {
	Name() string
	Route(g *Graph, from, to int64) ([]int64, error)
}

// StrategyByName resolves a strategy name against the fixed set of
// implementations. Unknown names fail here, before any trip is read.
func StrategyByName(name string) (Strategy, error) {
	switch name {
	case "shortest":
		return ShortestPath{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// ShortestPath routes over cumulative edge length using Dijkstra's
// algorithm. The frontier orders ties by node id and predecessors update
// only on strict improvement, so equal-length alternatives always resolve
// the same way.
type ShortestPath struct{}

// Name returns the registry name of the strategy.
func (ShortestPath) Name() string { return "shortest" }

// Route returns the minimum-length node sequence from one node to
// another. Edges without a usable length weigh one meter.
func (ShortestPath) Route(g *Graph, from, to int64) ([]int64, error) {
	if _, ok := g.Node(from); !ok {
		return nil, fmt.Errorf("route: unknown node %d", from)
	}
	if _, ok := g.Node(to); !ok {
		return nil, fmt.Errorf("route: unknown node %d", to)
	}

	dist := map[int64]float64{from: 0}
	cameFrom := make(map[int64]int64)
	closed := make(map[int64]bool)

	pq := &priorityQueue{}
	heap.Init(pq)
	heap.Push(pq, &pqItem{node: from, dist: 0})

	for pq.Len() > 0 {
		item := heap.Pop(pq).(*pqItem)
		current := item.node
		if current == to {
			return reconstructPath(cameFrom, current), nil
		}
		if closed[current] {
			continue
		}
		closed[current] = true

		for _, e := range g.EdgesFrom(current) {
			w := e.Length
			if w <= 0 {
				w = 1
			}
			tentative := dist[current] + w
			if old, ok := dist[e.To]; !ok || tentative < old {
				cameFrom[e.To] = current
				dist[e.To] = tentative
				heap.Push(pq, &pqItem{node: e.To, dist: tentative})
			}
		}
	}

	return nil, fmt.Errorf("route %d->%d: %w", from, to, ErrNoPath)
}

func reconstructPath(cameFrom map[int64]int64, current int64) []int64 {
	var path []int64
	for {
		path = append([]int64{current}, path...)
		prev, ok := cameFrom[current]
		if !ok {
			break
		}
		current = prev
	}
	return path
}

type pqItem struct {
	node int64
	dist float64
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].dist != pq[j].dist {
		return pq[i].dist < pq[j].dist
	}
	return pq[i].node < pq[j].node
}

func (pq priorityQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }

func (pq *priorityQueue) Push(x any) {
	item := x.(*pqItem)
	*pq = append(*pq, item)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[0 : n-1]
	return item
}
