package graph

import (
	"errors"

	"github.com/paulmach/orb"

	"gobike/internal/geo"
)

// ErrEmptyGraph is returned when a nearest-node lookup runs against a
// graph with no nodes.
var ErrEmptyGraph = errors.New("graph has no nodes")

// NearestNode returns the id of the graph node closest to p (GeoJSON
// lon/lat order) along with the great-circle distance in meters. Ties on
// distance resolve to the lowest node id, so repeated lookups against the
// same graph always agree.
func NearestNode(g *Graph, p orb.Point) (int64, float64, error) {
	if g.NumNodes() == 0 {
		return 0, 0, ErrEmptyGraph
	}

	var (
		bestID   int64
		bestDist float64
		found    bool
	)
	for _, id := range g.NodeIDs() {
		n, _ := g.Node(id)
		d := geo.Haversine(p.Lat(), p.Lon(), n.Lat, n.Lon)
		if !found || d < bestDist {
			bestID = id
			bestDist = d
			found = true
		}
	}
	return bestID, bestDist, nil
}
