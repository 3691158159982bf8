package network

import (
	"context"
	"fmt"

	"github.com/paulmach/orb/encoding/wkt"

	"gobike/internal/graph"
	"gobike/internal/storage"
)

// Reconstruct rebuilds the in-memory street graph of a network from its
// stored nodes and edges. It fails when the network has no nodes, since
// routing against an empty graph would silently match nothing.
func Reconstruct(ctx context.Context, db *storage.DB, networkID int64) (*graph.Graph, error) {
	nodes, err := db.GetNodes(ctx, networkID)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("network %d has no stored nodes", networkID)
	}

	g := graph.New()
	for _, n := range nodes {
		g.AddNode(graph.Node{ID: n.ID, Lat: n.Lat, Lon: n.Lon, StreetCount: n.StreetCount})
	}

	edges, err := db.GetEdges(ctx, networkID)
	if err != nil {
		return nil, err
	}
	for _, e := range edges {
		edge := graph.Edge{
			From:      e.U,
			To:        e.V,
			Key:       e.K,
			OSMID:     e.OSMID,
			Highway:   e.Highway,
			Name:      e.Name,
			Length:    e.Length,
			Width:     e.Width,
			MaxSpeeds: e.MaxSpeeds,
			Lanes:     e.Lanes,
			Oneway:    e.Oneway,
			Tunnel:    e.Tunnel,
			Bridge:    e.Bridge,
		}
		if e.GeomWKT != "" {
			ls, err := wkt.UnmarshalLineString(e.GeomWKT)
			if err != nil {
				return nil, fmt.Errorf("edge %d->%d/%d geometry: %w", e.U, e.V, e.K, err)
			}
			edge.Geometry = ls
		}
		if err := g.AddEdge(edge); err != nil {
			return nil, fmt.Errorf("rebuild network %d: %w", networkID, err)
		}
	}
	return g, nil
}
