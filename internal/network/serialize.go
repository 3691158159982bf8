package network

import (
	"github.com/paulmach/orb/encoding/wkt"

	"gobike/internal/graph"
	"gobike/internal/storage"
)

// Serialize flattens a street graph into node and edge records, with
// geometries rendered as WKT. Records come out in the graph's canonical
// order, nodes by id and edges by (u, v, k).
func Serialize(g *graph.Graph, networkID int64) ([]storage.NodeRecord, []storage.EdgeRecord) {
	nodes := make([]storage.NodeRecord, 0, g.NumNodes())
	for _, id := range g.NodeIDs() {
		n, _ := g.Node(id)
		nodes = append(nodes, storage.NodeRecord{
			NetworkID:   networkID,
			ID:          n.ID,
			OSMID:       n.ID,
			Lat:         n.Lat,
			Lon:         n.Lon,
			GeomWKT:     wkt.MarshalString(n.Point()),
			StreetCount: n.StreetCount,
		})
	}

	edges := make([]storage.EdgeRecord, 0, g.NumEdges())
	for _, e := range g.Edges() {
		edges = append(edges, storage.EdgeRecord{
			NetworkID: networkID,
			OSMID:     e.OSMID,
			U:         e.From,
			V:         e.To,
			K:         e.Key,
			GeomWKT:   wkt.MarshalString(e.Geometry),
			Highway:   e.Highway,
			Name:      e.Name,
			Length:    e.Length,
			Width:     e.Width,
			MaxSpeeds: e.MaxSpeeds,
			Lanes:     e.Lanes,
			Oneway:    e.Oneway,
			Tunnel:    e.Tunnel,
			Bridge:    e.Bridge,
		})
	}
	return nodes, edges
}
