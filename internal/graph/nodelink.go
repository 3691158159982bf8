package graph

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/paulmach/orb"
)

// LoadNodeLink reads a street network from a node-link JSON document, the
// export format used for OSM-derived multigraphs: a "nodes" array carrying
// id/x/y/street_count and a "links" array carrying source/target/key plus
// raw OSM attributes. Attribute values arrive in whatever shape the export
// produced, so they go through the tolerant parsers; a link that does not
// name two known nodes is a hard error.
func LoadNodeLink(r io.Reader) (*Graph, error) {
	var doc struct {
		Nodes []struct {
			ID          any     `json:"id"`
			X           float64 `json:"x"`
			Y           float64 `json:"y"`
			StreetCount int     `json:"street_count"`
		} `json:"nodes"`
		Links []map[string]any `json:"links"`
	}
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse node-link document: %w", err)
	}

	g := New()
	for _, n := range doc.Nodes {
		id, ok := toInt64(n.ID)
		if !ok {
			return nil, fmt.Errorf("node id %v is not an integer", n.ID)
		}
		g.AddNode(Node{ID: id, Lat: n.Y, Lon: n.X, StreetCount: n.StreetCount})
	}

	for i, link := range doc.Links {
		e, err := edgeFromLink(link)
		if err != nil {
			return nil, fmt.Errorf("link %d: %w", i, err)
		}
		if err := g.AddEdge(e); err != nil {
			return nil, fmt.Errorf("link %d: %w", i, err)
		}
	}
	return g, nil
}

func edgeFromLink(link map[string]any) (Edge, error) {
	source, ok := toInt64(link["source"])
	if !ok {
		return Edge{}, fmt.Errorf("missing or invalid source")
	}
	target, ok := toInt64(link["target"])
	if !ok {
		return Edge{}, fmt.Errorf("missing or invalid target")
	}
	key, _ := toInt64(link["key"])

	// Ways merged during simplification carry a list of OSM ids; keep the first.
	rawOSMID := link["osmid"]
	if list, ok := rawOSMID.([]any); ok && len(list) > 0 {
		rawOSMID = list[0]
	}
	osmid, _ := toInt64(rawOSMID)

	length, _ := toFloat(link["length"])
	width := ParseWidth(link["width"])
	if width == nil {
		width = ParseWidth(link["est_width"])
	}

	_, tunnel := link["tunnel"]
	_, bridge := link["bridge"]

	return Edge{
		From:      source,
		To:        target,
		Key:       int(key),
		OSMID:     osmid,
		Geometry:  lineStringFromLink(link["geometry"]),
		Highway:   firstString(link["highway"]),
		Name:      firstString(link["name"]),
		Length:    length,
		Width:     width,
		MaxSpeeds: ParseMaxSpeeds(link["maxspeed"]),
		Lanes:     ParseLanes(link["lanes"]),
		Oneway:    toBool(link["oneway"]),
		Tunnel:    tunnel,
		Bridge:    bridge,
	}, nil
}

// lineStringFromLink decodes an optional geometry attribute shaped as a
// list of [lon, lat] pairs. Anything else is treated as absent.
func lineStringFromLink(v any) orb.LineString {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	var ls orb.LineString
	for _, rawPt := range raw {
		pt, ok := rawPt.([]any)
		if !ok || len(pt) != 2 {
			return nil
		}
		x, okX := toFloat(pt[0])
		y, okY := toFloat(pt[1])
		if !okX || !okY {
			return nil
		}
		ls = append(ls, orb.Point{x, y})
	}
	if len(ls) < 2 {
		return nil
	}
	return ls
}

// firstString unwraps string attributes that may arrive as a single value
// or as a list of values.
func firstString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []any:
		if len(s) > 0 {
			return firstString(s[0])
		}
	}
	return ""
}
