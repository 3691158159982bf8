package handler

import (
	"errors"
	"net/http"
	"sort"
	"strconv"

	"gobike/internal/geo"
	"gobike/internal/storage"
)

type nodeView struct {
	ID          int64   `json:"id"`
	OSMID       int64   `json:"osmid"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	StreetCount int     `json:"street_count"`
}

type nearestNodeView struct {
	nodeView
	DistanceM float64 `json:"distance_m"`
}

func newNodeView(n storage.NodeRecord) nodeView {
	return nodeView{
		ID:          n.ID,
		OSMID:       n.OSMID,
		Lat:         n.Lat,
		Lon:         n.Lon,
		StreetCount: n.StreetCount,
	}
}

// Nodes serves a page of a network's nodes, optionally restricted to a
// bounding box.
func (h *Handler) Nodes(w http.ResponseWriter, r *http.Request) {
	id, err := networkID(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bbox, err := parseBBox(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.db.NetworkByID(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNetworkNotFound) {
			h.writeError(w, http.StatusNotFound, "network not found")
			return
		}
		h.internalError(w, "fetching network", err)
		return
	}

	page, perPage := pagination(r)
	nodes, total, err := h.db.NodesPage(r.Context(), id, bbox, perPage, (page-1)*perPage)
	if err != nil {
		h.internalError(w, "querying nodes", err)
		return
	}

	views := make([]nodeView, 0, len(nodes))
	for _, n := range nodes {
		views = append(views, newNodeView(n))
	}
	h.writeJSON(w, http.StatusOK, listResponse{Data: views, Meta: meta(page, perPage, total)})
}

// NearestNodes serves the nodes closest to a coordinate, nearest first.
// The spatial index narrows candidates to a bounding box around the
// point; true distances are then computed for ordering and the radius
// cut, since box corners lie further out than the radius.
func (h *Handler) NearestNodes(w http.ResponseWriter, r *http.Request) {
	id, err := networkID(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	lat, err1 := strconv.ParseFloat(q.Get("lat"), 64)
	lon, err2 := strconv.ParseFloat(q.Get("lon"), 64)
	if err1 != nil || err2 != nil {
		h.writeError(w, http.StatusBadRequest, "lat and lon are required")
		return
	}

	radius, _ := strconv.ParseFloat(q.Get("radius"), 64)
	if radius <= 0 {
		radius = 500
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	if _, err := h.db.NetworkByID(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNetworkNotFound) {
			h.writeError(w, http.StatusNotFound, "network not found")
			return
		}
		h.internalError(w, "fetching network", err)
		return
	}

	latDeg, lonDeg := geo.BoundingBoxRadius(lat, radius)
	candidates, err := h.db.NearbyNodes(r.Context(), id, lat, lon, latDeg, lonDeg, limit*3)
	if err != nil {
		h.internalError(w, "querying nearby nodes", err)
		return
	}

	views := make([]nearestNodeView, 0, len(candidates))
	for _, n := range candidates {
		d := geo.Haversine(lat, lon, n.Lat, n.Lon)
		if d > radius {
			continue
		}
		views = append(views, nearestNodeView{nodeView: newNodeView(n), DistanceM: d})
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].DistanceM != views[j].DistanceM {
			return views[i].DistanceM < views[j].DistanceM
		}
		return views[i].ID < views[j].ID
	})
	if len(views) > limit {
		views = views[:limit]
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"data": views})
}
