package handler

import (
	"errors"
	"net/http"

	"gobike/internal/storage"
)

type edgeView struct {
	U         int64    `json:"u"`
	V         int64    `json:"v"`
	Key       int      `json:"key"`
	OSMID     int64    `json:"osmid"`
	Highway   string   `json:"highway,omitempty"`
	Name      string   `json:"name,omitempty"`
	LengthM   float64  `json:"length_m"`
	WidthM    *float64 `json:"width_m,omitempty"`
	MaxSpeeds []int    `json:"maxspeed_kmh,omitempty"`
	Lanes     []int    `json:"lanes,omitempty"`
	Oneway    bool     `json:"oneway"`
	Tunnel    bool     `json:"tunnel"`
	Bridge    bool     `json:"bridge"`
	Geometry  string   `json:"geometry"`
}

// Edges serves a page of a network's edges. Optional filters: highway
// class and a bounding box on the edge origin node.
func (h *Handler) Edges(w http.ResponseWriter, r *http.Request) {
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
	highway := r.URL.Query().Get("highway")

	if _, err := h.db.NetworkByID(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNetworkNotFound) {
			h.writeError(w, http.StatusNotFound, "network not found")
			return
		}
		h.internalError(w, "fetching network", err)
		return
	}

	page, perPage := pagination(r)
	edges, total, err := h.db.EdgesPage(r.Context(), id, highway, bbox, perPage, (page-1)*perPage)
	if err != nil {
		h.internalError(w, "querying edges", err)
		return
	}

	views := make([]edgeView, 0, len(edges))
	for _, e := range edges {
		views = append(views, edgeView{
			U:         e.U,
			V:         e.V,
			Key:       e.K,
			OSMID:     e.OSMID,
			Highway:   e.Highway,
			Name:      e.Name,
			LengthM:   e.Length,
			WidthM:    e.Width,
			MaxSpeeds: e.MaxSpeeds,
			Lanes:     e.Lanes,
			Oneway:    e.Oneway,
			Tunnel:    e.Tunnel,
			Bridge:    e.Bridge,
			Geometry:  e.GeomWKT,
		})
	}
	h.writeJSON(w, http.StatusOK, listResponse{Data: views, Meta: meta(page, perPage, total)})
}
