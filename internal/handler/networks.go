package handler

import (
	"context"
	"errors"
	"net/http"

	"gobike/internal/storage"
)

type networkView struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	CenterLat float64 `json:"center_lat"`
	CenterLon float64 `json:"center_lon"`
	RadiusM   float64 `json:"radius_m"`
	Nodes     int64   `json:"nodes"`
	Edges     int64   `json:"edges"`
	Routes    int64   `json:"routes"`
	CreatedAt string  `json:"created_at,omitempty"`
}

type boundsView struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

type statsView struct {
	NetworkID int64       `json:"network_id"`
	Network   string      `json:"network"`
	Nodes     int64       `json:"nodes"`
	Edges     int64       `json:"edges"`
	Routes    int64       `json:"routes"`
	Bounds    *boundsView `json:"bounds,omitempty"`
}

func (h *Handler) networkView(ctx context.Context, n storage.Network) (networkView, error) {
	v := networkView{
		ID:        n.ID,
		Name:      n.Name,
		CenterLat: n.CenterLat,
		CenterLon: n.CenterLon,
		RadiusM:   n.Radius,
		CreatedAt: n.CreatedAt,
	}
	var err error
	if v.Nodes, err = h.db.CountNodes(ctx, n.ID); err != nil {
		return v, err
	}
	if v.Edges, err = h.db.CountEdges(ctx, n.ID); err != nil {
		return v, err
	}
	v.Routes, err = h.db.CountRoutes(ctx, n.ID)
	return v, err
}

// Networks lists every stored network with its content counts.
func (h *Handler) Networks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	networks, err := h.db.ListNetworks(ctx)
	if err != nil {
		h.internalError(w, "listing networks", err)
		return
	}

	views := make([]networkView, 0, len(networks))
	for _, n := range networks {
		v, err := h.networkView(ctx, n)
		if err != nil {
			h.internalError(w, "counting network contents", err)
			return
		}
		views = append(views, v)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"data": views})
}

// NetworkDetail serves one network by id.
func (h *Handler) NetworkDetail(w http.ResponseWriter, r *http.Request) {
	id, err := networkID(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	n, err := h.db.NetworkByID(r.Context(), id)
	if errors.Is(err, storage.ErrNetworkNotFound) {
		h.writeError(w, http.StatusNotFound, "network not found")
		return
	}
	if err != nil {
		h.internalError(w, "fetching network", err)
		return
	}

	v, err := h.networkView(r.Context(), n)
	if err != nil {
		h.internalError(w, "counting network contents", err)
		return
	}
	h.writeJSON(w, http.StatusOK, v)
}

// NetworkStats serves counts and the node bounding box for one network.
func (h *Handler) NetworkStats(w http.ResponseWriter, r *http.Request) {
	id, err := networkID(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := h.db.Stats(r.Context(), id)
	if errors.Is(err, storage.ErrNetworkNotFound) {
		h.writeError(w, http.StatusNotFound, "network not found")
		return
	}
	if err != nil {
		h.internalError(w, "computing network stats", err)
		return
	}

	v := statsView{
		NetworkID: stats.NetworkID,
		Network:   stats.NetworkName,
		Nodes:     stats.Nodes,
		Edges:     stats.Edges,
		Routes:    stats.Routes,
	}
	if b := stats.Bounds; b != nil {
		v.Bounds = &boundsView{MinLat: b.MinLat, MaxLat: b.MaxLat, MinLon: b.MinLon, MaxLon: b.MaxLon}
	}
	h.writeJSON(w, http.StatusOK, v)
}
