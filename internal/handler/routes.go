package handler

import (
	"errors"
	"net/http"
	"strconv"

	"gobike/internal/storage"
)

type routeView struct {
	TripID         string  `json:"trip_id"`
	OriginNode     int64   `json:"origin_node"`
	DestNode       int64   `json:"dest_node"`
	Strategy       string  `json:"strategy"`
	TripMinutes    float64 `json:"trip_minutes"`
	BikeID         int64   `json:"bike_id"`
	DatetimeUnlock string  `json:"datetime_unlock,omitempty"`
	CreatedAt      string  `json:"created_at,omitempty"`
}

// minutesFilter reads an optional float query parameter.
func minutesFilter(r *http.Request, name string) (*float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, errors.New(name + " must be a number")
	}
	return &v, nil
}

// Routes serves a page of a network's ingested routes. Optional filters:
// routing strategy and a trip duration range in minutes.
func (h *Handler) Routes(w http.ResponseWriter, r *http.Request) {
	id, err := networkID(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	minMinutes, err := minutesFilter(r, "min_minutes")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	maxMinutes, err := minutesFilter(r, "max_minutes")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	strategy := r.URL.Query().Get("strategy")

	if _, err := h.db.NetworkByID(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNetworkNotFound) {
			h.writeError(w, http.StatusNotFound, "network not found")
			return
		}
		h.internalError(w, "fetching network", err)
		return
	}

	page, perPage := pagination(r)
	routes, total, err := h.db.RoutesPage(r.Context(), id, strategy, minMinutes, maxMinutes, perPage, (page-1)*perPage)
	if err != nil {
		h.internalError(w, "querying routes", err)
		return
	}

	views := make([]routeView, 0, len(routes))
	for _, rt := range routes {
		views = append(views, routeView{
			TripID:         rt.TripID,
			OriginNode:     rt.OriginNode,
			DestNode:       rt.DestNode,
			Strategy:       rt.Strategy,
			TripMinutes:    rt.TripMinutes,
			BikeID:         rt.BikeID,
			DatetimeUnlock: rt.DatetimeUnlock,
			CreatedAt:      rt.CreatedAt,
		})
	}
	h.writeJSON(w, http.StatusOK, listResponse{Data: views, Meta: meta(page, perPage, total)})
}
