// Package handler serves the read-only JSON API over stored street
// networks and ingested routes.
package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"gobike/internal/storage"
)

// Handler holds shared dependencies for all HTTP handlers.
type Handler struct {
	db     *storage.DB
	logger *slog.Logger
}

// New creates a Handler.
func New(db *storage.DB, logger *slog.Logger) *Handler {
	return &Handler{db: db, logger: logger}
}

const (
	defaultPerPage = 100
	maxPerPage     = 1000
)

// listResponse is the envelope for every paginated collection.
type listResponse struct {
	Data any      `json:"data"`
	Meta pageMeta `json:"meta"`
}

type pageMeta struct {
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
	Total   int64 `json:"total"`
	Pages   int64 `json:"pages"`
}

type apiError struct {
	Error string `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encoding response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, apiError{Error: msg})
}

// internalError logs the cause and hides it from the client.
func (h *Handler) internalError(w http.ResponseWriter, what string, err error) {
	h.logger.Error(what, "error", err)
	h.writeError(w, http.StatusInternalServerError, "internal error")
}

// networkID reads the {id} path segment.
func networkID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid network id %q", r.PathValue("id"))
	}
	return id, nil
}

// pagination reads page and per_page query parameters. Out-of-range
// values fall back to the defaults rather than erroring.
func pagination(r *http.Request) (page, perPage int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

func meta(page, perPage int, total int64) pageMeta {
	pages := (total + int64(perPage) - 1) / int64(perPage)
	if pages < 1 {
		pages = 1
	}
	return pageMeta{Page: page, PerPage: perPage, Total: total, Pages: pages}
}

// parseBBox reads an optional bbox query parameter in the GeoJSON order
// min_lon,min_lat,max_lon,max_lat. Returns nil when absent.
func parseBBox(r *http.Request) (*storage.Bounds, error) {
	raw := r.URL.Query().Get("bbox")
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox wants min_lon,min_lat,max_lon,max_lat, got %q", raw)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bbox wants min_lon,min_lat,max_lon,max_lat, got %q", raw)
		}
		vals[i] = v
	}
	b := &storage.Bounds{MinLon: vals[0], MinLat: vals[1], MaxLon: vals[2], MaxLat: vals[3]}
	if b.MinLon > b.MaxLon || b.MinLat > b.MaxLat {
		return nil, fmt.Errorf("bbox is inverted: %q", raw)
	}
	return b, nil
}
