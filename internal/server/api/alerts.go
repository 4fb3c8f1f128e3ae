// Package api provides HTTP API handlers for the riskcam monitor.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/riskcam/internal/store"
)

// AlertHandler serves the alert journal.
type AlertHandler struct {
	store *store.Store
}

// NewAlertHandler creates a new AlertHandler with the given store.
func NewAlertHandler(s *store.Store) *AlertHandler {
	return &AlertHandler{store: s}
}

// ServeHTTP routes requests.
// Paths: /api/alerts, /api/alerts/{id}, /api/alerts/{id}/image
func (h *AlertHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/alerts")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	if id, ok := strings.CutSuffix(path, "/image"); ok {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.image(w, id)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, path)
	case http.MethodDelete:
		h.delete(w, path)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type listAlertsResponse struct {
	Alerts []*store.Alert `json:"alerts"`
	Total  int            `json:"total"`
}

type alertResponse struct {
	*store.Alert
	Saves []*store.Save `json:"saves"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// list handles GET /api/alerts?limit=N and returns the newest alerts.
func (h *AlertHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	alerts, err := h.store.Alerts().Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list alerts")
		return
	}
	total, err := h.store.Alerts().Count()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count alerts")
		return
	}

	writeJSON(w, http.StatusOK, listAlertsResponse{Alerts: alerts, Total: total})
}

// get handles GET /api/alerts/{id}.
func (h *AlertHandler) get(w http.ResponseWriter, id string) {
	a, err := h.store.Alerts().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Alert not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get alert")
		return
	}

	saves, err := h.store.Saves().ListByAlert(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list gallery saves")
		return
	}
	if saves == nil {
		saves = []*store.Save{}
	}

	writeJSON(w, http.StatusOK, alertResponse{Alert: a, Saves: saves})
}

// image handles GET /api/alerts/{id}/image and returns the stored JPEG.
func (h *AlertHandler) image(w http.ResponseWriter, id string) {
	a, err := h.store.Alerts().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Alert not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get alert")
		return
	}
	if !a.HasImage {
		writeError(w, http.StatusNotFound, "Alert has no image")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(a.Image)))
	w.WriteHeader(http.StatusOK)
	w.Write(a.Image)
}

// delete handles DELETE /api/alerts/{id}.
func (h *AlertHandler) delete(w http.ResponseWriter, id string) {
	if err := h.store.Alerts().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Alert not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete alert")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
