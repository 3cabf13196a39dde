package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/analytics"
)

const maxSnapshotLimit = 500

// Reader is the read side of Store.
type Reader interface {
	LatestSnapshot(ctx context.Context) (*analytics.Stats, error)
	ListSnapshots(ctx context.Context, limit int) ([]analytics.Stats, error)
}

// Handler serves persisted snapshots.
type Handler struct {
	reader Reader
	logger *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(reader Reader) *Handler {
	return &Handler{
		reader: reader,
		logger: slog.Default().With("component", "snapshot-handler"),
	}
}

// Latest handles GET /api/v1/analytics/snapshots/latest.
func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reader.LatestSnapshot(r.Context())
	if err != nil {
		h.logger.Error("loading latest snapshot failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "snapshot lookup failed"})
		return
	}
	if stats == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "no snapshots yet"})
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// List handles GET /api/v1/analytics/snapshots?limit=n (default 20).
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "limit must be a positive integer"})
			return
		}
		limit = min(parsed, maxSnapshotLimit)
	}
	snapshots, err := h.reader.ListSnapshots(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing snapshots failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "snapshot lookup failed"})
		return
	}
	if snapshots == nil {
		snapshots = []analytics.Stats{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"count": len(snapshots), "snapshots": snapshots})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}
