package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

const maxTopN = 100

// Handler serves aggregated prediction statistics.
type Handler struct {
	aggregator *Aggregator
	logger     *slog.Logger
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{
		aggregator: aggregator,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

// Stats handles GET /api/v1/analytics. The optional "top" query parameter
// (1 to 100) sets how many diseases and unknown symptoms are ranked.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	top := DefaultTopN
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"success": false,
				"error":   "top must be a positive integer",
			})
			return
		}
		top = min(n, maxTopN)
	}
	h.writeJSON(w, http.StatusOK, h.aggregator.StatsTop(top))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
