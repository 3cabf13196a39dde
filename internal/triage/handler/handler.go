// Package handler is the HTTP transport of the triage service.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/triage"
	apperrors "github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/logger"
)

// WelcomeMessage is served on GET /.
const WelcomeMessage = "Welcome to the Symptom Checker API! Use the /api/predict endpoint for diagnosis."

// CacheAdmin is the operator view of the prediction cache.
type CacheAdmin interface {
	Stats() (hits, misses int64)
	Invalidate(ctx context.Context) (int64, error)
}

// PredictRequest is the body of a predict call.
type PredictRequest struct {
	Symptoms []string `json:"symptoms"`
}

// PredictResponse is the body of a successful predict call.
type PredictResponse struct {
	Success            bool               `json:"success"`
	Message            string             `json:"message"`
	PossibleConditions []triage.Candidate `json:"possibleConditions"`
	Recognized         []string           `json:"recognized"`
	Unknown            []string           `json:"unknown,omitempty"`
	Agreement          string             `json:"agreement"`
	CacheHit           bool               `json:"cacheHit"`
	Disclaimer         string             `json:"disclaimer"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Handler serves prediction and catalog endpoints.
type Handler struct {
	engine       *triage.Engine
	cache        CacheAdmin
	maxBodyBytes int64
	logger       *slog.Logger
}

// New creates a Handler. cache may be nil when caching is disabled.
func New(engine *triage.Engine, cache CacheAdmin, maxBodyBytes int64) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 1 << 20
	}
	return &Handler{
		engine:       engine,
		cache:        cache,
		maxBodyBytes: maxBodyBytes,
		logger:       slog.Default().With("component", "triage-handler"),
	}
}

// Register mounts the handler's routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Welcome)
	mux.HandleFunc("POST /api/predict", h.Predict)
	mux.HandleFunc("POST /api/v1/predict", h.Predict)
	mux.HandleFunc("GET /api/v1/symptoms", h.Symptoms)
	mux.HandleFunc("GET /api/v1/diseases", h.Diseases)
	mux.HandleFunc("GET /api/v1/models", h.Models)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// Welcome serves the plain-text greeting.
func (h *Handler) Welcome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, WelcomeMessage)
}

// Predict diagnoses the symptoms in the request body. The engine logs the
// outcome of Diagnose; only body decoding failures are logged here.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodePredict(w, r)
	if err != nil {
		logger.FromContext(r.Context()).Warn("invalid predict body", "error", err)
		h.writeAppError(w, err)
		return
	}

	d, err := h.engine.Diagnose(r.Context(), req.Symptoms)
	if err != nil {
		h.writeAppError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, PredictResponse{
		Success:            true,
		Message:            "Diagnosis completed",
		PossibleConditions: d.Candidates,
		Recognized:         d.Recognized,
		Unknown:            d.Unknown,
		Agreement:          string(d.Agreement),
		CacheHit:           d.CacheHit,
		Disclaimer:         d.Disclaimer,
	})
}

func (h *Handler) decodePredict(w http.ResponseWriter, r *http.Request) (PredictRequest, error) {
	var req PredictRequest
	body := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusRequestEntityTooLarge,
				"request body too large (limit %d bytes)", tooLarge.Limit)
		}
		return req, fmt.Errorf("%w: %v", apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid JSON body"), err)
	}
	return req, nil
}

// Symptoms lists the vocabulary in layout order.
func (h *Handler) Symptoms(w http.ResponseWriter, r *http.Request) {
	names := h.engine.Vocabulary().Names()
	h.writeJSON(w, http.StatusOK, map[string]any{"count": len(names), "symptoms": names})
}

// Diseases lists the taxonomy in index order.
func (h *Handler) Diseases(w http.ResponseWriter, r *http.Request) {
	names := h.engine.Taxonomy().Names()
	h.writeJSON(w, http.StatusOK, map[string]any{"count": len(names), "diseases": names})
}

// Models reports held-out accuracy and the corpus cleaning summary.
func (h *Handler) Models(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.Info())
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Success: false, Error: message})
}

// writeAppError maps err onto its status and client-safe message.
func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	h.writeError(w, apperrors.HTTPStatusCode(err), apperrors.PublicMessage(err))
}
