package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/lehigh-university-libraries/describer/internal/pipeline"
)

// maxBodySize bounds JSON bodies and uploads
const maxBodySize = 16 << 20

type Handler struct {
	pipeline *pipeline.Pipeline
	// runCtx outlives individual requests so background bulk runs continue
	runCtx context.Context
}

func New(ctx context.Context, p *pipeline.Pipeline) *Handler {
	return &Handler{
		pipeline: p,
		runCtx:   ctx,
	}
}

// Routes registers every API endpoint on a new mux
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/scan", h.HandleScan)
	mux.HandleFunc("/api/analyze", h.HandleAnalyze)
	mux.HandleFunc("/api/analyze-all", h.HandleAnalyzeAll)
	mux.HandleFunc("/api/analyze-all/cancel", h.HandleCancel)
	mux.HandleFunc("/api/analyze-all/progress", h.HandleProgress)
	mux.HandleFunc("/api/cache", h.HandleCache)
	mux.HandleFunc("/api/credentials/reload", h.HandleCredentialsReload)
	mux.HandleFunc("/api/providers", h.HandleProviders)
	mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	})
	return mux
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message)
	http.Error(w, message, code)
}

func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
