package handlers

import (
	"net/http"
)

func (h *Handler) HandleCache(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		h.writeJSON(w, map[string]any{
			"size": h.pipeline.Analyzer.CacheSize(r.Context()),
		})
	case "DELETE":
		if err := h.pipeline.Analyzer.ClearCache(r.Context()); err != nil {
			h.writeError(w, "Failed to clear cache: "+err.Error(), http.StatusInternalServerError)
			return
		}
		h.writeJSON(w, map[string]any{
			"size": 0,
		})
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleCredentialsReload re-reads provider credentials after an external change
func (h *Handler) HandleCredentialsReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.pipeline.Credentials.Reload(); err != nil {
		h.writeError(w, "Failed to reload credentials: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]any{
		"providers": h.pipeline.ProviderNames(),
	})
}

// HandleProviders lists the caption providers with their rate limit headroom
func (h *Handler) HandleProviders(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.writeJSON(w, map[string]any{
		"providers": h.pipeline.Captions.Status(),
	})
}
