package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/lehigh-university-libraries/describer/internal/discovery"
	"github.com/lehigh-university-libraries/describer/internal/models"
)

// pageRequest identifies a page by address or by inline markup
type pageRequest struct {
	URL     string `json:"url"`
	HTML    string `json:"html"`
	BaseURL string `json:"base_url"`
}

func (h *Handler) loadPage(ctx context.Context, req pageRequest) (*discovery.HTMLPage, error) {
	switch {
	case req.HTML != "":
		return h.pipeline.ParsePage(ctx, []byte(req.HTML), req.BaseURL)
	case req.URL != "":
		return h.pipeline.OpenPage(ctx, req.URL, req.BaseURL)
	default:
		return nil, errors.New("url or html is required")
	}
}

func (h *Handler) HandleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req pageRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	page, err := h.loadPage(r.Context(), req)
	if err != nil {
		h.writeError(w, "Failed to load page: "+err.Error(), http.StatusBadRequest)
		return
	}

	images := discovery.NewScanner(page).ScanPage()
	if images == nil {
		images = []models.ImageRecord{}
	}

	h.writeJSON(w, map[string]any{
		"origin": page.Origin(),
		"count":  len(images),
		"images": images,
	})
}
