package handlers

import (
	"errors"
	"net/http"

	"github.com/lehigh-university-libraries/describer/internal/bulk"
	"github.com/lehigh-university-libraries/describer/internal/discovery"
	"github.com/lehigh-university-libraries/describer/internal/models"
)

type analyzeAllRequest struct {
	pageRequest
	Images []models.ImageRecord `json:"images"`
	// All includes images whose alt text is already meaningful
	All bool `json:"all"`
}

// HandleAnalyzeAll starts a background bulk run over the given images or
// over the images of a page
func (h *Handler) HandleAnalyzeAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.pipeline.Bulk.Running() {
		h.writeError(w, bulk.ErrAlreadyRunning.Error(), http.StatusConflict)
		return
	}

	var req analyzeAllRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	images := req.Images
	if len(images) == 0 {
		page, err := h.loadPage(r.Context(), req.pageRequest)
		if err != nil {
			h.writeError(w, "Failed to load page: "+err.Error(), http.StatusBadRequest)
			return
		}
		images = discovery.NewScanner(page).ScanPage()
	} else {
		for i := range images {
			h.prepareRecord(r, &images[i])
		}
	}

	if !req.All {
		images = needingDescription(images)
	}

	runID, err := h.pipeline.Bulk.Start(h.runCtx, images, nil)
	if errors.Is(err, bulk.ErrAlreadyRunning) {
		h.writeError(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		h.writeError(w, "Failed to start analysis: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSONStatus(w, http.StatusAccepted, map[string]any{
		"run_id": runID,
		"total":  len(images),
	})
}

func (h *Handler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.writeJSON(w, map[string]any{
		"run_id":   h.pipeline.Bulk.RunID(),
		"running":  h.pipeline.Bulk.Running(),
		"progress": h.pipeline.Bulk.Progress(),
	})
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	running := h.pipeline.Bulk.Running()
	h.pipeline.Bulk.Cancel()
	h.writeJSON(w, map[string]any{
		"cancelled": running,
	})
}

func needingDescription(images []models.ImageRecord) []models.ImageRecord {
	out := make([]models.ImageRecord, 0, len(images))
	for _, img := range images {
		if img.NeedsDescription {
			out = append(out, img)
		}
	}
	return out
}
