package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/lehigh-university-libraries/describer/internal/discovery"
	"github.com/lehigh-university-libraries/describer/internal/fetch"
	"github.com/lehigh-university-libraries/describer/internal/models"
)

// HandleAnalyze analyzes one image, given either as a JSON ImageRecord or as
// a multipart file upload
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var img models.ImageRecord
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		var err error
		img, err = h.recordFromUpload(w, r)
		if err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
	} else if !h.decodeJSON(w, r, &img) {
		return
	}

	if img.Src == "" {
		h.writeError(w, "src is required", http.StatusBadRequest)
		return
	}

	h.prepareRecord(r, &img)
	h.writeJSON(w, h.pipeline.Analyzer.Analyze(r.Context(), img))
}

// prepareRecord fills in what a caller outside a page cannot know
func (h *Handler) prepareRecord(r *http.Request, img *models.ImageRecord) {
	if img.ID == "" {
		img.ID = filepath.Base(img.Src)
		if strings.HasPrefix(img.Src, "data:") {
			img.ID = "upload"
		}
	}

	// Without a page, an image is treated as served from its own origin
	if img.Origin == "" {
		if u, err := url.Parse(img.Src); err == nil && u.Host != "" {
			img.Origin = u.Scheme + "://" + u.Host
		}
	}

	if !img.Loaded() {
		width, height, err := h.pipeline.Fetcher.ProbeSize(r.Context(), img.Src)
		if err != nil {
			slog.Warn("Unable to load image dimensions", "src", img.Src, "error", err)
		} else {
			img.NaturalWidth, img.NaturalHeight = width, height
		}
	}

	img.NeedsDescription = discovery.NeedsDescription(img.Alt, img.HasAlt)
}

func (h *Handler) recordFromUpload(w http.ResponseWriter, r *http.Request) (models.ImageRecord, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := r.ParseMultipartForm(maxBodySize); err != nil {
		return models.ImageRecord{}, fmt.Errorf("failed to parse form: %w", err)
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		return models.ImageRecord{}, fmt.Errorf("no image file provided: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return models.ImageRecord{}, fmt.Errorf("failed to read file: %w", err)
	}

	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return models.ImageRecord{}, fmt.Errorf("unsupported file type: %s", mimeType)
	}

	alt, hasAlt := r.FormValue("alt"), r.Form.Has("alt")
	return models.ImageRecord{
		ID:     header.Filename,
		Src:    fetch.EncodeDataURL(mimeType, data),
		Alt:    alt,
		HasAlt: hasAlt,
	}, nil
}
