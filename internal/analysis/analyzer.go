package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/describer/internal/cache"
	"github.com/lehigh-university-libraries/describer/internal/caption"
	"github.com/lehigh-university-libraries/describer/internal/discovery"
	"github.com/lehigh-university-libraries/describer/internal/materialize"
	"github.com/lehigh-university-libraries/describer/internal/models"
	"github.com/lehigh-university-libraries/describer/internal/ocr"
	"golang.org/x/sync/singleflight"
)

// ErrNotLoaded is recorded for images without usable natural dimensions,
// which usually means the load was blocked cross-origin
var ErrNotLoaded = errors.New("image not loaded or has zero dimensions")

const existingAltConfidence = 0.5

// TextExtractor runs OCR on an image
type TextExtractor interface {
	Extract(ctx context.Context, img models.ImageRecord) (*models.OCRResult, error)
}

// Captioner generates captions
type Captioner interface {
	Available() bool
	Generate(ctx context.Context, img models.ImageRecord, ocr *models.OCRResult) (*models.CaptionResult, error)
}

// Analyzer runs OCR and captioning for one image at a time and caches the
// outcome by image identity
type Analyzer struct {
	extractor TextExtractor
	captioner Captioner
	store     cache.Store
	inflight  singleflight.Group
}

// New creates an analyzer. extractor and captioner may be nil.
func New(extractor TextExtractor, captioner Captioner, store cache.Store) *Analyzer {
	if store == nil {
		store = cache.NewMemory()
	}
	return &Analyzer{
		extractor: extractor,
		captioner: captioner,
		store:     store,
	}
}

// Analyze never fails: stage failures are recorded in the Error field of the
// returned analysis alongside a best-effort caption
func (a *Analyzer) Analyze(ctx context.Context, img models.ImageRecord) models.ImageAnalysis {
	key := cache.Key(img)

	cached, err := a.store.Get(ctx, key)
	if err == nil {
		slog.Debug("Analysis cache hit", "image", img.ID)
		cached.Image = img
		return cached
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		slog.Warn("Analysis cache read failed", "image", img.ID, "error", err)
	}

	// Concurrent requests for the same image share one analysis
	v, _, _ := a.inflight.Do(key, func() (any, error) {
		return a.analyze(ctx, key, img), nil
	})
	result := v.(models.ImageAnalysis)
	result.Image = img
	return result
}

func (a *Analyzer) analyze(ctx context.Context, key string, img models.ImageRecord) models.ImageAnalysis {
	start := time.Now()
	result := models.ImageAnalysis{Image: img}
	corsLimited := !materialize.New(img.Origin).SameOrigin(img.Src)

	if !img.Loaded() {
		slog.Warn("Skipping analysis of unloaded image", "image", img.ID, "src", img.Src)
		result.Caption = basicCaption(img, corsLimited)
		result.Error = ErrNotLoaded.Error()
		result.ProcessingTime = time.Since(start)
		return result
	}

	var stageErrors []string

	if a.extractor != nil {
		ocrResult, err := a.extractor.Extract(ctx, img)
		if err != nil {
			stageErrors = append(stageErrors, fmt.Sprintf("ocr: %v", err))
		}
		result.OCR = ocrResult
	}

	if a.captioner != nil && a.captioner.Available() {
		captionResult, err := a.captioner.Generate(ctx, img, result.OCR)
		if err != nil {
			stageErrors = append(stageErrors, fmt.Sprintf("caption: %v", err))
		}
		result.Caption = captionResult
	}

	if result.Caption == nil {
		if result.OCR != nil && result.OCR.HasText {
			result.Caption = caption.Local(result.OCR, corsLimited)
		} else {
			result.Caption = basicCaption(img, corsLimited)
		}
	}

	result.Error = strings.Join(stageErrors, "; ")
	result.ProcessingTime = time.Since(start)

	if result.Error == "" {
		if err := a.store.Set(ctx, key, result); err != nil {
			slog.Warn("Analysis cache write failed", "image", img.ID, "error", err)
		}
	}

	slog.Info("Analyzed image",
		"image", img.ID,
		"provenance", result.Caption.Provenance,
		"confidence", result.Caption.Confidence,
		"duration", result.ProcessingTime,
		"error", result.Error)
	return result
}

// ClearCache drops every cached analysis
func (a *Analyzer) ClearCache(ctx context.Context) error {
	return a.store.Clear(ctx)
}

// CacheSize returns the number of cached analyses, or zero if the store
// cannot be read
func (a *Analyzer) CacheSize(ctx context.Context) int {
	n, err := a.store.Len(ctx)
	if err != nil {
		slog.Warn("Unable to read cache size", "error", err)
		return 0
	}
	return n
}

// basicCaption describes an image from its locator, alt text, and shape.
// Meaningful existing alt text is preferred. Cross-origin images carry the
// CORS notice and never exceed the CORS-limited confidence.
func basicCaption(img models.ImageRecord, corsLimited bool) *models.CaptionResult {
	if img.HasAlt && !discovery.NeedsDescription(img.Alt, img.HasAlt) {
		alt := strings.TrimSpace(img.Alt)
		result := &models.CaptionResult{
			ShortCaption:    caption.Truncate(alt, caption.ShortCaptionLimit),
			LongDescription: alt,
			Confidence:      existingAltConfidence,
			Model:           caption.LocalModel,
			Provenance:      models.ProvenanceLocal,
		}
		if corsLimited {
			result.LongDescription += " " + caption.CORSNotice
			result.Confidence = min(result.Confidence, caption.CORSLimitedConfidence)
			result.CORSLimited = true
		}
		return result
	}

	imageType := ocr.ClassifyImageType(img.Src, img.Alt, "", 0)
	result := caption.Local(&models.OCRResult{ImageType: imageType}, corsLimited)
	if shape := describeShape(img.NaturalWidth, img.NaturalHeight); shape != "" {
		result.LongDescription = fmt.Sprintf("%s It is %s.", result.LongDescription, shape)
	}
	return result
}

func describeShape(width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	ratio := float64(width) / float64(height)
	switch {
	case ratio >= 2.5:
		return "a wide banner-shaped image"
	case ratio > 1.2:
		return "in landscape orientation"
	case ratio >= 0.8:
		return "roughly square"
	case ratio > 0.4:
		return "in portrait orientation"
	default:
		return "a tall, narrow image"
	}
}
