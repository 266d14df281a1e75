package analysis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/lehigh-university-libraries/describer/internal/cache"
	"github.com/lehigh-university-libraries/describer/internal/caption"
	"github.com/lehigh-university-libraries/describer/internal/models"
)

type fakeExtractor struct {
	result *models.OCRResult
	err    error
	calls  atomic.Int32
}

func (f *fakeExtractor) Extract(ctx context.Context, img models.ImageRecord) (*models.OCRResult, error) {
	f.calls.Add(1)
	return f.result, f.err
}

type fakeCaptioner struct {
	available bool
	result    *models.CaptionResult
	err       error
	calls     atomic.Int32
}

func (f *fakeCaptioner) Available() bool { return f.available }

func (f *fakeCaptioner) Generate(ctx context.Context, img models.ImageRecord, ocr *models.OCRResult) (*models.CaptionResult, error) {
	f.calls.Add(1)
	return f.result, f.err
}

func loadedImage() models.ImageRecord {
	return models.ImageRecord{
		ID:               "hero",
		Src:              "https://example.com/hero.jpg",
		Origin:           "https://example.com",
		NaturalWidth:     1200,
		NaturalHeight:    600,
		NeedsDescription: true,
	}
}

func TestAnalyzeUsesCacheOnSecondCall(t *testing.T) {
	extractor := &fakeExtractor{result: &models.OCRResult{ImageType: models.ImageTypePhoto}}
	captioner := &fakeCaptioner{
		available: true,
		result:    &models.CaptionResult{ShortCaption: "A beach", Provenance: models.ProvenanceProviderA, Confidence: 0.9},
	}
	a := New(extractor, captioner, cache.NewMemory())

	ctx := context.Background()
	first := a.Analyze(ctx, loadedImage())
	second := a.Analyze(ctx, loadedImage())

	if extractor.calls.Load() != 1 {
		t.Errorf("Expected OCR to run once, got %d", extractor.calls.Load())
	}
	if captioner.calls.Load() != 1 {
		t.Errorf("Expected captioning to run once, got %d", captioner.calls.Load())
	}
	if second.ProcessingTime != first.ProcessingTime {
		t.Errorf("Expected cached processing time %s, got %s", first.ProcessingTime, second.ProcessingTime)
	}
	if second.Caption == nil || second.Caption.ShortCaption != "A beach" {
		t.Errorf("Unexpected cached caption %+v", second.Caption)
	}
	if a.CacheSize(ctx) != 1 {
		t.Errorf("Expected cache size 1, got %d", a.CacheSize(ctx))
	}
}

func TestConcurrentAnalyzeSharesWork(t *testing.T) {
	extractor := &fakeExtractor{result: &models.OCRResult{}}
	a := New(extractor, nil, nil)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Analyze(context.Background(), loadedImage())
		}()
	}
	wg.Wait()

	if n := extractor.calls.Load(); n < 1 || n > 8 {
		t.Errorf("Unexpected OCR call count %d", n)
	}
	if a.CacheSize(context.Background()) != 1 {
		t.Errorf("Expected one cached analysis")
	}
}

func TestAnalyzeUnloadedImage(t *testing.T) {
	extractor := &fakeExtractor{}
	a := New(extractor, nil, nil)

	img := loadedImage()
	img.NaturalWidth = 0
	img.NaturalHeight = 0

	result := a.Analyze(context.Background(), img)
	if result.Error != ErrNotLoaded.Error() {
		t.Errorf("Expected not-loaded error, got %q", result.Error)
	}
	if result.Caption == nil {
		t.Error("Expected a best-effort caption")
	}
	if extractor.calls.Load() != 0 {
		t.Error("Expected OCR to be skipped")
	}
	if a.CacheSize(context.Background()) != 0 {
		t.Error("Expected unloaded image not to be cached")
	}
}

func TestAnalyzeToleratesStageFailures(t *testing.T) {
	extractor := &fakeExtractor{result: &models.OCRResult{}, err: errors.New("tesseract unavailable")}
	captioner := &fakeCaptioner{
		available: true,
		result:    &models.CaptionResult{ShortCaption: "Image", Provenance: models.ProvenanceLocal, Confidence: 0.3},
		err:       errors.New("openai failed (network): timeout"),
	}
	a := New(extractor, captioner, nil)

	result := a.Analyze(context.Background(), loadedImage())
	if !strings.Contains(result.Error, "ocr: tesseract unavailable") || !strings.Contains(result.Error, "caption:") {
		t.Errorf("Expected both stage errors, got %q", result.Error)
	}
	if result.Caption == nil || result.Caption.ShortCaption != "Image" {
		t.Errorf("Expected fallback caption, got %+v", result.Caption)
	}
	if a.CacheSize(context.Background()) != 0 {
		t.Error("Expected failed analysis not to be cached")
	}
}

func TestAnalyzeWithoutCaptioning(t *testing.T) {
	tests := []struct {
		name      string
		ocr       *models.OCRResult
		alt       string
		hasAlt    bool
		wantShort string
	}{
		{
			name:      "ocr text is quoted",
			ocr:       &models.OCRResult{Text: "SALE 50% OFF", HasText: true, Confidence: 0.9, ImageType: models.ImageTypePhoto},
			wantShort: `Photograph with text: "SALE 50% OFF"`,
		},
		{
			name:      "meaningful alt is preferred",
			ocr:       &models.OCRResult{},
			alt:       "Golden Gate Bridge at sunset",
			hasAlt:    true,
			wantShort: "Golden Gate Bridge at sunset",
		},
		{
			name:      "generic alt is ignored",
			ocr:       &models.OCRResult{},
			alt:       "image",
			hasAlt:    true,
			wantShort: "Photograph",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			captioner := &fakeCaptioner{available: false}
			a := New(&fakeExtractor{result: tt.ocr}, captioner, nil)

			img := loadedImage()
			img.Alt = tt.alt
			img.HasAlt = tt.hasAlt

			result := a.Analyze(context.Background(), img)
			if captioner.calls.Load() != 0 {
				t.Error("Expected captioner not to be called when unavailable")
			}
			if result.Caption.ShortCaption != tt.wantShort {
				t.Errorf("Expected %q, got %q", tt.wantShort, result.Caption.ShortCaption)
			}
		})
	}
}

func TestBasicCaptionDescribesShape(t *testing.T) {
	img := loadedImage()
	img.NaturalWidth = 1500
	img.NaturalHeight = 300

	result := basicCaption(img, false)
	if !strings.Contains(result.LongDescription, "banner") {
		t.Errorf("Expected banner shape in %q", result.LongDescription)
	}
	if result.Provenance != models.ProvenanceLocal {
		t.Errorf("Expected local provenance, got %s", result.Provenance)
	}
}

func TestDescribeShape(t *testing.T) {
	tests := []struct {
		w, h int
		want string
	}{
		{1500, 300, "a wide banner-shaped image"},
		{800, 600, "in landscape orientation"},
		{500, 500, "roughly square"},
		{600, 800, "in portrait orientation"},
		{100, 800, "a tall, narrow image"},
		{0, 100, ""},
	}

	for _, tt := range tests {
		if got := describeShape(tt.w, tt.h); got != tt.want {
			t.Errorf("describeShape(%d, %d): expected %q, got %q", tt.w, tt.h, tt.want, got)
		}
	}
}

func TestClearCache(t *testing.T) {
	a := New(&fakeExtractor{result: &models.OCRResult{}}, nil, nil)
	ctx := context.Background()

	a.Analyze(ctx, loadedImage())
	if a.CacheSize(ctx) != 1 {
		t.Fatalf("Expected cached analysis")
	}
	if err := a.ClearCache(ctx); err != nil {
		t.Fatalf("ClearCache failed: %v", err)
	}
	if a.CacheSize(ctx) != 0 {
		t.Errorf("Expected empty cache, got %d", a.CacheSize(ctx))
	}
}

func TestAnalyzeCrossOriginWithoutCaptioning(t *testing.T) {
	tests := []struct {
		name   string
		ocr    *models.OCRResult
		alt    string
		hasAlt bool
	}{
		{
			name: "ocr text found",
			ocr:  &models.OCRResult{Text: "Total: $42.50", HasText: true, Confidence: 0.85},
		},
		{
			name: "no text",
			ocr:  &models.OCRResult{},
		},
		{
			name:   "meaningful alt",
			ocr:    &models.OCRResult{},
			alt:    "Store receipt",
			hasAlt: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(&fakeExtractor{result: tt.ocr}, caption.NewService(nil), nil)

			img := loadedImage()
			img.Src = "https://cdn.other.net/receipt.png"
			img.Alt = tt.alt
			img.HasAlt = tt.hasAlt

			result := a.Analyze(context.Background(), img)
			if result.Caption == nil {
				t.Fatal("Expected a caption")
			}
			if result.Caption.Confidence > caption.CORSLimitedConfidence {
				t.Errorf("Expected confidence <= %.1f, got %.2f", caption.CORSLimitedConfidence, result.Caption.Confidence)
			}
			if !result.Caption.CORSLimited {
				t.Error("Expected caption to be marked CORS-limited")
			}
			if !strings.Contains(result.Caption.LongDescription, caption.CORSNotice) {
				t.Errorf("Expected CORS notice in %q", result.Caption.LongDescription)
			}
		})
	}
}

func TestAnalyzeUnloadedCrossOriginImage(t *testing.T) {
	a := New(&fakeExtractor{}, nil, nil)

	img := loadedImage()
	img.Src = "https://cdn.other.net/lazy.jpg"
	img.NaturalWidth = 0
	img.NaturalHeight = 0

	result := a.Analyze(context.Background(), img)
	if !result.Caption.CORSLimited || result.Caption.Confidence > caption.CORSLimitedConfidence {
		t.Errorf("Expected CORS-limited caption, got %+v", result.Caption)
	}
}
