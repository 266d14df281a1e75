// Package ocr extracts embedded text from images and classifies them by
// type and complexity.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/describer/internal/materialize"
	"github.com/lehigh-university-libraries/describer/internal/models"
	"golang.org/x/sync/singleflight"
)

// ErrSecurity is returned when the raster fallback would read pixels of a
// cross-origin image
var ErrSecurity = fmt.Errorf("raster surface is tainted: %w", materialize.ErrCrossOrigin)

// Input is an encoded image handed to a Recognizer
type Input struct {
	ID    string
	Image []byte
}

// Recognition is the raw output of an OCR backend
type Recognition struct {
	Text string
	// Confidence is on the backend's 0-100 scale
	Confidence float64
	Words      []models.WordBox
}

// Recognizer is an OCR backend
type Recognizer interface {
	Init(ctx context.Context) error
	Recognize(ctx context.Context, in Input) (Recognition, error)
	Close() error
}

// ImageSource loads the bytes behind an image locator
type ImageSource interface {
	Fetch(ctx context.Context, src string) ([]byte, error)
}

// Engine runs OCR with lazy, shared initialization
type Engine struct {
	recognizer Recognizer
	source     ImageSource

	group singleflight.Group
	mu    sync.Mutex
	ready bool
}

// NewEngine creates an engine
func NewEngine(recognizer Recognizer, source ImageSource) *Engine {
	return &Engine{
		recognizer: recognizer,
		source:     source,
	}
}

// Init initializes the backend once. Concurrent callers share a single
// in-flight initialization; a failed initialization is retried on the next call.
func (e *Engine) Init(ctx context.Context) error {
	if e.isReady() {
		return nil
	}

	_, err, shared := e.group.Do("init", func() (any, error) {
		if e.isReady() {
			return nil, nil
		}
		start := time.Now()
		if err := e.recognizer.Init(ctx); err != nil {
			return nil, fmt.Errorf("failed to initialize OCR backend: %w", err)
		}
		e.mu.Lock()
		e.ready = true
		e.mu.Unlock()
		slog.Info("OCR backend initialized", "duration", time.Since(start))
		return nil, nil
	})
	if shared {
		slog.Debug("Joined in-flight OCR initialization")
	}
	return err
}

func (e *Engine) isReady() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready
}

// Close releases the backend
func (e *Engine) Close() error {
	e.mu.Lock()
	e.ready = false
	e.mu.Unlock()
	return e.recognizer.Close()
}

// Extract recognizes text in the image. On total failure it returns a
// zero-confidence empty result together with the error.
func (e *Engine) Extract(ctx context.Context, img models.ImageRecord) (result *models.OCRResult, err error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("OCR backend panicked: %v", r)
			result = emptyResult(img, time.Since(start))
			slog.Error("OCR panic recovered", "src", img.Src, "panic", r)
		}
	}()

	if err := e.Init(ctx); err != nil {
		return emptyResult(img, time.Since(start)), err
	}

	rec, err := e.recognize(ctx, img)
	if err != nil {
		if IsSecurity(err) {
			slog.Debug("OCR unavailable for cross-origin image", "src", img.Src)
		} else {
			slog.Warn("OCR failed", "src", img.Src, "error", err)
		}
		return emptyResult(img, time.Since(start)), err
	}

	return buildResult(img, rec, time.Since(start)), nil
}

func (e *Engine) recognize(ctx context.Context, img models.ImageRecord) (Recognition, error) {
	data, fetchErr := e.source.Fetch(ctx, img.Src)
	if fetchErr == nil {
		rec, err := e.recognizer.Recognize(ctx, Input{ID: img.ID, Image: data})
		if err == nil {
			return rec, nil
		}
		slog.Debug("Direct recognition failed, trying raster surface", "src", img.Src, "error", err)
	}

	// Pixels of a cross-origin image cannot be drawn onto a readable surface
	if !materialize.New(img.Origin).SameOrigin(img.Src) {
		return Recognition{}, ErrSecurity
	}
	if fetchErr != nil {
		return Recognition{}, fmt.Errorf("failed to load image for OCR: %w", fetchErr)
	}

	surface, err := Rasterize(data)
	if err != nil {
		return Recognition{}, err
	}

	rec, err := e.recognizer.Recognize(ctx, Input{ID: img.ID, Image: surface})
	if err != nil {
		return Recognition{}, fmt.Errorf("raster recognition failed: %w", err)
	}
	return rec, nil
}

func buildResult(img models.ImageRecord, rec Recognition, elapsed time.Duration) *models.OCRResult {
	confidence := rec.Confidence / 100
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	text := normalizeText(rec.Text)
	return &models.OCRResult{
		Text:           text,
		Confidence:     confidence,
		Words:          rec.Words,
		HasText:        HasText(text, confidence),
		ImageType:      ClassifyImageType(img.Src, img.Alt, text, confidence),
		Complexity:     ClassifyComplexity(text, img.NaturalWidth, img.NaturalHeight),
		ProcessingTime: elapsed,
	}
}

func emptyResult(img models.ImageRecord, elapsed time.Duration) *models.OCRResult {
	return &models.OCRResult{
		ImageType:      ClassifyImageType(img.Src, img.Alt, "", 0),
		Complexity:     ClassifyComplexity("", img.NaturalWidth, img.NaturalHeight),
		ProcessingTime: elapsed,
	}
}

// IsSecurity reports whether err stems from a cross-origin pixel read
func IsSecurity(err error) bool {
	return errors.Is(err, materialize.ErrCrossOrigin)
}
