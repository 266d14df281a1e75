package bulk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/describer/internal/models"
)

// ErrAlreadyRunning is returned when a run is requested while one is active
var ErrAlreadyRunning = errors.New("bulk analysis already in progress")

const DefaultItemDelay = 100 * time.Millisecond

// Analyzer analyzes a single image
type Analyzer interface {
	Analyze(ctx context.Context, img models.ImageRecord) models.ImageAnalysis
}

// ProgressFunc receives a snapshot after every item
type ProgressFunc func(models.BulkProgress)

// Orchestrator analyzes a list of images one at a time. Only one run may be
// active at a time.
type Orchestrator struct {
	analyzer  Analyzer
	itemDelay time.Duration

	running   atomic.Bool
	cancelled atomic.Bool

	mu       sync.RWMutex
	runID    string
	progress models.BulkProgress
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithItemDelay sets the pause between items
func WithItemDelay(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.itemDelay = d
	}
}

func New(analyzer Analyzer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		analyzer:  analyzer,
		itemDelay: DefaultItemDelay,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run analyzes images sequentially. A panic while analyzing one image is
// recorded against that image and the run continues. Cancellation lets the
// in-flight item finish and stops before the next one; the results gathered
// so far are returned together with the cancellation error.
func (o *Orchestrator) Run(ctx context.Context, images []models.ImageRecord, onProgress ProgressFunc) ([]models.ImageAnalysis, error) {
	runID, err := o.begin(len(images))
	if err != nil {
		return nil, err
	}
	defer o.running.Store(false)

	return o.execute(ctx, runID, images, onProgress)
}

// Start begins a run in the background and returns its identifier. Results
// are observed through onProgress or Progress.
func (o *Orchestrator) Start(ctx context.Context, images []models.ImageRecord, onProgress ProgressFunc) (string, error) {
	runID, err := o.begin(len(images))
	if err != nil {
		return "", err
	}

	go func() {
		defer o.running.Store(false)
		if _, err := o.execute(ctx, runID, images, onProgress); err != nil {
			slog.Warn("Background bulk analysis stopped", "run", runID, "error", err)
		}
	}()

	return runID, nil
}

// begin claims the single run slot and resets progress
func (o *Orchestrator) begin(total int) (string, error) {
	if !o.running.CompareAndSwap(false, true) {
		return "", ErrAlreadyRunning
	}
	o.cancelled.Store(false)

	runID := uuid.New().String()
	o.mu.Lock()
	o.runID = runID
	o.progress = models.BulkProgress{
		Total:   total,
		Results: make([]models.ImageAnalysis, 0, total),
	}
	o.mu.Unlock()

	return runID, nil
}

func (o *Orchestrator) execute(ctx context.Context, runID string, images []models.ImageRecord, onProgress ProgressFunc) ([]models.ImageAnalysis, error) {
	slog.Info("Starting bulk analysis", "run", runID, "total", len(images))
	start := time.Now()

	var stopErr error
	for i, img := range images {
		if err := o.stopRequested(ctx); err != nil {
			stopErr = err
			break
		}

		o.update(func(p *models.BulkProgress) {
			p.Current = img.Src
		})

		result, err := o.analyzeOne(ctx, img)
		if err != nil {
			slog.Error("Bulk item failed", "run", runID, "image", img.ID, "error", err)
		}

		snapshot := o.update(func(p *models.BulkProgress) {
			p.Completed++
			if err != nil || result.Error != "" {
				p.Errors++
			}
			p.Results = append(p.Results, result)
		})
		if onProgress != nil {
			onProgress(snapshot)
		}
		slog.Debug("Bulk progress", "run", runID, "completed", snapshot.Completed, "total", snapshot.Total, "errors", snapshot.Errors)

		if i < len(images)-1 && o.itemDelay > 0 {
			if err := o.wait(ctx); err != nil {
				stopErr = err
				break
			}
		}
	}

	final := o.update(func(p *models.BulkProgress) {
		p.Current = ""
	})

	if stopErr != nil {
		slog.Info("Bulk analysis cancelled", "run", runID, "completed", final.Completed, "total", final.Total)
		return final.Results, stopErr
	}

	if onProgress != nil {
		onProgress(final)
	}
	slog.Info("Bulk analysis finished", "run", runID, "completed", final.Completed, "errors", final.Errors, "duration", time.Since(start))
	return final.Results, nil
}

func (o *Orchestrator) analyzeOne(ctx context.Context, img models.ImageRecord) (result models.ImageAnalysis, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analysis panicked: %v", r)
			result = models.ImageAnalysis{Image: img, Error: err.Error()}
		}
	}()
	return o.analyzer.Analyze(ctx, img), nil
}

// update applies fn to the shared progress and returns a copy
func (o *Orchestrator) update(fn func(*models.BulkProgress)) models.BulkProgress {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(&o.progress)
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() models.BulkProgress {
	snapshot := o.progress
	snapshot.Results = append([]models.ImageAnalysis(nil), o.progress.Results...)
	return snapshot
}

func (o *Orchestrator) stopRequested(ctx context.Context) error {
	if o.cancelled.Load() {
		return context.Canceled
	}
	return ctx.Err()
}

func (o *Orchestrator) wait(ctx context.Context) error {
	timer := time.NewTimer(o.itemDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return o.stopRequested(ctx)
	}
}

// Cancel stops the active run before its next item
func (o *Orchestrator) Cancel() {
	if o.running.Load() {
		o.cancelled.Store(true)
	}
}

// Running reports whether a run is active
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// Progress returns a snapshot of the current or most recent run
func (o *Orchestrator) Progress() models.BulkProgress {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.snapshotLocked()
}

// RunID identifies the current or most recent run
func (o *Orchestrator) RunID() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.runID
}
