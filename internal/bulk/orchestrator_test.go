package bulk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/describer/internal/models"
)

type analyzerFunc func(ctx context.Context, img models.ImageRecord) models.ImageAnalysis

func (f analyzerFunc) Analyze(ctx context.Context, img models.ImageRecord) models.ImageAnalysis {
	return f(ctx, img)
}

func images(n int) []models.ImageRecord {
	out := make([]models.ImageRecord, n)
	for i := range out {
		out[i] = models.ImageRecord{
			ID:            fmt.Sprintf("img-%d", i),
			Src:           fmt.Sprintf("https://example.com/%d.png", i),
			NaturalWidth:  200,
			NaturalHeight: 200,
		}
	}
	return out
}

func TestRunToleratesFailingItem(t *testing.T) {
	analyzer := analyzerFunc(func(ctx context.Context, img models.ImageRecord) models.ImageAnalysis {
		if img.ID == "img-2" {
			panic("decoder crashed")
		}
		return models.ImageAnalysis{Image: img}
	})
	o := New(analyzer, WithItemDelay(0))

	var calls []models.BulkProgress
	results, err := o.Run(context.Background(), images(5), func(p models.BulkProgress) {
		calls = append(calls, p)
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(results) != 5 {
		t.Fatalf("Expected 5 results, got %d", len(results))
	}
	if results[2].Error == "" || results[2].Image.ID != "img-2" {
		t.Errorf("Expected error-tagged result for img-2, got %+v", results[2])
	}

	final := calls[len(calls)-1]
	if final.Completed != 5 || final.Errors != 1 || len(final.Results) != 5 {
		t.Errorf("Expected completed=5 errors=1 results=5, got %d/%d/%d", final.Completed, final.Errors, len(final.Results))
	}
	if final.Current != "" {
		t.Errorf("Expected empty current on terminal call, got %q", final.Current)
	}
	if !final.Done() {
		t.Error("Expected terminal progress to be done")
	}
}

func TestRunCountsErrorTaggedResults(t *testing.T) {
	o := New(analyzerFunc(func(ctx context.Context, img models.ImageRecord) models.ImageAnalysis {
		result := models.ImageAnalysis{Image: img}
		if img.ID == "img-1" {
			result.Error = "image not loaded or has zero dimensions"
		}
		return result
	}), WithItemDelay(0))

	if _, err := o.Run(context.Background(), images(3), nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if progress := o.Progress(); progress.Errors != 1 {
		t.Errorf("Expected 1 error, got %d", progress.Errors)
	}
}

func TestRunReportsProgressAfterEachItem(t *testing.T) {
	o := New(analyzerFunc(func(ctx context.Context, img models.ImageRecord) models.ImageAnalysis {
		return models.ImageAnalysis{Image: img}
	}), WithItemDelay(time.Millisecond))

	var calls []models.BulkProgress
	if _, err := o.Run(context.Background(), images(3), func(p models.BulkProgress) {
		calls = append(calls, p)
	}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(calls) != 4 {
		t.Fatalf("Expected 3 item calls and 1 terminal call, got %d", len(calls))
	}
	for i := range 3 {
		if calls[i].Completed != i+1 {
			t.Errorf("Call %d: expected completed %d, got %d", i, i+1, calls[i].Completed)
		}
		if calls[i].Current != fmt.Sprintf("https://example.com/%d.png", i) {
			t.Errorf("Call %d: unexpected current %q", i, calls[i].Current)
		}
		if len(calls[i].Results) != i+1 {
			t.Errorf("Call %d: expected %d results so far, got %d", i, i+1, len(calls[i].Results))
		}
	}
	if o.RunID() == "" {
		t.Error("Expected a run id")
	}
}

func TestRunIsSingleFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once

	o := New(analyzerFunc(func(ctx context.Context, img models.ImageRecord) models.ImageAnalysis {
		once.Do(func() { close(started) })
		<-release
		return models.ImageAnalysis{Image: img}
	}), WithItemDelay(0))

	done := make(chan error, 1)
	go func() {
		_, err := o.Run(context.Background(), images(3), nil)
		done <- err
	}()
	<-started

	before := o.Progress()
	runID := o.RunID()

	_, err := o.Run(context.Background(), images(10), nil)
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Expected ErrAlreadyRunning, got %v", err)
	}

	after := o.Progress()
	if after.Total != before.Total || after.Completed != before.Completed || o.RunID() != runID {
		t.Errorf("Expected rejected run not to touch state: before %+v, after %+v", before, after)
	}
	if !o.Running() {
		t.Error("Expected first run to still be active")
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("First run failed: %v", err)
	}
	if o.Running() {
		t.Error("Expected no active run")
	}
}

func TestCancelLetsInFlightItemFinish(t *testing.T) {
	var o *Orchestrator
	o = New(analyzerFunc(func(ctx context.Context, img models.ImageRecord) models.ImageAnalysis {
		if img.ID == "img-1" {
			o.Cancel()
		}
		return models.ImageAnalysis{Image: img}
	}), WithItemDelay(0))

	results, err := o.Run(context.Background(), images(5), nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Expected the in-flight item to finish and no more, got %d results", len(results))
	}
	if p := o.Progress(); p.Completed != 2 || p.Current != "" {
		t.Errorf("Unexpected progress after cancel %+v", p)
	}
}

func TestContextCancellationStopsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o := New(analyzerFunc(func(ctx context.Context, img models.ImageRecord) models.ImageAnalysis {
		cancel()
		return models.ImageAnalysis{Image: img}
	}), WithItemDelay(time.Hour))

	results, err := o.Run(ctx, images(3), nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if len(results) != 1 {
		t.Errorf("Expected 1 result, got %d", len(results))
	}
}

func TestRunEmpty(t *testing.T) {
	o := New(analyzerFunc(func(ctx context.Context, img models.ImageRecord) models.ImageAnalysis {
		t.Fatal("analyzer should not be called")
		return models.ImageAnalysis{}
	}))

	var calls int
	results, err := o.Run(context.Background(), nil, func(p models.BulkProgress) {
		calls++
		if !p.Done() {
			t.Errorf("Expected done progress, got %+v", p)
		}
	})
	if err != nil || len(results) != 0 || calls != 1 {
		t.Errorf("Expected single terminal call and no results, got %d results, %d calls, err %v", len(results), calls, err)
	}
}

func TestStartRunsInBackground(t *testing.T) {
	release := make(chan struct{})
	o := New(analyzerFunc(func(ctx context.Context, img models.ImageRecord) models.ImageAnalysis {
		<-release
		return models.ImageAnalysis{Image: img}
	}), WithItemDelay(0))

	finished := make(chan models.BulkProgress, 1)
	runID, err := o.Start(context.Background(), images(2), func(p models.BulkProgress) {
		if p.Done() && p.Current == "" {
			finished <- p
		}
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if runID == "" || runID != o.RunID() {
		t.Errorf("Expected run id %q to match %q", runID, o.RunID())
	}

	if _, err := o.Start(context.Background(), images(1), nil); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Expected ErrAlreadyRunning, got %v", err)
	}

	close(release)
	select {
	case p := <-finished:
		if p.Completed != 2 {
			t.Errorf("Expected 2 completed, got %d", p.Completed)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for background run")
	}
}
