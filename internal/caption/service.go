package caption

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lehigh-university-libraries/describer/internal/materialize"
	"github.com/lehigh-university-libraries/describer/internal/models"
	"github.com/lehigh-university-libraries/describer/internal/providers"
	"github.com/lehigh-university-libraries/describer/internal/ratelimit"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBatchSize  = 4
	DefaultBatchDelay = time.Second

	temperature = 0.3
)

// Backend is one remote provider in the chain
type Backend struct {
	Provider   providers.Provider
	Key        providers.KeyFunc
	Limiter    *ratelimit.Limiter
	Confidence float64
	Provenance models.Provenance
}

func (b Backend) configured() bool {
	return b.Key != nil && b.Key() != ""
}

// Item is a single caption request
type Item struct {
	Image models.ImageRecord
	OCR   *models.OCRResult
}

// Service generates captions, trying each backend in order and falling back
// to local generation
type Service struct {
	backends   []Backend
	batchSize  int
	batchDelay time.Duration
}

// Option configures a Service
type Option func(*Service)

// WithBatchSize sets how many requests GenerateBatch issues concurrently
func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithBatchDelay sets the pause between batches
func WithBatchDelay(d time.Duration) Option {
	return func(s *Service) {
		s.batchDelay = d
	}
}

// NewService creates a caption service. Backends are tried in the order given.
func NewService(backends []Backend, opts ...Option) *Service {
	s := &Service{
		backends:   backends,
		batchSize:  DefaultBatchSize,
		batchDelay: DefaultBatchDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Available reports whether any remote provider has a credential
func (s *Service) Available() bool {
	for _, b := range s.backends {
		if b.configured() {
			return true
		}
	}
	return false
}

// BackendStatus describes one provider of the chain. Remaining is the number
// of calls the current rate window still admits, or -1 when unlimited.
type BackendStatus struct {
	Name       string            `json:"name"`
	Model      string            `json:"model"`
	Provenance models.Provenance `json:"provenance"`
	Configured bool              `json:"configured"`
	Remaining  int               `json:"remaining"`
}

// Status reports every backend in chain order
func (s *Service) Status() []BackendStatus {
	statuses := make([]BackendStatus, 0, len(s.backends))
	for _, b := range s.backends {
		remaining := -1
		if b.Limiter != nil {
			remaining = b.Limiter.Remaining()
		}
		statuses = append(statuses, BackendStatus{
			Name:       b.Provider.Name(),
			Model:      b.Provider.Model(),
			Provenance: b.Provenance,
			Configured: b.configured(),
			Remaining:  remaining,
		})
	}
	return statuses
}

// Generate produces a caption for one image. A result is always returned; the
// error joins the provider failures seen before falling back to local generation.
func (s *Service) Generate(ctx context.Context, img models.ImageRecord, ocr *models.OCRResult) (*models.CaptionResult, error) {
	start := time.Now()

	mat := materialize.New(img.Origin).Materialize(img.Src)
	corsLimited := mat.CORSLimited

	if !s.Available() || !remoteEligible(mat.Data) {
		result := Local(ocr, corsLimited)
		result.ProcessingTime = time.Since(start)
		return result, nil
	}

	complexity := models.ComplexitySimple
	if ocr != nil && ocr.Complexity != "" {
		complexity = ocr.Complexity
	}
	req := providers.Request{
		Image:       mat.Data,
		Prompt:      BuildPrompt(ocr),
		MaxTokens:   maxTokens(complexity),
		Temperature: temperature,
	}

	var errs []error
	for _, b := range s.backends {
		if !b.configured() {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		name := b.Provider.Name()
		if b.Limiter != nil && !b.Limiter.Allow() {
			slog.Debug("Rate limit reached, skipping provider", "provider", name, "image", img.ID)
			continue
		}

		text, err := b.Provider.Describe(ctx, req)
		if err == nil && text == "" {
			err = fmt.Errorf("empty response")
		}
		if err != nil {
			perr := newProviderError(name, err)
			errs = append(errs, perr)
			slog.Warn("Caption provider failed", "provider", name, "class", perr.Class, "image", img.ID, "error", err)
			if perr.Class == ClassSecurity {
				// Every remaining provider would be refused the same pixels
				corsLimited = true
				break
			}
			continue
		}

		short, long := ParseCaption(text)
		slog.Debug("Generated caption", "provider", name, "image", img.ID, "length", len(long))
		return &models.CaptionResult{
			ShortCaption:    short,
			LongDescription: long,
			Confidence:      b.Confidence,
			Model:           b.Provider.Model(),
			Provenance:      b.Provenance,
			ProcessingTime:  time.Since(start),
		}, nil
	}

	result := Local(ocr, corsLimited)
	result.ProcessingTime = time.Since(start)
	return result, errors.Join(errs...)
}

// GenerateBatch captions items in fixed-size batches. Requests within a batch
// run concurrently and batches are separated by the configured delay. A batch
// that fails as a whole is replaced by local captions.
func (s *Service) GenerateBatch(ctx context.Context, items []Item) []*models.CaptionResult {
	results := make([]*models.CaptionResult, len(items))

	for start := 0; start < len(items); start += s.batchSize {
		end := min(start+s.batchSize, len(items))

		if start > 0 && s.batchDelay > 0 {
			if err := sleep(ctx, s.batchDelay); err != nil {
				slog.Warn("Batch captioning interrupted", "remaining", len(items)-start, "error", err)
				fillLocal(results[start:], items[start:])
				break
			}
		}

		if err := s.runBatch(ctx, items[start:end], results[start:end]); err != nil {
			slog.Warn("Caption batch failed, using local captions", "batch_start", start, "size", end-start, "error", err)
			fillLocal(results[start:end], items[start:end])
		}
	}

	return results
}

func (s *Service) runBatch(ctx context.Context, items []Item, out []*models.CaptionResult) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := range items {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("caption generation panicked: %v", r)
				}
			}()
			res, genErr := s.Generate(gctx, items[i].Image, items[i].OCR)
			if genErr != nil {
				slog.Debug("Remote captioning fell back to local", "image", items[i].Image.ID, "error", genErr)
			}
			out[i] = res
			return nil
		})
	}
	return g.Wait()
}

func fillLocal(out []*models.CaptionResult, items []Item) {
	for i, item := range items {
		cors := !materialize.New(item.Image.Origin).SameOrigin(item.Image.Src)
		out[i] = Local(item.OCR, cors)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
