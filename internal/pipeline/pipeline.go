package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/lehigh-university-libraries/describer/internal/analysis"
	"github.com/lehigh-university-libraries/describer/internal/bulk"
	"github.com/lehigh-university-libraries/describer/internal/cache"
	"github.com/lehigh-university-libraries/describer/internal/caption"
	"github.com/lehigh-university-libraries/describer/internal/config"
	"github.com/lehigh-university-libraries/describer/internal/discovery"
	"github.com/lehigh-university-libraries/describer/internal/fetch"
	"github.com/lehigh-university-libraries/describer/internal/gemini"
	"github.com/lehigh-university-libraries/describer/internal/huggingface"
	"github.com/lehigh-university-libraries/describer/internal/models"
	"github.com/lehigh-university-libraries/describer/internal/ocr"
	"github.com/lehigh-university-libraries/describer/internal/openai"
	"github.com/lehigh-university-libraries/describer/internal/ratelimit"
)

// Pipeline wires the analysis services together from configuration
type Pipeline struct {
	Config      *config.Config
	Credentials *config.CredentialStore
	Fetcher     *fetch.Fetcher
	OCR         *ocr.Engine
	Captions    *caption.Service
	Analyzer    *analysis.Analyzer
	Bulk        *bulk.Orchestrator

	store cache.Store
}

// Option overrides a default collaborator
type Option func(*options)

type options struct {
	recognizer ocr.Recognizer
	backends   []caption.Backend
	store      cache.Store
}

// WithRecognizer replaces the Tesseract backend
func WithRecognizer(r ocr.Recognizer) Option {
	return func(o *options) {
		o.recognizer = r
	}
}

// WithBackends replaces the configured caption providers
func WithBackends(backends []caption.Backend) Option {
	return func(o *options) {
		o.backends = backends
	}
}

// WithStore replaces the cache selected from configuration
func WithStore(store cache.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// New builds a pipeline. The cache is Redis when REDIS_URL is set and
// in-memory otherwise.
func New(ctx context.Context, cfg *config.Config, creds *config.CredentialStore, opts ...Option) (*Pipeline, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	fetcher := fetch.NewFetcher()

	store := o.store
	if store == nil {
		if cfg.RedisURL != "" {
			redisStore, err := cache.NewRedis(ctx, cfg.RedisURL, "")
			if err != nil {
				return nil, fmt.Errorf("failed to connect analysis cache: %w", err)
			}
			slog.Info("Using Redis analysis cache")
			store = redisStore
		} else {
			store = cache.NewMemory()
		}
	}

	recognizer := o.recognizer
	if recognizer == nil {
		recognizer = ocr.NewTesseract(cfg.OCRLanguage)
	}
	engine := ocr.NewEngine(recognizer, fetcher)

	backends := o.backends
	if backends == nil {
		backends = Backends(cfg, creds, fetcher)
	}
	captions := caption.NewService(backends,
		caption.WithBatchSize(cfg.CaptionBatchSize),
		caption.WithBatchDelay(cfg.CaptionBatchDelay),
	)

	analyzer := analysis.New(engine, captions, store)

	return &Pipeline{
		Config:      cfg,
		Credentials: creds,
		Fetcher:     fetcher,
		OCR:         engine,
		Captions:    captions,
		Analyzer:    analyzer,
		Bulk:        bulk.New(analyzer, bulk.WithItemDelay(cfg.BulkItemDelay)),
		store:       store,
	}, nil
}

// Backends builds the provider chain in priority order. Keys are read from
// creds on every call so a reload takes effect immediately.
func Backends(cfg *config.Config, creds *config.CredentialStore, source gemini.ImageSource) []caption.Backend {
	openaiKey := func() string { return creds.Get().OpenAIAPIKey }
	hfKey := func() string { return creds.Get().HuggingFaceToken }
	geminiKey := func() string { return creds.Get().GeminiAPIKey }

	return []caption.Backend{
		{
			Provider:   openai.New(cfg.OpenAIURL, cfg.OpenAIModel, openaiKey, cfg.ProviderTimeout),
			Key:        openaiKey,
			Limiter:    ratelimit.PerMinute(cfg.ProviderARPM),
			Confidence: 0.9,
			Provenance: models.ProvenanceProviderA,
		},
		{
			Provider:   huggingface.New(cfg.HFURL, cfg.HFModel, hfKey, cfg.ProviderTimeout),
			Key:        hfKey,
			Limiter:    ratelimit.PerMinute(cfg.ProviderBRPM),
			Confidence: 0.8,
			Provenance: models.ProvenanceProviderB,
		},
		{
			Provider:   gemini.New(cfg.GeminiModel, geminiKey, source, cfg.ProviderTimeout),
			Key:        geminiKey,
			Limiter:    ratelimit.PerMinute(cfg.ProviderCRPM),
			Confidence: 0.85,
			Provenance: models.ProvenanceProviderC,
		},
	}
}

// OpenPage loads and parses an HTML page from an http(s) URL or a local file.
// baseURL, when set, is used as the page address for resolving images and
// deciding their origin.
func (p *Pipeline) OpenPage(ctx context.Context, target, baseURL string) (*discovery.HTMLPage, error) {
	var data []byte
	var err error

	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		data, err = p.Fetcher.Fetch(ctx, target)
		if baseURL == "" {
			baseURL = target
		}
	} else {
		data, err = os.ReadFile(target)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load page %s: %w", target, err)
	}

	return p.ParsePage(ctx, data, baseURL)
}

// ParsePage parses HTML, probing image sizes the markup does not declare
func (p *Pipeline) ParsePage(ctx context.Context, data []byte, baseURL string) (*discovery.HTMLPage, error) {
	page, err := discovery.ParseHTML(ctx, bytes.NewReader(data), baseURL, discovery.WithSizeProber(p.Fetcher))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return page, nil
}

// ProviderNames lists the providers that currently have credentials
func (p *Pipeline) ProviderNames() []string {
	creds := p.Credentials.Get()
	var names []string
	if creds.OpenAIAPIKey != "" {
		names = append(names, "openai")
	}
	if creds.HuggingFaceToken != "" {
		names = append(names, "huggingface")
	}
	if creds.GeminiAPIKey != "" {
		names = append(names, "gemini")
	}
	return names
}

// Close releases the OCR backend and the cache connection
func (p *Pipeline) Close() error {
	return errors.Join(p.OCR.Close(), p.store.Close())
}
