package providers

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoCredentials is returned when a provider is called without an API key
var ErrNoCredentials = errors.New("no credentials configured")

// Request represents a single caption request to a vision provider
type Request struct {
	// Image is a data URL or an http(s) URL
	Image       string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Provider defines the interface for a remote vision captioning provider
type Provider interface {
	Name() string
	Model() string
	Describe(ctx context.Context, req Request) (string, error)
}

// StatusError is returned when a provider answers with a non-success HTTP status
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// KeyFunc returns the current API key for a provider
type KeyFunc func() string
