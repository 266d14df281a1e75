package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Credentials are the provider keys the caption chain may use
type Credentials struct {
	OpenAIAPIKey     string `yaml:"openai_api_key"`
	HuggingFaceToken string `yaml:"huggingface_token"`
	GeminiAPIKey     string `yaml:"gemini_api_key"`
}

// Any reports whether at least one remote provider is configured
func (c Credentials) Any() bool {
	return c.OpenAIAPIKey != "" || c.HuggingFaceToken != "" || c.GeminiAPIKey != ""
}

// CredentialStore holds the current credentials. Values from the YAML file
// take precedence over the environment.
type CredentialStore struct {
	path   string
	lookup func(string) string

	mu    sync.RWMutex
	creds Credentials
}

// NewCredentialStore creates a store reading from the environment and, when
// path is not empty, from a YAML file
func NewCredentialStore(path string) *CredentialStore {
	return &CredentialStore{
		path:   path,
		lookup: os.Getenv,
	}
}

// StaticCredentials returns a store that always yields creds
func StaticCredentials(creds Credentials) *CredentialStore {
	return &CredentialStore{
		lookup: func(string) string { return "" },
		creds:  creds,
	}
}

// Get returns a snapshot of the current credentials
func (s *CredentialStore) Get() Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds
}

// Set replaces the current credentials
func (s *CredentialStore) Set(creds Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = creds
}

// Reload re-reads the environment and the credentials file. It is called at
// session start and whenever the credentials are reported as changed.
func (s *CredentialStore) Reload() error {
	creds := Credentials{
		OpenAIAPIKey:     s.lookup("OPENAI_API_KEY"),
		HuggingFaceToken: firstNonEmpty(s.lookup("HF_API_TOKEN"), s.lookup("HUGGINGFACE_API_KEY")),
		GeminiAPIKey:     s.lookup("GEMINI_API_KEY"),
	}

	if s.path != "" {
		data, err := os.ReadFile(s.path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			slog.Warn("Credentials file not found, using environment only", "path", s.path)
		case err != nil:
			return fmt.Errorf("failed to read credentials file: %w", err)
		default:
			var file Credentials
			if err := yaml.Unmarshal(data, &file); err != nil {
				return fmt.Errorf("failed to parse credentials file: %w", err)
			}
			creds.OpenAIAPIKey = firstNonEmpty(file.OpenAIAPIKey, creds.OpenAIAPIKey)
			creds.HuggingFaceToken = firstNonEmpty(file.HuggingFaceToken, creds.HuggingFaceToken)
			creds.GeminiAPIKey = firstNonEmpty(file.GeminiAPIKey, creds.GeminiAPIKey)
		}
	}

	s.Set(creds)
	slog.Info("Credentials loaded",
		"provider_a", creds.OpenAIAPIKey != "",
		"provider_b", creds.HuggingFaceToken != "",
		"provider_c", creds.GeminiAPIKey != "")
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
