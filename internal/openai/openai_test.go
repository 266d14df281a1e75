package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/describer/internal/providers"
)

func TestDescribe(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("Expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"SHORT: A red bicycle.\nLONG: A red bicycle leaning on a wall."}}]}`))
	}))
	defer server.Close()

	o := New(server.URL, "gpt-4o-mini", func() string { return "sk-test" }, time.Second)
	out, err := o.Describe(context.Background(), providers.Request{
		Image:       "data:image/png;base64,AAAA",
		Prompt:      "Describe this image",
		MaxTokens:   300,
		Temperature: 0.3,
	})
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if out != "SHORT: A red bicycle.\nLONG: A red bicycle leaning on a wall." {
		t.Errorf("Unexpected content %q", out)
	}

	if got.Model != "gpt-4o-mini" || got.MaxTokens != 300 {
		t.Errorf("Unexpected request fields: %+v", got)
	}
	if len(got.Messages) != 1 || len(got.Messages[0].Content) != 2 {
		t.Fatalf("Expected one message with two parts, got %+v", got.Messages)
	}
	parts := got.Messages[0].Content
	if parts[0].Type != "text" || parts[0].Text != "Describe this image" {
		t.Errorf("Unexpected text part %+v", parts[0])
	}
	if parts[1].Type != "image_url" || parts[1].ImageURL == nil || parts[1].ImageURL.URL != "data:image/png;base64,AAAA" {
		t.Errorf("Unexpected image part %+v", parts[1])
	}
}

func TestDescribeStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer server.Close()

	o := New(server.URL, "gpt-4o-mini", func() string { return "bad" }, time.Second)
	_, err := o.Describe(context.Background(), providers.Request{Image: "https://example.com/a.png"})

	var statusErr *providers.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", statusErr.StatusCode)
	}
}

func TestDescribeWithoutKey(t *testing.T) {
	o := New("http://127.0.0.1:0", "gpt-4o-mini", func() string { return "" }, time.Second)
	_, err := o.Describe(context.Background(), providers.Request{})
	if !errors.Is(err, providers.ErrNoCredentials) {
		t.Errorf("Expected ErrNoCredentials, got %v", err)
	}
}

func TestDescribeNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	o := New(server.URL, "gpt-4o-mini", func() string { return "sk-test" }, time.Second)
	if _, err := o.Describe(context.Background(), providers.Request{}); err == nil {
		t.Error("Expected error for empty choices")
	}
}
