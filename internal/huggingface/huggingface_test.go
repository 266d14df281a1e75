package huggingface

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

func TestParseGeneration(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{name: "array", body: `[{"generated_text":"a dog on a beach"}]`, want: "a dog on a beach"},
		{name: "object", body: `{"generated_text":" a city skyline "}`, want: "a city skyline"},
		{name: "empty array", body: `[]`, wantErr: true},
		{name: "model loading", body: `{"error":"Model is currently loading"}`, wantErr: true},
		{name: "blank caption", body: `[{"generated_text":""}]`, wantErr: true},
		{name: "garbage", body: `not json`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseGeneration([]byte(tt.body))
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	var got inferenceRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Salesforce/blip-image-captioning-large" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer hf_test" {
			t.Errorf("Expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`[{"generated_text":"a bar chart of sales"}]`))
	}))
	defer server.Close()

	h := New(server.URL+"/", "Salesforce/blip-image-captioning-large", func() string { return "hf_test" }, time.Second)
	out, err := h.Describe(context.Background(), providers.Request{
		Image:     "data:image/png;base64,iVBORw0KGgo=",
		MaxTokens: 120,
	})
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if out != "a bar chart of sales" {
		t.Errorf("Unexpected caption %q", out)
	}
	if got.Inputs != "iVBORw0KGgo=" {
		t.Errorf("Expected bare base64 input, got %q", got.Inputs)
	}
	if got.Parameters.MaxLength != 120 || got.Parameters.NumBeams != numBeams {
		t.Errorf("Unexpected parameters %+v", got.Parameters)
	}
}

func TestDescribeServiceUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"Model is currently loading"}`))
	}))
	defer server.Close()

	h := New(server.URL, "model", func() string { return "hf_test" }, time.Second)
	_, err := h.Describe(context.Background(), providers.Request{Image: "https://example.com/a.png"})

	var statusErr *providers.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 StatusError, got %v", err)
	}
}

func TestInputs(t *testing.T) {
	if got := inputs("https://example.com/a.png"); got != "https://example.com/a.png" {
		t.Errorf("Expected URL passthrough, got %q", got)
	}
	if got := inputs("data:image/jpeg;base64,/9j/4AAQ"); got != "/9j/4AAQ" {
		t.Errorf("Expected base64 payload, got %q", got)
	}
}
