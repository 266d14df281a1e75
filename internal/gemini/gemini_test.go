package gemini

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/lehigh-university-libraries/describer/internal/providers"
)

type staticSource struct {
	data []byte
	err  error
}

func (s staticSource) Fetch(ctx context.Context, src string) ([]byte, error) {
	return s.data, s.err
}

func TestImageFormat(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    string
		wantErr bool
	}{
		{name: "png", data: []byte("\x89PNG\r\n\x1a\n0000"), want: "png"},
		{name: "jpeg", data: []byte("\xff\xd8\xff\xe0"), want: "jpeg"},
		{name: "gif", data: []byte("GIF89a"), want: "gif"},
		{name: "text", data: []byte("hello world"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := imageFormat(tt.data)
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

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("SHORT: A cat."), genai.Text("\nLONG: A grey cat asleep.")}}},
		},
	}
	got, err := responseText(resp)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != "SHORT: A cat.\nLONG: A grey cat asleep." {
		t.Errorf("Unexpected text %q", got)
	}

	if _, err := responseText(&genai.GenerateContentResponse{}); err == nil {
		t.Error("Expected error for empty candidates")
	}
}

func TestDescribeWithoutKey(t *testing.T) {
	g := New("gemini-1.5-flash", func() string { return "" }, nil, time.Second)
	_, err := g.Describe(context.Background(), providers.Request{Image: "data:image/png;base64,AAAA"})
	if !errors.Is(err, providers.ErrNoCredentials) {
		t.Errorf("Expected ErrNoCredentials, got %v", err)
	}
}

func TestLoadRemoteImage(t *testing.T) {
	g := New("gemini-1.5-flash", func() string { return "key" }, staticSource{data: []byte("GIF89a")}, time.Second)
	data, err := g.load(context.Background(), "https://example.com/a.gif")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(data) != "GIF89a" {
		t.Errorf("Unexpected data %q", data)
	}

	g = New("gemini-1.5-flash", func() string { return "key" }, staticSource{err: errors.New("timeout")}, time.Second)
	if _, err := g.load(context.Background(), "https://example.com/a.gif"); err == nil {
		t.Error("Expected fetch error")
	}
}
