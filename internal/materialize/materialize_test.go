package materialize

import (
	"errors"
	"testing"
)

func TestMaterialize(t *testing.T) {
	m := New("https://en.wikipedia.org")

	tests := []struct {
		name        string
		src         string
		corsLimited bool
	}{
		{"data url passes through", "data:image/png;base64,iVBORw0KGgo=", false},
		{"exact origin", "https://en.wikipedia.org/static/logo.png", false},
		{"known cdn sibling", "https://upload.wikimedia.org/wikipedia/commons/a/a1/x.jpg", false},
		{"parent domain", "https://wikipedia.org/img.png", false},
		{"subdomain of page host", "https://static.en.wikipedia.org/img.png", false},
		{"unrelated host", "https://images.example.com/cat.jpg", true},
		{"lookalike host", "https://notwikipedia.org/cat.jpg", true},
		{"relative garbage", "::not a url", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := m.Materialize(tt.src)
			if res.CORSLimited != tt.corsLimited {
				t.Errorf("Expected CORSLimited=%v, got %v", tt.corsLimited, res.CORSLimited)
			}
			if tt.corsLimited {
				if !IsPlaceholder(res.Data) {
					t.Errorf("Expected placeholder, got %s", res.Data)
				}
			} else if res.Data != tt.src {
				t.Errorf("Expected source unchanged, got %s", res.Data)
			}
		})
	}
}

func TestMaterializeWithoutOrigin(t *testing.T) {
	m := New("")

	if res := m.Materialize("https://example.com/a.png"); !res.CORSLimited {
		t.Error("Expected http image to be CORS-limited without a page origin")
	}
	if res := m.Materialize("data:image/gif;base64,R0lGOD"); res.CORSLimited {
		t.Error("Expected data URL to pass through without a page origin")
	}
}

func TestErrCrossOriginIsSentinel(t *testing.T) {
	wrapped := errors.Join(errors.New("draw failed"), ErrCrossOrigin)
	if !errors.Is(wrapped, ErrCrossOrigin) {
		t.Error("Expected wrapped error to match ErrCrossOrigin")
	}
}
