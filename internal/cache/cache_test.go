package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/lehigh-university-libraries/describer/internal/models"
)

func TestKey(t *testing.T) {
	a := models.ImageRecord{Src: "https://example.com/a.png", NaturalWidth: 100, NaturalHeight: 80}
	b := a
	b.ID = "different-id"
	c := a
	c.NaturalWidth = 200

	if Key(a) != Key(b) {
		t.Error("Expected key to ignore the element id")
	}
	if Key(a) == Key(c) {
		t.Error("Expected key to depend on dimensions")
	}
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, err := m.Get(ctx, "missing"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}

	analysis := models.ImageAnalysis{Image: models.ImageRecord{ID: "hero"}}
	if err := m.Set(ctx, "k", analysis); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := m.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Image.ID != "hero" {
		t.Errorf("Expected hero, got %s", got.Image.ID)
	}

	if n, _ := m.Len(ctx); n != 1 {
		t.Errorf("Expected 1 entry, got %d", n)
	}

	if err := m.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if n, _ := m.Len(ctx); n != 0 {
		t.Errorf("Expected empty cache after clear, got %d", n)
	}
}

func TestNewRedisInvalidURL(t *testing.T) {
	if _, err := NewRedis(context.Background(), "not-a-redis-url", ""); err == nil {
		t.Error("Expected error for invalid url")
	}
}

func TestNewRedisUnreachable(t *testing.T) {
	if _, err := NewRedis(context.Background(), "redis://127.0.0.1:1/0", ""); err == nil {
		t.Error("Expected ping failure for unreachable server")
	}
}
