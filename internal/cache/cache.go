package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/lehigh-university-libraries/describer/internal/models"
)

// ErrCacheMiss indicates a cache miss
var ErrCacheMiss = errors.New("cache miss")

// Store memoizes analyses by image identity
type Store interface {
	Get(ctx context.Context, key string) (models.ImageAnalysis, error)
	Set(ctx context.Context, key string, analysis models.ImageAnalysis) error
	Clear(ctx context.Context) error
	Len(ctx context.Context) (int, error)
	Close() error
}

// Key identifies an image by source and natural size. The source is hashed
// since inline data URLs can be megabytes long.
func Key(img models.ImageRecord) string {
	sum := sha256.Sum256([]byte(img.Src))
	return fmt.Sprintf("%s:%dx%d", hex.EncodeToString(sum[:]), img.NaturalWidth, img.NaturalHeight)
}
