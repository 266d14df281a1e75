package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/lehigh-university-libraries/describer/internal/models"
	"github.com/otiai10/gosseract/v2"
)

// Tesseract is the default Recognizer, backed by gosseract
type Tesseract struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// NewTesseract creates a Tesseract recognizer. language uses Tesseract's
// plus-separated form, e.g. "eng+deu".
func NewTesseract(language string) *Tesseract {
	langs := strings.Split(language, "+")
	if language == "" {
		langs = []string{"eng"}
	}
	return &Tesseract{
		languages:     langs,
		clientFactory: gosseract.NewClient,
	}
}

// Init verifies that the native library can be loaded
func (t *Tesseract) Init(ctx context.Context) error {
	c := t.clientFactory()
	defer c.Close()

	if err := c.SetLanguage(t.languages...); err != nil {
		return fmt.Errorf("set languages: %w", err)
	}
	if c.Version() == "" {
		return fmt.Errorf("tesseract library unavailable")
	}
	return nil
}

// Recognize runs OCR on a single encoded image
func (t *Tesseract) Recognize(ctx context.Context, in Input) (Recognition, error) {
	if err := ctx.Err(); err != nil {
		return Recognition{}, err
	}

	c := t.clientFactory()
	defer c.Close()

	if err := c.SetLanguage(t.languages...); err != nil {
		return Recognition{}, fmt.Errorf("set languages: %w", err)
	}
	if err := c.SetImageFromBytes(in.Image); err != nil {
		return Recognition{}, fmt.Errorf("set image: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return Recognition{}, fmt.Errorf("recognize text: %w", err)
	}

	words, avgConf := extractWords(c)
	return Recognition{
		Text:       strings.TrimSpace(text),
		Confidence: avgConf,
		Words:      words,
	}, nil
}

// Close is a no-op; clients are created per call
func (t *Tesseract) Close() error {
	return nil
}

func extractWords(c *gosseract.Client) ([]models.WordBox, float64) {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return nil, 0
	}

	words := make([]models.WordBox, 0, len(boxes))
	var sum float64
	for _, b := range boxes {
		if strings.TrimSpace(b.Word) == "" {
			continue
		}
		sum += b.Confidence
		words = append(words, models.WordBox{
			Text:       b.Word,
			X:          b.Box.Min.X,
			Y:          b.Box.Min.Y,
			Width:      b.Box.Dx(),
			Height:     b.Box.Dy(),
			Confidence: b.Confidence / 100,
		})
	}
	if len(words) == 0 {
		return nil, 0
	}
	return words, sum / float64(len(words))
}
