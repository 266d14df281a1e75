package gemini

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/lehigh-university-libraries/describer/internal/fetch"
	"github.com/lehigh-university-libraries/describer/internal/providers"
	"google.golang.org/api/option"
)

// ImageSource loads the bytes behind a remote image locator
type ImageSource interface {
	Fetch(ctx context.Context, src string) ([]byte, error)
}

// Gemini is a provider for Google Gemini
type Gemini struct {
	model   string
	key     providers.KeyFunc
	source  ImageSource
	timeout time.Duration
}

// New returns a new Gemini provider
func New(model string, key providers.KeyFunc, source ImageSource, timeout time.Duration) *Gemini {
	return &Gemini{
		model:   model,
		key:     key,
		source:  source,
		timeout: timeout,
	}
}

func (g *Gemini) Name() string {
	return "gemini"
}

func (g *Gemini) Model() string {
	return g.model
}

// Describe sends the prompt and inline image data to Gemini
func (g *Gemini) Describe(ctx context.Context, req providers.Request) (string, error) {
	apiKey := g.key()
	if apiKey == "" {
		return "", fmt.Errorf("gemini: %w", providers.ErrNoCredentials)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	data, err := g.load(ctx, req.Image)
	if err != nil {
		return "", err
	}
	format, err := imageFormat(data)
	if err != nil {
		return "", err
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to create new gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(g.model)
	model.SetTemperature(float32(req.Temperature))
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt), genai.ImageData(format, data))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	return responseText(resp)
}

func (g *Gemini) load(ctx context.Context, image string) ([]byte, error) {
	if strings.HasPrefix(image, "data:") {
		data, err := fetch.DecodeDataURL(image)
		if err != nil {
			return nil, fmt.Errorf("failed to decode image data: %w", err)
		}
		return data, nil
	}
	if g.source == nil {
		return nil, fmt.Errorf("no image source configured for remote locator")
	}
	data, err := g.source.Fetch(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	return data, nil
}

// imageFormat maps sniffed content to the short format name genai expects
func imageFormat(data []byte) (string, error) {
	mimeType := http.DetectContentType(data)
	switch mimeType {
	case "image/jpeg", "image/png", "image/webp", "image/gif":
		return strings.TrimPrefix(mimeType, "image/"), nil
	default:
		return "", fmt.Errorf("unsupported image type for gemini: %s", mimeType)
	}
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned from Gemini")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("empty content returned from Gemini")
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("unexpected response format from Gemini")
	}
	return sb.String(), nil
}
