package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/describer/internal/providers"
)

const DefaultURL = "https://api-inference.huggingface.co/models"

const numBeams = 4

// HuggingFace is a provider for Hugging Face image-to-text inference
type HuggingFace struct {
	url    string
	model  string
	key    providers.KeyFunc
	client *http.Client
}

// New returns a new Hugging Face provider
func New(url, model string, key providers.KeyFunc, timeout time.Duration) *HuggingFace {
	if url == "" {
		url = DefaultURL
	}
	return &HuggingFace{
		url:    strings.TrimRight(url, "/"),
		model:  model,
		key:    key,
		client: &http.Client{Timeout: timeout},
	}
}

func (h *HuggingFace) Name() string {
	return "huggingface"
}

func (h *HuggingFace) Model() string {
	return h.model
}

type parameters struct {
	MaxLength int `json:"max_length"`
	NumBeams  int `json:"num_beams"`
}

type inferenceRequest struct {
	Inputs     string     `json:"inputs"`
	Parameters parameters `json:"parameters"`
}

type generation struct {
	GeneratedText string `json:"generated_text"`
	Error         string `json:"error"`
}

// Describe captions the image. Captioning models take no instruction, so the
// prompt is not sent.
func (h *HuggingFace) Describe(ctx context.Context, req providers.Request) (string, error) {
	token := h.key()
	if token == "" {
		return "", fmt.Errorf("huggingface: %w", providers.ErrNoCredentials)
	}

	maxLength := req.MaxTokens
	if maxLength <= 0 {
		maxLength = 100
	}
	requestBody, err := json.Marshal(inferenceRequest{
		Inputs: inputs(req.Image),
		Parameters: parameters{
			MaxLength: maxLength,
			NumBeams:  numBeams,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	endpoint := h.url + "/" + h.model
	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if len(body) > 4096 {
			body = body[:4096]
		}
		return "", &providers.StatusError{Provider: h.Name(), StatusCode: resp.StatusCode, Body: string(body)}
	}

	return parseGeneration(body)
}

// inputs strips the data URL header so the model receives bare base64.
// Remote locators are passed through unchanged.
func inputs(image string) string {
	if strings.HasPrefix(image, "data:") {
		if idx := strings.Index(image, ","); idx != -1 {
			return image[idx+1:]
		}
	}
	return image
}

// parseGeneration accepts either an array of generations or a single object
func parseGeneration(body []byte) (string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", fmt.Errorf("empty response from Hugging Face")
	}

	var gen generation
	if trimmed[0] == '[' {
		var gens []generation
		if err := json.Unmarshal(trimmed, &gens); err != nil {
			return "", fmt.Errorf("failed to decode response body: %w", err)
		}
		if len(gens) == 0 {
			return "", fmt.Errorf("no generations returned from Hugging Face")
		}
		gen = gens[0]
	} else if err := json.Unmarshal(trimmed, &gen); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}

	if gen.Error != "" {
		return "", fmt.Errorf("hugging face inference error: %s", gen.Error)
	}
	text := strings.TrimSpace(gen.GeneratedText)
	if text == "" {
		return "", fmt.Errorf("empty caption returned from Hugging Face")
	}
	return text, nil
}
