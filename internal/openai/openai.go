package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lehigh-university-libraries/describer/internal/providers"
)

const DefaultURL = "https://api.openai.com/v1/chat/completions"

// OpenAI is a provider for OpenAI-compatible chat completion endpoints
type OpenAI struct {
	url    string
	model  string
	key    providers.KeyFunc
	client *http.Client
}

// New returns a new OpenAI provider
func New(url, model string, key providers.KeyFunc, timeout time.Duration) *OpenAI {
	if url == "" {
		url = DefaultURL
	}
	return &OpenAI{
		url:    url,
		model:  model,
		key:    key,
		client: &http.Client{Timeout: timeout},
	}
}

func (o *OpenAI) Name() string {
	return "openai"
}

func (o *OpenAI) Model() string {
	return o.model
}

type textPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type message struct {
	Role    string     `json:"role"`
	Content []textPart `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

// Describe sends the image and prompt as a single user message
func (o *OpenAI) Describe(ctx context.Context, req providers.Request) (string, error) {
	apiKey := o.key()
	if apiKey == "" {
		return "", fmt.Errorf("openai: %w", providers.ErrNoCredentials)
	}

	requestBody, err := json.Marshal(chatRequest{
		Model: o.model,
		Messages: []message{
			{
				Role: "user",
				Content: []textPart{
					{Type: "text", Text: req.Prompt},
					{Type: "image_url", ImageURL: &imageURL{URL: req.Image}},
				},
			},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.url, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &providers.StatusError{Provider: o.Name(), StatusCode: resp.StatusCode, Body: string(body)}
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from OpenAI")
	}

	return response.Choices[0].Message.Content, nil
}
