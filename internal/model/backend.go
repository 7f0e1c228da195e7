package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"google.golang.org/genai"
)

// Backend is the set of generative-model primitives the Invoker composes.
type Backend interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateVideos(ctx context.Context, model, prompt string, config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error)
	GetVideosOperation(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error)
	// Download fetches generated media by URI, returning its bytes and content type.
	Download(ctx context.Context, uri string) ([]byte, string, error)
}

// GenAIBackend implements Backend against the Gemini API.
type GenAIBackend struct {
	client *genai.Client
	http   *resty.Client
}

// NewGenAIBackend creates a Gemini API backend authenticated with apiKey.
func NewGenAIBackend(ctx context.Context, apiKey string) (*GenAIBackend, error) {
	if apiKey == "" {
		return nil, errors.New("genai api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GenAIBackend{
		client: client,
		http:   resty.New().SetHeader("x-goog-api-key", apiKey),
	}, nil
}

// GenerateContent performs a single generation turn.
func (b *GenAIBackend) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return b.client.Models.GenerateContent(ctx, model, contents, config)
}

// GenerateVideos starts a long-running video generation job.
func (b *GenAIBackend) GenerateVideos(ctx context.Context, model, prompt string, config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error) {
	return b.client.Models.GenerateVideos(ctx, model, prompt, nil, config)
}

// GetVideosOperation refreshes the state of a video job.
func (b *GenAIBackend) GetVideosOperation(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
	return b.client.Operations.GetVideosOperation(ctx, op, nil)
}

// Download fetches a generated file, authenticating with the API key header.
func (b *GenAIBackend) Download(ctx context.Context, uri string) ([]byte, string, error) {
	resp, err := b.http.R().SetContext(ctx).Get(uri)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download media: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, "", fmt.Errorf("failed to download media: status code %d", resp.StatusCode())
	}
	return resp.Body(), resp.Header().Get("Content-Type"), nil
}
