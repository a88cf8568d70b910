package enrichment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/tdalverme/umbral/internal/listing"
	"github.com/tdalverme/umbral/internal/utils"
)

const (
	defaultEmbeddingModel = "gemini-embedding-001"
	embeddingDimensions   = 768

	embedRetries    = 3
	embedRetryDelay = 2 * time.Second
)

// GeminiEmbedder produces embeddings through the Gemini API.
type GeminiEmbedder struct {
	client    *genai.Client
	modelName string
}

// NewGeminiEmbedder creates an embedder configured for the Gemini API backend.
func NewGeminiEmbedder(ctx context.Context, apiKey, model string) (*GeminiEmbedder, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultEmbeddingModel
	}

	return &GeminiEmbedder{client: client, modelName: model}, nil
}

// Embed returns the embedding vector for the given text, retrying transient
// API failures.
func (g *GeminiEmbedder) Embed(ctx context.Context, text string) (listing.Embedding, error) {
	if g == nil || g.client == nil {
		return nil, errors.New("gemini embedder is not initialized")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("embedding input must not be empty")
	}

	cfg := &genai.EmbedContentConfig{
		OutputDimensionality: genai.Ptr[int32](embeddingDimensions),
	}

	var lastErr error
	for attempt := 0; attempt < embedRetries; attempt++ {
		if attempt > 0 {
			if err := utils.WaitFor(ctx, embedRetryDelay); err != nil {
				return nil, err
			}
		}

		resp, err := g.client.Models.EmbedContent(ctx, g.modelName, genai.Text(text), cfg)
		if err != nil {
			lastErr = fmt.Errorf("embed content: %w", err)
			continue
		}

		if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
			lastErr = errors.New("gemini api returned empty embedding")
			continue
		}

		values := resp.Embeddings[0].Values
		vector := make(listing.Embedding, len(values))
		for i, v := range values {
			vector[i] = float64(v)
		}
		return vector, nil
	}

	return nil, lastErr
}

func (g *GeminiEmbedder) Model() string {
	if g == nil {
		return ""
	}
	return g.modelName
}

// Provider names the embedding backend and model for structured logging.
func (g *GeminiEmbedder) Provider() (string, string) {
	return "gemini", g.Model()
}
