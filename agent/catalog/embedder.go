package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Embedder turns documents into vectors. Output order follows input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

type EmbeddingConfig struct {
	BaseURL   string        `envconfig:"BASE_URL" default:"https://api.openai.com/v1"`
	APIKey    string        `envconfig:"API_KEY" required:"true"`
	Model     string        `envconfig:"MODEL" default:"text-embedding-3-small"`
	BatchSize int           `envconfig:"BATCH_SIZE" default:"64"`
	Timeout   time.Duration `envconfig:"TIMEOUT" default:"30s"`
}

type OpenAIEmbedder struct {
	client    openaisdk.Client
	model     string
	batchSize int
}

func NewOpenAIEmbedder(cfg EmbeddingConfig) (*OpenAIEmbedder, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errors.New("embedding api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, errors.New("embedding model is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(key)}
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 64
	}
	return &OpenAIEmbedder{
		client:    openaisdk.NewClient(opts...),
		model:     model,
		batchSize: batch,
	}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))

		resp, err := e.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
			Input: openaisdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts[start:end]},
			Model: openaisdk.EmbeddingModel(e.model),
		})
		if err != nil {
			return nil, fmt.Errorf("create embeddings: %w", err)
		}
		for _, d := range resp.Data {
			i := start + int(d.Index)
			if i < start || i >= end {
				return nil, fmt.Errorf("embedding index %d out of range", d.Index)
			}
			out[i] = d.Embedding
		}
	}

	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("missing embedding for document %d", i)
		}
	}
	return out, nil
}
