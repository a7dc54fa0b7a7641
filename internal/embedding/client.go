package embedding

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/xforce-bot/backend/pkg/circuitbreaker"
	"github.com/xforce-bot/backend/pkg/logger"
	"github.com/xforce-bot/backend/pkg/retry"
	"github.com/xforce-bot/backend/pkg/utils"
)

// Cache is an optional read-through cache keyed by text digest. A nil
// cache disables caching.
type Cache interface {
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error
}

type Client struct {
	client      *openai.Client
	model       string
	dim         int
	cache       Cache
	cacheTTL    time.Duration
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewClient(apiKey, model string, dim int, cache Cache, cacheTTL time.Duration) *Client {
	cb := circuitbreaker.New("embedding", circuitbreaker.Config{
		MaxRequests:      5,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("Embedding client initialized",
		zap.String("model", model),
		zap.Int("dim", dim),
	)

	return &Client{
		client:      openai.NewClient(apiKey),
		model:       model,
		dim:         dim,
		cache:       cache,
		cacheTTL:    cacheTTL,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

// GenerateEmbedding converts text into a dim-length vector. A vector of a
// different length is logged as a warning and returned as-is; whether the
// vector store accepts it is left to the store.
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("empty text input for embedding")
	}

	textHash := utils.HashText(text)

	if c.cache != nil {
		cached, ok, err := c.cache.GetEmbedding(ctx, textHash)
		if err != nil {
			logger.Warn("Embedding cache read failed", zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var embedding []float32

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateEmbeddings(
				ctx,
				openai.EmbeddingRequest{
					Input:      []string{text},
					Model:      openai.EmbeddingModel(c.model),
					Dimensions: c.dim,
				},
			)
			if err != nil {
				return fmt.Errorf("failed to generate embedding: %w", err)
			}

			embedding = make([]float32, len(resp.Data[0].Embedding))
			copy(embedding, resp.Data[0].Embedding)

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if len(embedding) != c.dim {
		logger.Warn("Embedding dimension mismatch",
			zap.Int("expected", c.dim),
			zap.Int("got", len(embedding)),
		)
	}

	if c.cache != nil {
		if err := c.cache.SetEmbedding(ctx, textHash, embedding, c.cacheTTL); err != nil {
			logger.Warn("Embedding cache write failed", zap.Error(err))
		}
	}

	return embedding, nil
}
