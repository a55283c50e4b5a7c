// Package embedding adapts the OpenAI embeddings API behind retries, a
// circuit breaker, and two memoization layers. Callers treat any returned
// error as "embedding unavailable" and fall back to deterministic scoring.
package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/alignlens/backend/internal/metrics"
	"github.com/alignlens/backend/pkg/circuitbreaker"
	"github.com/alignlens/backend/pkg/logger"
	"github.com/alignlens/backend/pkg/retry"
	"github.com/alignlens/backend/pkg/utils"
)

// maxMemoEntries bounds the in-process layer; the map is dropped wholesale
// when it fills.
const maxMemoEntries = 4096

// VectorCache is the optional cross-process memoization layer (redis).
type VectorCache interface {
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error
}

type Client struct {
	client      *openai.Client
	model       string
	timeout     time.Duration
	cacheTTL    time.Duration
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
	cache       VectorCache

	mu   sync.RWMutex
	memo map[string][]float32
}

func NewClient(apiKey, model string, timeoutSec, maxAttempts int, cacheTTL time.Duration, cache VectorCache) *Client {
	cb := circuitbreaker.New("embedding", circuitbreaker.Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    maxAttempts,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("Embedding client initialized",
		zap.String("model", model),
		zap.Int("max_attempts", maxAttempts),
	)

	return &Client{
		client:      openai.NewClient(apiKey),
		model:       model,
		timeout:     time.Duration(timeoutSec) * time.Second,
		cacheTTL:    cacheTTL,
		cb:          cb,
		retryConfig: retryConfig,
		cache:       cache,
		memo:        make(map[string][]float32),
	}
}

// Embed returns the vector for text, consulting the in-process memo, then the
// shared cache, then the API.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	key := utils.HashString(c.model + "\x00" + text)

	if vec, ok := c.fromMemo(key); ok {
		metrics.CacheHits.WithLabelValues("memo").Inc()
		return vec, nil
	}

	if c.cache != nil {
		vec, ok, err := c.cache.GetEmbedding(ctx, key)
		if err != nil {
			logger.Warn("Embedding cache lookup failed", zap.Error(err))
		} else if ok {
			metrics.CacheHits.WithLabelValues("redis").Inc()
			c.storeMemo(key, vec)
			return vec, nil
		}
	}
	metrics.CacheMisses.WithLabelValues("embedding").Inc()

	vec, err := c.fetch(ctx, text)
	if err != nil {
		metrics.EmbeddingRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.EmbeddingRequests.WithLabelValues("ok").Inc()

	c.storeMemo(key, vec)
	if c.cache != nil {
		if err := c.cache.SetEmbedding(ctx, key, vec, c.cacheTTL); err != nil {
			logger.Warn("Embedding cache write failed", zap.Error(err))
		}
	}
	return vec, nil
}

// EmbedBatch embeds several texts in one API round trip.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var embeddings [][]float32
	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateEmbeddings(
				ctx,
				openai.EmbeddingRequest{
					Input: texts,
					Model: openai.EmbeddingModel(c.model),
				},
			)
			if err != nil {
				return fmt.Errorf("failed to generate batch embeddings: %w", err)
			}

			embeddings = make([][]float32, 0, len(resp.Data))
			for _, data := range resp.Data {
				vec := make([]float32, len(data.Embedding))
				copy(vec, data.Embedding)
				embeddings = append(embeddings, vec)
			}
			return nil
		})
	})
	if err != nil {
		metrics.EmbeddingRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.EmbeddingRequests.WithLabelValues("ok").Inc()

	for i, text := range texts {
		c.storeMemo(utils.HashString(c.model+"\x00"+text), embeddings[i])
	}
	return embeddings, nil
}

func (c *Client) fetch(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var embedding []float32
	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateEmbeddings(
				ctx,
				openai.EmbeddingRequest{
					Input: []string{text},
					Model: openai.EmbeddingModel(c.model),
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
	return embedding, nil
}

func (c *Client) fromMemo(key string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	vec, ok := c.memo[key]
	return vec, ok
}

func (c *Client) storeMemo(key string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.memo) >= maxMemoEntries {
		c.memo = make(map[string][]float32)
	}
	c.memo[key] = vec
}
