// Package redis caches provider embeddings in Redis.
package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/flarexio/copilot"
	"github.com/flarexio/copilot/vector"
)

const keyPrefix = "copilot:embedding:"

// NewClient accepts either a redis:// URL or a plain host:port address.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(url, "redis://") || strings.HasPrefix(url, "rediss://") {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}

		client = redis.NewClient(opts)
	} else {
		client = redis.NewClient(&redis.Options{
			Addr: url,
		})
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// EmbeddingCache stores the vectors of the wrapped provider. Only
// successful provider results are cached, so local fallback vectors never
// land here.
type EmbeddingCache struct {
	client redis.Cmdable
	next   copilot.EmbeddingProvider
	model  string
	ttl    time.Duration
	log    *zap.Logger
}

func NewEmbeddingCache(client redis.Cmdable, next copilot.EmbeddingProvider, model string, ttl time.Duration) *EmbeddingCache {
	log := zap.L().With(
		zap.String("component", "embedding_cache"),
		zap.String("model", model),
	)

	return &EmbeddingCache{
		client: client,
		next:   next,
		model:  model,
		ttl:    ttl,
		log:    log,
	}
}

func Key(model string, text string) string {
	sum := sha256.Sum256([]byte(text))
	return keyPrefix + model + ":" + hex.EncodeToString(sum[:])
}

// Embed serves from the cache when possible. Cache failures are logged
// and bypassed.
func (c *EmbeddingCache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := Key(c.model, text)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if vec := vector.Decode(data); len(vec) > 0 {
			return vec, nil
		}

	case errors.Is(err, redis.Nil):

	default:
		c.log.Warn("cache read failed", zap.Error(err))
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if len(vec) == 0 {
		return vec, nil
	}

	if err := c.client.Set(ctx, key, vector.Encode(vec), c.ttl).Err(); err != nil {
		c.log.Warn("cache write failed", zap.Error(err))
	}

	return vec, nil
}
