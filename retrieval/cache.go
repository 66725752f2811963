package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"log/slog"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sweetpotato0/notelm/pkg/logging"
)

// RedisQueryCache stores query embeddings in Redis. Cache errors are
// logged and otherwise ignored so Redis outages never break retrieval.
type RedisQueryCache struct {
	client *redis.Client
	model  string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisQueryCache creates a cache keyed by embedding model so a
// model change never serves stale vectors.
func NewRedisQueryCache(client *redis.Client, embeddingModel string, ttl time.Duration) *RedisQueryCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisQueryCache{
		client: client,
		model:  embeddingModel,
		ttl:    ttl,
		logger: logging.WithComponent("querycache"),
	}
}

var _ QueryCache = (*RedisQueryCache)(nil)

func (c *RedisQueryCache) key(query string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + query))
	return "notelm:qemb:" + hex.EncodeToString(sum[:])
}

func (c *RedisQueryCache) Get(ctx context.Context, query string) ([]float32, bool) {
	raw, err := c.client.Get(ctx, c.key(query)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("cache get failed", "error", err)
		return nil, false
	}
	vec, ok := decodeVector(raw)
	return vec, ok
}

func (c *RedisQueryCache) Put(ctx context.Context, query string, vec []float32) {
	if err := c.client.Set(ctx, c.key(query), encodeVector(vec), c.ttl).Err(); err != nil {
		c.logger.Warn("cache put failed", "error", err)
	}
}

func encodeVector(vec []float32) []byte {
	out := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}

func decodeVector(raw []byte) ([]float32, bool) {
	if len(raw) == 0 || len(raw)%4 != 0 {
		return nil, false
	}
	vec := make([]float32, len(raw)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return vec, true
}
