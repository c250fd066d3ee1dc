package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/takuya-f/kabu-recorder/pkg/models"
)

const keyPrefix = "stock:"

// ErrNoSnapshot is returned when a symbol has no cached latest record.
var ErrNoSnapshot = errors.New("no snapshot for symbol")

// SnapshotCache keeps the most recent record per symbol in Redis so the API
// can serve "latest" lookups without touching the range store. The TTL keeps
// stale symbols from accumulating.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *SnapshotCache) SetLatest(ctx context.Context, rec *models.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+rec.Symbol, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache snapshot for %s: %w", rec.Symbol, err)
	}
	return nil
}

// GetLatest returns the cached record JSON for the symbol.
func (c *SnapshotCache) GetLatest(ctx context.Context, symbol string) ([]byte, error) {
	payload, err := c.client.Get(ctx, keyPrefix+symbol).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot for %s: %w", symbol, err)
	}
	return payload, nil
}

func (c *SnapshotCache) Close() error {
	return c.client.Close()
}
