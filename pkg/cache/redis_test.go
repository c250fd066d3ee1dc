package cache_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/takuya-f/kabu-recorder/pkg/cache"
	"github.com/takuya-f/kabu-recorder/pkg/models"
)

func setup(t *testing.T) (*cache.SnapshotCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return cache.NewSnapshotCache(rdb, 1*time.Hour), mr
}

func TestSnapshotCache_SetAndGet(t *testing.T) {
	c, mr := setup(t)

	rec := &models.Record{
		Symbol:       "6537",
		Time:         "20240115-093015.000000",
		CurrentPrice: decimal.RequireFromString("1234.5"),
	}

	if err := c.SetLatest(context.Background(), rec); err != nil {
		t.Fatalf("SetLatest: %v", err)
	}

	if !mr.Exists("stock:6537") {
		t.Fatal("expected stock:6537 key in redis")
	}
	if ttl := mr.TTL("stock:6537"); ttl != 1*time.Hour {
		t.Errorf("TTL = %v, want 1h", ttl)
	}

	payload, err := c.GetLatest(context.Background(), "6537")
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}

	var back models.Record
	if err := json.Unmarshal(payload, &back); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if !back.CurrentPrice.Equal(rec.CurrentPrice) {
		t.Errorf("price = %s, want %s", back.CurrentPrice, rec.CurrentPrice)
	}
}

func TestSnapshotCache_MissReturnsErrNoSnapshot(t *testing.T) {
	c, _ := setup(t)

	_, err := c.GetLatest(context.Background(), "9999")
	if !errors.Is(err, cache.ErrNoSnapshot) {
		t.Errorf("err = %v, want ErrNoSnapshot", err)
	}
}

func TestSnapshotCache_Overwrite(t *testing.T) {
	c, _ := setup(t)
	ctx := context.Background()

	first := &models.Record{Symbol: "6537", Time: "20240115-093015.000000"}
	second := &models.Record{Symbol: "6537", Time: "20240115-093016.000000"}

	if err := c.SetLatest(ctx, first); err != nil {
		t.Fatalf("SetLatest: %v", err)
	}
	if err := c.SetLatest(ctx, second); err != nil {
		t.Fatalf("SetLatest: %v", err)
	}

	payload, err := c.GetLatest(ctx, "6537")
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	var back models.Record
	if err := json.Unmarshal(payload, &back); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if back.Time != second.Time {
		t.Errorf("snapshot time = %s, want %s", back.Time, second.Time)
	}
}
