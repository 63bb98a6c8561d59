package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/quizroom/quizroom-backend/internal/config"
	"github.com/quizroom/quizroom-backend/internal/model"
	"github.com/redis/go-redis/v9"
)

// SummaryCache stores relationship summaries as JSON for a short TTL.
type SummaryCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSummaryCache creates a SummaryCache. A zero ttl disables caching.
func NewSummaryCache(rdb *redis.Client, ttl time.Duration) *SummaryCache {
	return &SummaryCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached summary for topN. The bool is false on a miss.
func (c *SummaryCache) Get(ctx context.Context, topN int) (*model.RelationshipSummary, bool, error) {
	if c.ttl <= 0 {
		return nil, false, nil
	}
	raw, err := c.rdb.Get(ctx, config.CacheKey.ExplorerSummaryKey(topN)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var s model.RelationshipSummary
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false, err
	}
	return &s, true, nil
}

// Set stores a summary for topN.
func (c *SummaryCache) Set(ctx context.Context, topN int, s *model.RelationshipSummary) error {
	if c.ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, config.CacheKey.ExplorerSummaryKey(topN), raw, c.ttl).Err()
}

// Invalidate drops every cached summary size.
func (c *SummaryCache) Invalidate(ctx context.Context) error {
	iter := c.rdb.Scan(ctx, 0, config.CacheKey.ExplorerSummaryPattern(), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}
