package cache

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/quizroom/quizroom-backend/internal/config"
	"github.com/redis/go-redis/v9"
)

// DeadlineIndex tracks open timed attempts in a sorted set scored by their
// deadline so the expiry worker can find due attempts without scanning
// Postgres.
type DeadlineIndex struct {
	rdb *redis.Client
	key string
}

// NewDeadlineIndex creates a DeadlineIndex on the shared attempts key.
func NewDeadlineIndex(rdb *redis.Client) *DeadlineIndex {
	return &DeadlineIndex{rdb: rdb, key: config.CacheKey.AttemptDeadlines}
}

// Track registers an attempt deadline. Re-tracking overwrites the score.
func (d *DeadlineIndex) Track(ctx context.Context, attemptID uuid.UUID, endsAt time.Time) error {
	return d.rdb.ZAdd(ctx, d.key, redis.Z{
		Score:  deadlineScore(endsAt),
		Member: attemptID.String(),
	}).Err()
}

// Forget removes an attempt, typically once it is finished.
func (d *DeadlineIndex) Forget(ctx context.Context, attemptID uuid.UUID) error {
	return d.rdb.ZRem(ctx, d.key, attemptID.String()).Err()
}

// ClaimDue returns up to limit attempts whose deadline is at or before now and
// removes them from the index. A member is only returned to the caller whose
// ZREM actually removed it, so concurrent workers never claim the same id.
func (d *DeadlineIndex) ClaimDue(ctx context.Context, now time.Time, limit int64) ([]uuid.UUID, error) {
	members, err := d.rdb.ZRangeByScore(ctx, d.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatFloat(float64(now.UnixMilli())/1000, 'f', 3, 64),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("range due attempts: %w", err)
	}

	claimed := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		removed, err := d.rdb.ZRem(ctx, d.key, m).Result()
		if err != nil {
			return claimed, fmt.Errorf("claim %s: %w", m, err)
		}
		if removed == 0 {
			continue
		}
		id, err := uuid.Parse(m)
		if err != nil {
			continue
		}
		claimed = append(claimed, id)
	}
	return claimed, nil
}

// deadlineScore is the deadline in unix seconds with millisecond precision,
// rounded up so an attempt is never claimed before it has expired.
func deadlineScore(endsAt time.Time) float64 {
	ms := math.Ceil(float64(endsAt.UnixMicro()) / 1000)
	return ms / 1000
}

// Len reports how many attempts are tracked.
func (d *DeadlineIndex) Len(ctx context.Context) (int64, error) {
	return d.rdb.ZCard(ctx, d.key).Result()
}
