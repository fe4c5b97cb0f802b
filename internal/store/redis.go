package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis wraps the redis client used for the check-in queue and the
// worker's per-unit daily tallies.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to redis with short timeouts.
func NewRedis(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &Redis{Client: client}
}

// Healthy verifies redis connectivity.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

// tallyTTL keeps daily counters around long enough for a month of
// retrospective dashboards.
const tallyTTL = 40 * 24 * time.Hour

func tallyKey(unitID string, day time.Time) string {
	return fmt.Sprintf("attendtrack:tally:%s:%s", unitID, day.UTC().Format("2006-01-02"))
}

// IncrDailyTally bumps the check-in counter for a unit and day.
func (r *Redis) IncrDailyTally(ctx context.Context, unitID string, day time.Time) error {
	key := tallyKey(unitID, day)
	pipe := r.Client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, tallyTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// DailyTally reads the check-in counter for a unit and day; missing keys
// read as zero.
func (r *Redis) DailyTally(ctx context.Context, unitID string, day time.Time) (int64, error) {
	n, err := r.Client.Get(ctx, tallyKey(unitID, day)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}
