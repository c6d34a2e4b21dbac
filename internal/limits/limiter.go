package limits

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrLimitExceeded = errors.New("rate limit exceeded")

// RateLimiter enforces fixed-window request counts in Redis.
type RateLimiter struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRateLimiter(client *redis.Client, prefix string) *RateLimiter {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "rl"
	}
	return &RateLimiter{client: client, prefix: prefix, now: time.Now}
}

// AllowPerMinute counts one attempt for key in the current minute and
// returns ErrLimitExceeded once more than limit attempts were seen. A nil
// limiter or a non-positive limit allows everything.
func (l *RateLimiter) AllowPerMinute(ctx context.Context, key string, limit int) error {
	if l == nil || l.client == nil || limit <= 0 {
		return nil
	}
	return l.countCheck(ctx, fmt.Sprintf("%s:%s", l.prefix, key), time.Minute, limit)
}

func (l *RateLimiter) countCheck(ctx context.Context, key string, ttl time.Duration, limit int) error {
	window := l.now().UTC().Unix() / int64(ttl.Seconds())
	redisKey := fmt.Sprintf("%s:%d", key, window)

	cnt, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return err
	}
	if cnt == 1 {
		l.client.Expire(ctx, redisKey, ttl)
	}
	if int(cnt) > limit {
		return ErrLimitExceeded
	}
	return nil
}
