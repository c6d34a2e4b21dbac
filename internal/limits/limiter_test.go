package limits

import (
	"context"
	"strconv"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T) (*RateLimiter, *miniredis.Miniredis, func()) {
	t.Helper()
	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	limiter := NewRateLimiter(client, "login")
	cleanup := func() {
		client.Close()
		server.Close()
	}
	return limiter, server, cleanup
}

func TestRateLimiterAllowPerMinute(t *testing.T) {
	limiter, _, cleanup := newTestLimiter(t)
	defer cleanup()

	fixed := time.Date(2024, 3, 15, 12, 0, 10, 0, time.UTC)
	limiter.now = func() time.Time { return fixed }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := limiter.AllowPerMinute(ctx, "10.0.0.1", 2); err != nil {
			t.Fatalf("attempt %d should pass: %v", i+1, err)
		}
	}
	if err := limiter.AllowPerMinute(ctx, "10.0.0.1", 2); err != ErrLimitExceeded {
		t.Fatalf("expected limit error, got %v", err)
	}
	if err := limiter.AllowPerMinute(ctx, "10.0.0.2", 2); err != nil {
		t.Fatalf("other key should pass: %v", err)
	}

	fixed = fixed.Add(time.Minute)
	if err := limiter.AllowPerMinute(ctx, "10.0.0.1", 2); err != nil {
		t.Fatalf("next window should pass: %v", err)
	}
}

func TestRateLimiterSetsWindowExpiry(t *testing.T) {
	limiter, server, cleanup := newTestLimiter(t)
	defer cleanup()

	fixed := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return fixed }

	if err := limiter.AllowPerMinute(context.Background(), "k", 5); err != nil {
		t.Fatalf("allow: %v", err)
	}
	key := "login:k:" + strconv.FormatInt(fixed.Unix()/60, 10)
	if ttl := server.TTL(key); ttl != time.Minute {
		t.Fatalf("expected ttl of one minute on %s, got %v", key, ttl)
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	var nilLimiter *RateLimiter
	if err := nilLimiter.AllowPerMinute(context.Background(), "k", 1); err != nil {
		t.Fatalf("nil limiter should allow: %v", err)
	}
	limiter, _, cleanup := newTestLimiter(t)
	defer cleanup()
	for i := 0; i < 5; i++ {
		if err := limiter.AllowPerMinute(context.Background(), "k", 0); err != nil {
			t.Fatalf("zero limit should allow: %v", err)
		}
	}
}
