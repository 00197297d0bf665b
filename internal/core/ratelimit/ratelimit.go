package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/primaruang/realty-crm-be/internal/shared/utils"
)

const connectTimeout = 5 * time.Second

// Limiter is a per-key sliding-window rate limiter. With redis configured the
// window lives in a sorted set shared across instances; without it, or when
// redis drops mid-flight, an in-process window takes over.
type Limiter struct {
	rdb    *redis.Client
	max    int
	window time.Duration

	mu      sync.Mutex
	windows map[string][]time.Time
	lastGC  time.Time
}

func New(redisAddr string, max int, window time.Duration) *Limiter {
	l := &Limiter{
		max:     max,
		window:  window,
		windows: make(map[string][]time.Time),
		lastGC:  time.Now(),
	}

	if redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: redisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			utils.LogWarn("rate limiter: redis unavailable, using in-process window", map[string]interface{}{
				"addr":  redisAddr,
				"error": err.Error(),
			})
			_ = client.Close()
		} else {
			l.rdb = client
		}
	}

	return l
}

// Allow records one request against key and reports whether it stays within
// the window.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	if l.rdb != nil {
		allowed, err := l.allowRedis(ctx, key)
		if err == nil {
			return allowed
		}
	}
	return l.allowMemory(key)
}

// allowRedis prunes expired members, counts the window and adds this request
// in one transaction. A denied request takes its own member back out.
func (l *Limiter) allowRedis(ctx context.Context, key string) (bool, error) {
	now := time.Now()
	redisKey := "rl:" + key
	member := fmt.Sprintf("%d:%s", now.UnixMilli(), uuid.NewString())
	cutoff := strconv.FormatInt(now.Add(-l.window).UnixMilli(), 10)

	pipe := l.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", cutoff)
	card := pipe.ZCard(ctx, redisKey)
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixMilli()), Member: member})
	pipe.PExpire(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	if card.Val() >= int64(l.max) {
		_ = l.rdb.ZRem(ctx, redisKey, member).Err()
		return false, nil
	}
	return true, nil
}

func (l *Limiter) allowMemory(key string) bool {
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastGC) > time.Minute {
		l.lastGC = now
		for k, stamps := range l.windows {
			kept := prune(stamps, cutoff)
			if len(kept) == 0 {
				delete(l.windows, k)
			} else {
				l.windows[k] = kept
			}
		}
	}

	stamps := prune(l.windows[key], cutoff)
	if len(stamps) >= l.max {
		l.windows[key] = stamps
		return false
	}
	l.windows[key] = append(stamps, now)
	return true
}

func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}

// Middleware guards a route; prefix isolates buckets so chat traffic cannot
// exhaust the auth budget.
func (l *Limiter) Middleware(prefix string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !l.Allow(c.Context(), prefix+":"+c.IP()) {
			c.Set("Retry-After", strconv.Itoa(int(l.window.Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "too many requests"})
		}
		return c.Next()
	}
}

func (l *Limiter) Close() error {
	if l.rdb != nil {
		return l.rdb.Close()
	}
	return nil
}
