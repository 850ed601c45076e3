package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Manager provides Redis-backed per-client rate limiting with a fixed
// one-minute window.
type Manager struct {
	redis *redis.Client
	rpm   int
}

// NewManager connects to Redis and verifies it with a ping
func NewManager(redisURL string, rpm int) (*Manager, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Manager{redis: client, rpm: rpm}, nil
}

func (m *Manager) Close() error { return m.redis.Close() }

// RPM returns the configured per-minute allowance
func (m *Manager) RPM() int { return m.rpm }

// Allow reports whether the client may proceed; when the window is
// exhausted it also returns the seconds until the window resets.
func (m *Manager) Allow(ctx context.Context, clientIP string) (allowed bool, resetSec int, err error) {
	now := time.Now().UTC()
	window := now.Unix() / 60
	key := fmt.Sprintf("rl:%s:%d", clientIP, window)

	pipe := m.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, err
	}
	if int(incr.Val()) > m.rpm {
		secPassed := int(now.Unix() % 60)
		return false, 60 - secPassed, nil
	}
	return true, 0, nil
}
