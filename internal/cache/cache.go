// Package cache holds read-path responses (standings, leaderboards, stats)
// in Redis so they are not recomputed on every request.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/go-redis/redis/v8"
)

// Keys used by the read paths. Everything under Prefix is dropped on
// invalidation.
const (
	Prefix          = "tourpoule:"
	KeyStandings    = Prefix + "standings"
	KeyPopular      = Prefix + "stats:popular"
	KeyTopRiders    = Prefix + "stats:top"
	keyLeaderboardF = Prefix + "leaderboard:%d"
)

// LeaderboardKey returns the cache key of a stage leaderboard.
func LeaderboardKey(stageID int) string {
	return fmt.Sprintf(keyLeaderboardF, stageID)
}

// Cache stores JSON documents.
type Cache interface {
	// GetJSON unmarshals the cached value into v and reports whether the key
	// existed.
	GetJSON(ctx context.Context, key string, v any) (bool, error)
	SetJSON(ctx context.Context, key string, v any) error
	// Invalidate removes every cached read-path document.
	Invalidate(ctx context.Context) error
}

// RedisCache is a Cache backed by Redis.
type RedisCache struct {
	conn *redis.Client
	ttl  time.Duration
}

// NewRedisCache connects to the Redis server at url (redis://host:port/db).
// A zero ttl keeps entries until they are invalidated.
func NewRedisCache(ctx context.Context, url string, ttl time.Duration) (*RedisCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &RedisCache{conn: client, ttl: ttl}, nil
}

// GetJSON retrieves a JSON string and unmarshals it into v.
func (rc *RedisCache) GetJSON(ctx context.Context, key string, v any) (bool, error) {
	s, err := rc.conn.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return false, fmt.Errorf("unmarshaling cached JSON for %q: %w", key, err)
	}
	return true, nil
}

// SetJSON stores v as a JSON string.
func (rc *RedisCache) SetJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling JSON for cache key %q: %w", key, err)
	}
	return rc.conn.Set(ctx, key, string(b), rc.ttl).Err()
}

// Invalidate deletes all keys under Prefix.
func (rc *RedisCache) Invalidate(ctx context.Context) error {
	iter := rc.conn.Scan(ctx, 0, Prefix+"*", 100).Iterator()
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
	return rc.conn.Del(ctx, keys...).Err()
}

// Close closes the connection.
func (rc *RedisCache) Close() error {
	return rc.conn.Close()
}

// Nop is used when no Redis server is configured; every lookup misses.
type Nop struct{}

func (Nop) GetJSON(context.Context, string, any) (bool, error) { return false, nil }
func (Nop) SetJSON(context.Context, string, any) error         { return nil }
func (Nop) Invalidate(context.Context) error                   { return nil }

var (
	_ Cache = (*RedisCache)(nil)
	_ Cache = Nop{}
)
