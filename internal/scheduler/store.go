package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// LastSyncSetting is the ledger settings key holding the last sync time.
const LastSyncSetting = "google_calendar_last_sync"

// DefaultRedisKey is the Redis key holding the last sync time.
const DefaultRedisKey = "bookingsync:calendar:last_sync"

// LastSyncStore persists the time of the last successful sync.
type LastSyncStore interface {
	// LastSync returns the stored time; ok is false when none is stored.
	LastSync(ctx context.Context) (t time.Time, ok bool, err error)
	SetLastSync(ctx context.Context, t time.Time) error
}

// Settings is the key/value store of the ledger.
type Settings interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

// SettingsStore keeps the last sync time in the ledger settings table.
type SettingsStore struct {
	settings Settings
}

// NewSettingsStore creates a SettingsStore.
func NewSettingsStore(settings Settings) *SettingsStore {
	return &SettingsStore{settings: settings}
}

func (s *SettingsStore) LastSync(ctx context.Context) (time.Time, bool, error) {
	raw, ok, err := s.settings.GetSetting(ctx, LastSyncSetting)
	if err != nil || !ok || raw == "" {
		return time.Time{}, false, err
	}
	return parseLastSync(raw)
}

func (s *SettingsStore) SetLastSync(ctx context.Context, t time.Time) error {
	return s.settings.SetSetting(ctx, LastSyncSetting, t.UTC().Format(time.RFC3339Nano))
}

// RedisStore keeps the last sync time in Redis.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a RedisStore. An empty key selects DefaultRedisKey.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) LastSync(ctx context.Context) (time.Time, bool, error) {
	raw, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read last sync from redis: %w", err)
	}
	return parseLastSync(raw)
}

func (s *RedisStore) SetLastSync(ctx context.Context, t time.Time) error {
	if err := s.client.Set(ctx, s.key, t.UTC().Format(time.RFC3339Nano), 0).Err(); err != nil {
		return fmt.Errorf("failed to write last sync to redis: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func parseLastSync(raw string) (time.Time, bool, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid last sync time %q: %w", raw, err)
	}
	return t, true, nil
}
