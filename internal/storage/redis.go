package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

// DefaultSnapshotTTL is how long an exported snapshot stays retrievable.
const DefaultSnapshotTTL = time.Hour

// SnapshotSink persists memory snapshots to Redis so a pruned or restarted
// process can reload prior session context. Keys are "fxmem:snapshot:<label>"
// where label is the "product|region" form produced by ExportSnapshot.
type SnapshotSink struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotSink connects to Redis at the given URL and verifies the
// connection with a ping.
func NewSnapshotSink(ctx context.Context, url string, ttl time.Duration) (*SnapshotSink, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &SnapshotSink{client: client, ttl: ttl}, nil
}

func snapshotKey(label string) string {
	return fmt.Sprintf("fxmem:snapshot:%s", label)
}

// SaveSnapshot writes every bucket of the snapshot under its own key.
func (s *SnapshotSink) SaveSnapshot(ctx context.Context, snapshot map[string][]Entry) error {
	for label, entries := range snapshot {
		data, err := sonic.Marshal(entries)
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot bucket %s: %w", label, err)
		}
		if err := s.client.Set(ctx, snapshotKey(label), data, s.ttl).Err(); err != nil {
			return fmt.Errorf("failed to store snapshot bucket %s: %w", label, err)
		}
	}
	return nil
}

// LoadSnapshot retrieves one bucket by its "product|region" label.
func (s *SnapshotSink) LoadSnapshot(ctx context.Context, label string) ([]Entry, error) {
	data, err := s.client.Get(ctx, snapshotKey(label)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("snapshot not found: %s", label)
		}
		return nil, fmt.Errorf("failed to get snapshot bucket %s: %w", label, err)
	}

	var entries []Entry
	if err := sonic.Unmarshal([]byte(data), &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot bucket %s: %w", label, err)
	}
	return entries, nil
}

// DeleteSnapshot removes one bucket by label.
func (s *SnapshotSink) DeleteSnapshot(ctx context.Context, label string) error {
	if err := s.client.Del(ctx, snapshotKey(label)).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot bucket %s: %w", label, err)
	}
	return nil
}

// Ping tests the Redis connection.
func (s *SnapshotSink) Ping(ctx context.Context) error {
	_, err := s.client.Ping(ctx).Result()
	return err
}

// Close closes the Redis connection.
func (s *SnapshotSink) Close() error {
	return s.client.Close()
}
