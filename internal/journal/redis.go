package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/saaga0h/jeeves-autolight/pkg/redis"
)

// RedisSink keeps the most recent entries per automation in a capped list
type RedisSink struct {
	client redis.Client
	length int
	ttl    time.Duration
}

// NewRedisSink keeps length entries per automation, expiring idle lists
// after ttl. Zero disables the respective limit.
func NewRedisSink(client redis.Client, length int, ttl time.Duration) *RedisSink {
	return &RedisSink{
		client: client,
		length: length,
		ttl:    ttl,
	}
}

// Append implements Sink
func (s *RedisSink) Append(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}

	key := redis.SwitchHistoryKey(entry.AutoLight)
	if err := s.client.LPush(ctx, key, data); err != nil {
		return fmt.Errorf("failed to push journal entry: %w", err)
	}
	if s.length > 0 {
		if err := s.client.LTrim(ctx, key, 0, int64(s.length-1)); err != nil {
			return fmt.Errorf("failed to trim switch history: %w", err)
		}
	}
	if s.ttl > 0 {
		if err := s.client.Expire(ctx, key, s.ttl); err != nil {
			return fmt.Errorf("failed to set switch history TTL: %w", err)
		}
	}
	return nil
}

// Recent returns up to n entries for an automation, newest first. Entries
// that fail to decode are skipped.
func (s *RedisSink) Recent(ctx context.Context, autoLight string, n int) ([]Entry, error) {
	if n <= 0 {
		return []Entry{}, nil
	}
	raw, err := s.client.LRange(ctx, redis.SwitchHistoryKey(autoLight), 0, int64(n-1))
	if err != nil {
		return nil, fmt.Errorf("failed to read switch history: %w", err)
	}

	entries := make([]Entry, 0, len(raw))
	for _, r := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}
