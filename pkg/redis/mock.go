package redis

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockClient is an in-memory Client for tests. Strings, hashes and lists
// live in separate maps; TTLs are recorded but never enforced.
type MockClient struct {
	mu      sync.Mutex
	strings map[string]string
	hashes  map[string]map[string]string
	lists   map[string][]string
	ttls    map[string]time.Duration

	// Err, when set, is returned by every command
	Err error
}

// NewMockClient creates an empty MockClient
func NewMockClient() *MockClient {
	return &MockClient{
		strings: make(map[string]string),
		hashes:  make(map[string]map[string]string),
		lists:   make(map[string][]string),
		ttls:    make(map[string]time.Duration),
	}
}

func (m *MockClient) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	v, ok := m.strings[key]
	if !ok {
		return "", fmt.Errorf("key %s: %w", key, ErrNotFound)
	}
	return v, nil
}

func (m *MockClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.strings[key] = fmt.Sprint(value)
	if ttl > 0 {
		m.ttls[key] = ttl
	}
	return nil
}

func (m *MockClient) HSet(ctx context.Context, key string, values ...interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if len(values)%2 != 0 {
		return fmt.Errorf("HSet %s: odd number of field/value arguments", key)
	}
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	for i := 0; i < len(values); i += 2 {
		h[fmt.Sprint(values[i])] = fmt.Sprint(values[i+1])
	}
	return nil
}

func (m *MockClient) HGet(ctx context.Context, key string, field string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	v, ok := m.hashes[key][field]
	if !ok {
		return "", fmt.Errorf("field %s of %s: %w", field, key, ErrNotFound)
	}
	return v, nil
}

func (m *MockClient) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make(map[string]string, len(m.hashes[key]))
	for k, v := range m.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (m *MockClient) LPush(ctx context.Context, key string, values ...interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, v := range values {
		var s string
		switch b := v.(type) {
		case []byte:
			s = string(b)
		default:
			s = fmt.Sprint(v)
		}
		m.lists[key] = append([]string{s}, m.lists[key]...)
	}
	return nil
}

func (m *MockClient) LTrim(ctx context.Context, key string, start, stop int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	l := m.lists[key]
	from, to, ok := listRange(len(l), start, stop)
	if !ok {
		delete(m.lists, key)
		return nil
	}
	m.lists[key] = append([]string(nil), l[from:to]...)
	return nil
}

func (m *MockClient) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	l := m.lists[key]
	from, to, ok := listRange(len(l), start, stop)
	if !ok {
		return []string{}, nil
	}
	return append([]string(nil), l[from:to]...), nil
}

func (m *MockClient) Expire(ctx context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.ttls[key] = ttl
	return nil
}

func (m *MockClient) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Err
}

func (m *MockClient) Close() error {
	return nil
}

// TTL returns the expiry recorded for key
func (m *MockClient) TTL(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ttls[key]
}

// listRange converts Redis inclusive, possibly negative, indexes into a
// half-open slice range
func listRange(n int, start, stop int64) (int, int, bool) {
	if start < 0 {
		start += int64(n)
	}
	if stop < 0 {
		stop += int64(n)
	}
	if start < 0 {
		start = 0
	}
	if stop >= int64(n) {
		stop = int64(n) - 1
	}
	if start > stop || n == 0 {
		return 0, 0, false
	}
	return int(start), int(stop) + 1, true
}
