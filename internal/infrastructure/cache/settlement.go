package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entry records which intent a gateway payment settled.
type Entry struct {
	ReferenceID string
	OwnerID     string
}

func (e Entry) encode() string {
	return e.ReferenceID + "|" + e.OwnerID
}

func decode(v string) (Entry, error) {
	ref, owner, ok := strings.Cut(v, "|")
	if !ok || ref == "" {
		return Entry{}, fmt.Errorf("malformed settlement entry %q", v)
	}
	return Entry{ReferenceID: ref, OwnerID: owner}, nil
}

// Settlements is a best-effort memo of completed settlements keyed by
// gateway payment id. A miss only means the database is consulted.
type Settlements interface {
	Lookup(ctx context.Context, paymentID string) (Entry, bool, error)
	Remember(ctx context.Context, paymentID string, e Entry) error
}

// RedisSettlements stores entries in Redis with a TTL.
type RedisSettlements struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSettlements(addr string, ttl time.Duration) (*RedisSettlements, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisSettlements{client: client, ttl: ttl}, nil
}

func (c *RedisSettlements) Close() error {
	return c.client.Close()
}

func (c *RedisSettlements) Lookup(ctx context.Context, paymentID string) (Entry, bool, error) {
	v, err := c.client.Get(ctx, key(paymentID)).Result()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis get error: %w", err)
	}
	e, err := decode(v)
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

func (c *RedisSettlements) Remember(ctx context.Context, paymentID string, e Entry) error {
	if err := c.client.Set(ctx, key(paymentID), e.encode(), c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

func key(paymentID string) string {
	return "settlement:" + paymentID
}

// Nop never remembers anything.
type Nop struct{}

func (Nop) Lookup(context.Context, string) (Entry, bool, error) { return Entry{}, false, nil }
func (Nop) Remember(context.Context, string, Entry) error      { return nil }

// Memory keeps entries in a map. Used by tests and the simulator.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]string)}
}

func (m *Memory) Lookup(_ context.Context, paymentID string) (Entry, bool, error) {
	m.mu.RLock()
	v, ok := m.entries[paymentID]
	m.mu.RUnlock()
	if !ok {
		return Entry{}, false, nil
	}
	e, err := decode(v)
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

func (m *Memory) Remember(_ context.Context, paymentID string, e Entry) error {
	m.mu.Lock()
	m.entries[paymentID] = e.encode()
	m.mu.Unlock()
	return nil
}
