package backend

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrRefreshTokenInvalid is returned for unknown, used or expired refresh
// tokens.
var ErrRefreshTokenInvalid = errors.New("invalid or expired refresh token")

// RefreshStore keeps refresh tokens by hash. Consume is single-use: a token
// can be exchanged once.
type RefreshStore interface {
	Save(ctx context.Context, hash, accountID string, ttl time.Duration) error
	Consume(ctx context.Context, hash string) (accountID string, err error)
	Revoke(ctx context.Context, hash string) error
}

type refreshEntry struct {
	accountID string
	expires   time.Time
}

// MemoryRefreshStore is a RefreshStore in process memory.
type MemoryRefreshStore struct {
	mu      sync.Mutex
	entries map[string]refreshEntry
	now     func() time.Time
}

// NewMemoryRefreshStore returns an empty store.
func NewMemoryRefreshStore() *MemoryRefreshStore {
	return &MemoryRefreshStore{entries: make(map[string]refreshEntry), now: time.Now}
}

func (s *MemoryRefreshStore) Save(ctx context.Context, hash, accountID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[hash] = refreshEntry{accountID: accountID, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemoryRefreshStore) Consume(ctx context.Context, hash string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[hash]
	delete(s.entries, hash)
	if !ok || s.now().After(e.expires) {
		return "", ErrRefreshTokenInvalid
	}
	return e.accountID, nil
}

func (s *MemoryRefreshStore) Revoke(ctx context.Context, hash string) error {
	s.mu.Lock()
	delete(s.entries, hash)
	s.mu.Unlock()
	return nil
}

// RedisRefreshStore keeps refresh tokens in redis under refresh:<hash> with
// the token's TTL.
type RedisRefreshStore struct {
	client *redis.Client
}

// NewRedisRefreshStore wraps client.
func NewRedisRefreshStore(client *redis.Client) *RedisRefreshStore {
	return &RedisRefreshStore{client: client}
}

func refreshKey(hash string) string { return "refresh:" + hash }

func (s *RedisRefreshStore) Save(ctx context.Context, hash, accountID string, ttl time.Duration) error {
	return s.client.Set(ctx, refreshKey(hash), accountID, ttl).Err()
}

func (s *RedisRefreshStore) Consume(ctx context.Context, hash string) (string, error) {
	var get *redis.StringCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.Get(ctx, refreshKey(hash))
		pipe.Del(ctx, refreshKey(hash))
		return nil
	})
	if errors.Is(err, redis.Nil) {
		return "", ErrRefreshTokenInvalid
	}
	if err != nil {
		return "", err
	}
	return get.Val(), nil
}

func (s *RedisRefreshStore) Revoke(ctx context.Context, hash string) error {
	return s.client.Del(ctx, refreshKey(hash)).Err()
}

// Ping checks the redis connection.
func (s *RedisRefreshStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
