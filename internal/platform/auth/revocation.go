package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// ErrRevocationUnavailable is returned when the store cannot answer. The
// session middleware maps it to an unresolved session.
var ErrRevocationUnavailable = errors.New("revocation store unavailable")

// RevocationStore tracks signed-out session tokens by jti until the token
// would have expired anyway.
type RevocationStore interface {
	Revoke(ctx context.Context, jti, accountID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// RevocationRecord is what gets stored for a revoked jti.
type RevocationRecord struct {
	AccountID string    `json:"account_id"`
	RevokedAt time.Time `json:"revoked_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ---- Redis ----

// RedisRevocationStore keeps revocations under revoked:<jti> with a TTL equal
// to the token's remaining lifetime.
type RedisRevocationStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisRevocationStore(client *redis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{client: client, prefix: "revoked:", now: time.Now}
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, jti, accountID string, expiresAt time.Time) error {
	now := s.now()
	ttl := expiresAt.Sub(now)
	if ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(RevocationRecord{AccountID: accountID, RevokedAt: now.UTC(), ExpiresAt: expiresAt.UTC()})
	if err != nil {
		return fmt.Errorf("encode revocation: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+jti, payload, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
	}
	return nil
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
	}
	return n > 0, nil
}

// Ping reports whether Redis is reachable, for the readiness endpoint.
func (s *RedisRevocationStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// ---- In memory ----

// MemoryRevocationStore is the single-process store used when REDIS_URL is
// not configured and in tests. Expired entries are dropped lazily.
type MemoryRevocationStore struct {
	mu      sync.RWMutex
	entries map[string]RevocationRecord
	now     func() time.Time
}

func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{entries: make(map[string]RevocationRecord), now: time.Now}
}

func (s *MemoryRevocationStore) Revoke(_ context.Context, jti, accountID string, expiresAt time.Time) error {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[jti] = RevocationRecord{AccountID: accountID, RevokedAt: now, ExpiresAt: expiresAt}
	for id, rec := range s.entries {
		if now.After(rec.ExpiresAt) {
			delete(s.entries, id)
		}
	}
	return nil
}

func (s *MemoryRevocationStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.entries[jti]
	if !ok {
		return false, nil
	}
	return !s.now().After(rec.ExpiresAt), nil
}

// Count returns the number of tracked revocations, expired ones included.
func (s *MemoryRevocationStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
