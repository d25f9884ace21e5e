package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the requested key was not found in the namespace
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// DefaultKeyPrefix prefixes every Redis key written by the store.
const DefaultKeyPrefix = "edge:"

// Store holds cache namespaces in Redis. Each namespace is one hash
// (field = RequestKey, value = JSON CacheEntry); a set of namespace
// identifiers acts as the registry enumerated on activation.
//
// Writes for the same key are last-write-wins with no ordering guarantee
// between concurrent writers. Entries are whole snapshots, so the winner is
// always a complete response.
type Store struct {
	redis  *redis.Client
	prefix string
}

// NewStore creates a namespace store on redisClient.
func NewStore(redisClient *redis.Client, prefix string) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *Store) registryKey() string {
	return s.prefix + "caches"
}

func (s *Store) namespaceKey(namespace string) string {
	return s.prefix + "cache:" + namespace
}

// Open creates the namespace if it does not exist yet.
func (s *Store) Open(ctx context.Context, namespace string) error {
	if err := s.redis.SAdd(ctx, s.registryKey(), namespace).Err(); err != nil {
		CacheErrors.WithLabelValues("open").Inc()
		return fmt.Errorf("redis sadd: %w", err)
	}
	return nil
}

// Keys returns every namespace identifier, sorted.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	names, err := s.redis.SMembers(ctx, s.registryKey()).Result()
	if err != nil {
		CacheErrors.WithLabelValues("keys").Inc()
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Has reports whether the namespace exists.
func (s *Store) Has(ctx context.Context, namespace string) (bool, error) {
	ok, err := s.redis.SIsMember(ctx, s.registryKey(), namespace).Result()
	if err != nil {
		CacheErrors.WithLabelValues("keys").Inc()
		return false, fmt.Errorf("redis sismember: %w", err)
	}
	return ok, nil
}

// Match retrieves the entry stored under key in namespace.
// Returns ErrCacheMiss if absent.
func (s *Store) Match(ctx context.Context, namespace string, key RequestKey) (*CacheEntry, error) {
	data, err := s.redis.HGet(ctx, s.namespaceKey(namespace), key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.WithLabelValues(namespace).Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("match").Inc()
		return nil, fmt.Errorf("redis hget: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("match").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	CacheHits.WithLabelValues(namespace).Inc()
	return &entry, nil
}

// Put stores entry under key, creating the namespace if needed.
// An existing entry is overwritten.
func (s *Store) Put(ctx context.Context, namespace string, key RequestKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, s.registryKey(), namespace)
		pipe.HSet(ctx, s.namespaceKey(namespace), key.String(), data)
		return nil
	})
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("redis hset: %w", err)
	}

	CacheStoredBytes.WithLabelValues(namespace).Add(float64(len(data)))
	return nil
}

// Delete removes one entry. Returns true if it existed.
func (s *Store) Delete(ctx context.Context, namespace string, key RequestKey) (bool, error) {
	n, err := s.redis.HDel(ctx, s.namespaceKey(namespace), key.String()).Result()
	if err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return false, fmt.Errorf("redis hdel: %w", err)
	}
	return n > 0, nil
}

// DeleteNamespace drops a namespace and all of its entries.
// Returns true if the namespace existed.
func (s *Store) DeleteNamespace(ctx context.Context, namespace string) (bool, error) {
	var removed *redis.IntCmd
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.namespaceKey(namespace))
		removed = pipe.SRem(ctx, s.registryKey(), namespace)
		return nil
	})
	if err != nil {
		CacheErrors.WithLabelValues("purge").Inc()
		return false, fmt.Errorf("redis delete namespace: %w", err)
	}
	return removed.Val() > 0, nil
}

// Entries lists the request keys stored in namespace, sorted.
func (s *Store) Entries(ctx context.Context, namespace string) ([]string, error) {
	fields, err := s.redis.HKeys(ctx, s.namespaceKey(namespace)).Result()
	if err != nil {
		CacheErrors.WithLabelValues("keys").Inc()
		return nil, fmt.Errorf("redis hkeys: %w", err)
	}
	sort.Strings(fields)
	return fields, nil
}
