package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"quoteshare/internal/util"
)

const sessionKeyPrefix = "quoteshare:session:"

// RedisSessionStore keeps sessions in Redis with TTL.
type RedisSessionStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisSessionStore builds a Redis-backed session store with its own client.
func NewRedisSessionStore(addr, password string, ttl time.Duration) *RedisSessionStore {
	return NewRedisSessionStoreWithClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	}), ttl)
}

// NewRedisSessionStoreWithClient builds a session store on a shared client.
func NewRedisSessionStoreWithClient(client redis.UniversalClient, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

// Ping checks connectivity.
func (s *RedisSessionStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

// Close releases the client.
func (s *RedisSessionStore) Close() error {
	return s.client.Close()
}

// NewSession writes a token -> userID mapping with TTL.
func (s *RedisSessionStore) NewSession(ctx context.Context, userID uint64) (string, error) {
	token := util.NewID()
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := s.client.Set(ctx, sessionKeyPrefix+token, strconv.FormatUint(userID, 10), s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// GetUserIDByToken resolves token to user ID.
func (s *RedisSessionStore) GetUserIDByToken(ctx context.Context, token string) (uint64, bool, error) {
	if token == "" {
		return 0, false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	val, err := s.client.Get(ctx, sessionKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		// corrupt entry; treat as signed out
		return 0, false, nil
	}
	return id, true, nil
}

// DeleteSession removes a token mapping.
func (s *RedisSessionStore) DeleteSession(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := s.client.Del(ctx, sessionKeyPrefix+token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}
