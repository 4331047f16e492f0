package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func NewFromClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func profileKey(userID uint64) string {
	return fmt.Sprintf("profile:%d", userID)
}

// GetProfile returns redis.Nil when nothing is cached for userID.
func (s *Store) GetProfile(ctx context.Context, userID uint64) ([]byte, error) {
	return s.rdb.Get(ctx, profileKey(userID)).Bytes()
}

func (s *Store) SetProfile(ctx context.Context, userID uint64, b []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, profileKey(userID), b, ttl).Err()
}

func (s *Store) DeleteProfile(ctx context.Context, userID uint64) error {
	return s.rdb.Del(ctx, profileKey(userID)).Err()
}
