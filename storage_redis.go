package chatbridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/boat-builder/chatbridge/memory"
	"github.com/redis/go-redis/v9"
)

var _ Storage = &RedisStorage{}

const DefaultRedisPrefix = "chatbridge"

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisStorage keeps one hash per user holding the record version and state,
// plus a set indexing the stored users.
type RedisStorage struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

func NewRedisStorage(ctx context.Context, opts RedisOptions) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return newRedisStorage(client, opts.Prefix), nil
}

func newRedisStorage(client *redis.Client, prefix string) *RedisStorage {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStorage{client: client, prefix: prefix, logger: slog.Default()}
}

func (s *RedisStorage) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

func (s *RedisStorage) indexKey() string {
	return fmt.Sprintf("%s:users", s.prefix)
}

func (s *RedisStorage) memoryKey(userID string) string {
	return fmt.Sprintf("%s:memory:%s", s.prefix, userID)
}

func (s *RedisStorage) LoadAll(ctx context.Context) (map[string]memory.State, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list stored users: %w", err)
	}
	users := make(map[string]memory.State, len(ids))
	for _, userID := range ids {
		fields, err := s.client.HGetAll(ctx, s.memoryKey(userID)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("failed to read memory of %s: %w", userID, err)
		}
		if len(fields) == 0 {
			continue
		}
		version, _ := strconv.Atoi(fields["version"])
		state, err := decodeState(version, fields["state"])
		if err != nil {
			s.logger.Error("skipping unreadable memory key", "userID", userID, "error", err)
			continue
		}
		users[userID] = state
	}
	return users, nil
}

func (s *RedisStorage) SaveAll(ctx context.Context, users map[string]memory.State) error {
	stored, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return fmt.Errorf("failed to list stored users: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for userID, state := range users {
			data, err := encodeState(state)
			if err != nil {
				return fmt.Errorf("failed to encode memory of %s: %w", userID, err)
			}
			pipe.HSet(ctx, s.memoryKey(userID), "version", SnapshotVersion, "state", data)
			pipe.SAdd(ctx, s.indexKey(), userID)
		}
		for _, userID := range stored {
			if _, ok := users[userID]; ok {
				continue
			}
			pipe.Del(ctx, s.memoryKey(userID))
			pipe.SRem(ctx, s.indexKey(), userID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save memories: %w", err)
	}
	return nil
}

func (s *RedisStorage) Close() error {
	return s.client.Close()
}
