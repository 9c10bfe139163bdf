package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists queues as redis LISTs so deferred items survive agent
// restarts. Head = index 0; Push appends to the tail (RPUSH), Confirm pops
// the head (LPOP).
type RedisStore struct {
	cli    *redis.Client
	prefix string
}

type RedisOptions struct {
	Addr     string
	Password string
	Database int
	Timeout  time.Duration
	Prefix   string
}

func NewRedisStore(opt RedisOptions) (*RedisStore, error) {
	if opt.Addr == "" {
		return nil, fmt.Errorf("outbox: redis addr required")
	}
	if opt.Timeout <= 0 {
		opt.Timeout = 5 * time.Second
	}
	if opt.Prefix == "" {
		opt.Prefix = "offagent:queue:"
	}
	cli := redis.NewClient(&redis.Options{
		Addr:         opt.Addr,
		Password:     opt.Password,
		DB:           opt.Database,
		DialTimeout:  opt.Timeout,
		ReadTimeout:  opt.Timeout,
		WriteTimeout: opt.Timeout,
	})
	return &RedisStore{cli: cli, prefix: opt.Prefix}, nil
}

func (s *RedisStore) Close() error { return s.cli.Close() }

func (s *RedisStore) key(queueKey string) string { return s.prefix + queueKey }

func (s *RedisStore) Push(ctx context.Context, queueKey string, raw []byte) error {
	return s.cli.RPush(ctx, s.key(queueKey), raw).Err()
}

func (s *RedisStore) Peek(ctx context.Context, queueKey string) ([]byte, bool, error) {
	v, err := s.cli.LIndex(ctx, s.key(queueKey), 0).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *RedisStore) Confirm(ctx context.Context, queueKey string) error {
	err := s.cli.LPop(ctx, s.key(queueKey)).Err()
	if err == redis.Nil {
		return nil
	}
	return err
}

func (s *RedisStore) Len(ctx context.Context, queueKey string) (int64, error) {
	return s.cli.LLen(ctx, s.key(queueKey)).Result()
}
