// Package redis stores secrets in Redis through go-redis, one key per
// namespace.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/bryce/logger"
	"github.com/kbukum/bryce/secretstore"
)

// Store is a secretstore.Store backed by Redis.
type Store struct {
	rdb    goredis.UniversalClient
	prefix string
	ttl    time.Duration
	log    *logger.Logger
	owned  bool
	closed bool
	mu     sync.Mutex
}

var (
	_ secretstore.Store  = (*Store)(nil)
	_ secretstore.Pinger = (*Store)(nil)
)

// New connects to Redis with the given configuration.
func New(cfg Config, log *logger.Logger) (*Store, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("redis config: %w", err)
	}

	dialTimeout, _ := time.ParseDuration(cfg.DialTimeout)
	readTimeout, _ := time.ParseDuration(cfg.ReadTimeout)
	writeTimeout, _ := time.ParseDuration(cfg.WriteTimeout)

	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	log = logger.OrDefault(log, "secretstore.redis")
	log.Info("Redis secret store created", logger.Fields("addr", cfg.Addr, "db", cfg.DB, "prefix", cfg.KeyPrefix))

	return &Store{rdb: rdb, prefix: cfg.KeyPrefix, ttl: cfg.ttl(), log: log, owned: true}, nil
}

// NewFromClient wraps an existing client. Close does not close rdb.
func NewFromClient(rdb goredis.UniversalClient, prefix string) *Store {
	return &Store{rdb: rdb, prefix: prefix, log: logger.Nop()}
}

func (s *Store) key(namespace string) string { return s.prefix + namespace }

func (s *Store) Get(ctx context.Context, namespace string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, s.key(namespace)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, secretstore.ErrNotFound
	}
	if err != nil {
		return nil, &secretstore.Error{Op: "get", Namespace: namespace, Err: err}
	}
	return data, nil
}

func (s *Store) Set(ctx context.Context, namespace string, data []byte) error {
	if err := s.rdb.Set(ctx, s.key(namespace), data, s.ttl).Err(); err != nil {
		return &secretstore.Error{Op: "set", Namespace: namespace, Err: err}
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, namespace string) error {
	if err := s.rdb.Del(ctx, s.key(namespace)).Err(); err != nil {
		return &secretstore.Error{Op: "delete", Namespace: namespace, Err: err}
	}
	return nil
}

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	pong, err := s.rdb.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	if pong != "PONG" {
		return fmt.Errorf("unexpected redis ping response: %s", pong)
	}
	return nil
}

// Close closes the connection when the store created it. Safe to call multiple times.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.owned {
		return nil
	}
	s.closed = true
	s.log.Info("Closing Redis connection")
	return s.rdb.Close()
}
