// Package rediscache implements statcache.Store on Redis.
package rediscache

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"

	"github.com/riskibarqy/courtstats/internal/domain/statcache"
	"github.com/riskibarqy/courtstats/internal/platform/logging"
	"github.com/riskibarqy/courtstats/internal/platform/resilience"
)

// compare-and-delete in one round trip
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Config struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func NewClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
}

type Store struct {
	client  redis.UniversalClient
	breaker *resilience.CircuitBreaker
	logger  *logging.Logger
}

var _ statcache.Store = (*Store)(nil)

func NewStore(client redis.UniversalClient, breaker *resilience.CircuitBreaker, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		client:  client,
		breaker: breaker,
		logger:  logger,
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.do(ctx, "ping", "", func() error {
		return s.client.Ping(ctx).Err()
	})
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	found := true
	err := s.do(ctx, "get", key, func() error {
		raw, err := s.client.Get(ctx, key).Bytes()
		if stderrors.Is(err, redis.Nil) {
			found = false
			return nil
		}
		value = raw
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return value, found, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.do(ctx, "set", key, func() error {
		return s.client.Set(ctx, key, value, ttl).Err()
	})
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.do(ctx, "del", keys[0], func() error {
		return s.client.Del(ctx, keys...).Err()
	})
}

// Transact wraps ops in MULTI/EXEC.
func (s *Store) Transact(ctx context.Context, ops []statcache.Op) error {
	if len(ops) == 0 {
		return nil
	}
	for _, op := range ops {
		if op.Key == "" {
			return crerr.Newf("redis transaction: empty key in %s op", op.Kind)
		}
		if op.Kind != statcache.OpSet && op.Kind != statcache.OpDelete {
			return crerr.Newf("redis transaction: unsupported op %d", op.Kind)
		}
	}

	return s.do(ctx, "multi", ops[0].Key, func() error {
		_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, op := range ops {
				switch op.Kind {
				case statcache.OpDelete:
					pipe.Del(ctx, op.Key)
				case statcache.OpSet:
					pipe.Set(ctx, op.Key, op.Value, op.TTL)
				}
			}
			return nil
		})
		return err
	})
}

func (s *Store) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	var ok bool
	err := s.do(ctx, "setnx", key, func() error {
		var err error
		ok, err = s.client.SetNX(ctx, key, value, ttl).Result()
		return err
	})
	return ok, err
}

func (s *Store) DeleteIfValue(ctx context.Context, key string, value []byte) (bool, error) {
	var deleted int
	err := s.do(ctx, "cad", key, func() error {
		var err error
		deleted, err = releaseScript.Run(ctx, s.client, []string{key}, string(value)).Int()
		return err
	})
	return deleted == 1, err
}

// do runs one Redis call through the breaker and marks transport faults as
// statcache.ErrUnavailable.
func (s *Store) do(ctx context.Context, op, key string, fn func() error) error {
	err := s.breaker.Execute(fn, nil)
	if err == nil {
		return nil
	}

	if stderrors.Is(err, resilience.ErrCircuitOpen) {
		s.logger.WarnContext(ctx, "redis circuit breaker rejected call", "op", op, "state", s.breaker.State())
	}
	return fmt.Errorf("%w: %w", statcache.ErrUnavailable, crerr.Wrapf(err, "redis %s %s", op, key))
}
