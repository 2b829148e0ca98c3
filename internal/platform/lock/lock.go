// Package lock coordinates leased multi-key locks over a shared key/value
// substrate. Keys are always taken in sorted order and released together.
package lock

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/riskibarqy/courtstats/internal/platform/id"
	"github.com/riskibarqy/courtstats/internal/platform/logging"
)

var (
	ErrTimeout  = errors.New("lock wait timed out")
	ErrNotOwner = errors.New("lock not owned by lease token")

	errBusy = errors.New("lock busy")
)

const (
	releaseTimeout = 2 * time.Second

	// minDriftMargin is taken off every lease on top of driftFactor.
	minDriftMargin = 2 * time.Millisecond
	driftFactor    = 0.01
)

// Substrate stores lock entries. SetIfAbsent must be atomic per key and
// DeleteIfValue must compare and delete in one step.
type Substrate interface {
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	DeleteIfValue(ctx context.Context, key string, value []byte) (bool, error)
}

type Config struct {
	Lease          time.Duration
	MaxWait        time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxAttempts    int
}

func DefaultConfig() Config {
	return Config{
		Lease:          5 * time.Second,
		MaxWait:        3 * time.Second,
		InitialBackoff: 20 * time.Millisecond,
		MaxBackoff:     250 * time.Millisecond,
	}
}

func normalizeConfig(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Lease <= 0 {
		cfg.Lease = defaults.Lease
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = defaults.MaxWait
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaults.InitialBackoff
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	if cfg.MaxAttempts < 0 {
		cfg.MaxAttempts = 0
	}
	return cfg
}

// Lease is a held lock over Keys. It is valid until ExpiresAt even if the
// holder never releases it.
type Lease struct {
	Keys       []string
	Token      string
	AcquiredAt time.Time
	ExpiresAt  time.Time
	Attempts   int
	Waited     time.Duration
}

func (l *Lease) Expired(now time.Time) bool {
	return l == nil || !now.Before(l.ExpiresAt)
}

type Coordinator struct {
	substrate Substrate
	tokens    id.Generator
	cfg       Config
	logger    *logging.Logger
	now       func() time.Time
}

func NewCoordinator(substrate Substrate, tokens id.Generator, cfg Config, logger *logging.Logger) *Coordinator {
	if tokens == nil {
		tokens = id.NewUUIDGenerator()
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &Coordinator{
		substrate: substrate,
		tokens:    tokens,
		cfg:       normalizeConfig(cfg),
		logger:    logger,
		now:       time.Now,
	}
}

func (c *Coordinator) Config() Config {
	return c.cfg
}

// Acquire takes every key under one fresh token or none of them. It retries
// with jittered exponential backoff until MaxWait, MaxAttempts or ctx ends.
func (c *Coordinator) Acquire(ctx context.Context, keys ...string) (*Lease, error) {
	ordered := normalizeKeys(keys)
	if len(ordered) == 0 {
		return nil, fmt.Errorf("acquire lock: at least one key is required")
	}

	token, err := c.tokens.NewID()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}

	started := c.now()
	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.MaxWait)
	defer cancel()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.InitialBackoff
	policy.MaxInterval = c.cfg.MaxBackoff
	policy.Multiplier = 2
	policy.RandomizationFactor = 0.5

	opts := []backoff.RetryOption{
		backoff.WithBackOff(policy),
		backoff.WithMaxElapsedTime(c.cfg.MaxWait),
	}
	if c.cfg.MaxAttempts > 0 {
		opts = append(opts, backoff.WithMaxTries(uint(c.cfg.MaxAttempts)))
	}

	attempts := 0
	var attemptStarted time.Time
	_, err = backoff.Retry(waitCtx, func() (struct{}, error) {
		attempts++
		attemptStarted = c.now()
		held, tryErr := c.tryAcquire(waitCtx, ordered, token)
		switch {
		case tryErr != nil && waitCtx.Err() != nil:
			return struct{}{}, errBusy
		case tryErr != nil:
			return struct{}{}, backoff.Permanent(tryErr)
		case !held:
			return struct{}{}, errBusy
		}
		return struct{}{}, nil
	}, opts...)

	waited := c.now().Sub(started)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, fmt.Errorf("acquire lock %s: %w", strings.Join(ordered, ","), ctx.Err())
		}
		if errors.Is(err, errBusy) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: keys=%s attempts=%d waited=%s", ErrTimeout, strings.Join(ordered, ","), attempts, waited)
		}
		return nil, fmt.Errorf("acquire lock %s: %w", strings.Join(ordered, ","), err)
	}

	// The substrate TTL started at the winning attempt, not now.
	return &Lease{
		Keys:       ordered,
		Token:      token,
		AcquiredAt: attemptStarted,
		ExpiresAt:  attemptStarted.Add(c.cfg.Lease - driftMargin(c.cfg.Lease)),
		Attempts:   attempts,
		Waited:     waited,
	}, nil
}

// driftMargin shortens the local view of a lease so it expires no later than
// the substrate entry, even with some clock drift between the two.
func driftMargin(lease time.Duration) time.Duration {
	return time.Duration(float64(lease)*driftFactor) + minDriftMargin
}

// tryAcquire never leaves a partial hold behind: on a busy key or an error it
// gives back whatever this attempt already took.
func (c *Coordinator) tryAcquire(ctx context.Context, keys []string, token string) (bool, error) {
	taken := make([]string, 0, len(keys))
	for _, key := range keys {
		ok, err := c.substrate.SetIfAbsent(ctx, key, []byte(token), c.cfg.Lease)
		if err != nil {
			c.rollback(ctx, taken, token)
			return false, fmt.Errorf("set %s: %w", key, err)
		}
		if !ok {
			c.rollback(ctx, taken, token)
			return false, nil
		}
		taken = append(taken, key)
	}
	return true, nil
}

func (c *Coordinator) rollback(ctx context.Context, keys []string, token string) {
	if len(keys) == 0 {
		return
	}
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	for i := len(keys) - 1; i >= 0; i-- {
		if _, err := c.substrate.DeleteIfValue(releaseCtx, keys[i], []byte(token)); err != nil {
			c.logger.WarnContext(ctx, "lock rollback failed, key stays held until lease expiry",
				"key", keys[i],
				"lease", c.cfg.Lease,
				"error", err,
			)
		}
	}
}

// Release deletes every key still owned by the lease token. Keys owned by
// another token are left alone and reported as ErrNotOwner.
func (c *Coordinator) Release(ctx context.Context, lease *Lease) error {
	if lease == nil {
		return nil
	}

	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	var errs []error
	for i := len(lease.Keys) - 1; i >= 0; i-- {
		key := lease.Keys[i]
		deleted, err := c.substrate.DeleteIfValue(releaseCtx, key, []byte(lease.Token))
		if err != nil {
			errs = append(errs, fmt.Errorf("release %s: %w", key, err))
			continue
		}
		if !deleted {
			c.logger.WarnContext(ctx, "lock release skipped, token no longer owns key",
				"key", key,
				"held_for", c.now().Sub(lease.AcquiredAt),
				"lease", c.cfg.Lease,
			)
			errs = append(errs, fmt.Errorf("%w: key=%s", ErrNotOwner, key))
		}
	}

	return errors.Join(errs...)
}

func normalizeKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		out = append(out, key)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
