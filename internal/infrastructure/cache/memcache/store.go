// Package memcache is the single-process statcache.Store used by tests and
// local runs. Every operation, including Transact, holds one mutex.
package memcache

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/riskibarqy/courtstats/internal/domain/statcache"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !e.expiresAt.After(now)
}

type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

var _ statcache.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, nil
	}

	now := s.now()
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if e.expired(now) {
		s.mu.Lock()
		if cur, ok := s.entries[key]; ok && cur.expired(now) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false, nil
	}

	return bytes.Clone(e.value), true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return fmt.Errorf("memcache: empty key")
	}

	s.mu.Lock()
	s.setLocked(key, value, ttl)
	s.mu.Unlock()
	return nil
}

func (s *Store) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	for _, key := range keys {
		delete(s.entries, key)
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) Transact(_ context.Context, ops []statcache.Op) error {
	for _, op := range ops {
		if op.Key == "" {
			return fmt.Errorf("memcache: empty key in %s op", op.Kind)
		}
		if op.Kind != statcache.OpSet && op.Kind != statcache.OpDelete {
			return fmt.Errorf("memcache: unsupported op %d", op.Kind)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range ops {
		switch op.Kind {
		case statcache.OpDelete:
			delete(s.entries, op.Key)
		case statcache.OpSet:
			s.setLocked(op.Key, op.Value, op.TTL)
		}
	}
	return nil
}

func (s *Store) SetIfAbsent(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("memcache: empty key")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok && !e.expired(s.now()) {
		return false, nil
	}
	s.setLocked(key, value, ttl)
	return true, nil
}

func (s *Store) DeleteIfValue(_ context.Context, key string, value []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.expired(s.now()) || !bytes.Equal(e.value, value) {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}

// Len counts live entries.
func (s *Store) Len() int {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, e := range s.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

func (s *Store) setLocked(key string, value []byte, ttl time.Duration) {
	expiresAt := time.Time{}
	if ttl > 0 {
		expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = entry{
		value:     bytes.Clone(value),
		expiresAt: expiresAt,
	}
}
