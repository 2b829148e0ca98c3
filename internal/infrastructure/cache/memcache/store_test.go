package memcache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/riskibarqy/courtstats/internal/domain/statcache"
)

func TestStore_GetSetDelete(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := t.Context()

	if _, ok, err := s.Get(ctx, "player:stats:1"); ok || err != nil {
		t.Fatalf("expected miss on empty store, ok=%v err=%v", ok, err)
	}

	value := []byte(`{"avg_points":20}`)
	if err := s.Set(ctx, "player:stats:1", value, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	value[0] = 'X'

	got, ok, err := s.Get(ctx, "player:stats:1")
	if err != nil || !ok {
		t.Fatalf("expected hit, ok=%v err=%v", ok, err)
	}
	if string(got) != `{"avg_points":20}` {
		t.Fatalf("stored value must not alias caller slice, got=%s", got)
	}

	if err := s.Delete(ctx, "player:stats:1", "team:stats:1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "player:stats:1"); ok {
		t.Fatalf("expected miss after delete")
	}
}

func TestStore_TTLExpiry(t *testing.T) {
	t.Parallel()

	s := NewStore()
	now := time.Date(2026, 3, 4, 19, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	_ = s.Set(t.Context(), "team:stats:1", []byte("v"), time.Second)
	if _, ok, _ := s.Get(t.Context(), "team:stats:1"); !ok {
		t.Fatalf("expected hit before expiry")
	}
	now = now.Add(time.Second)
	if _, ok, _ := s.Get(t.Context(), "team:stats:1"); ok {
		t.Fatalf("expected miss at expiry")
	}
	if s.Len() != 0 {
		t.Fatalf("expected expired entry to be gone, len=%d", s.Len())
	}
}

func TestStore_SetIfAbsentAndDeleteIfValue(t *testing.T) {
	t.Parallel()

	s := NewStore()
	now := time.Date(2026, 3, 4, 19, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := t.Context()

	ok, err := s.SetIfAbsent(ctx, "player:lock:1", []byte("token-a"), 5*time.Second)
	if err != nil || !ok {
		t.Fatalf("expected first set to win, ok=%v err=%v", ok, err)
	}
	if ok, _ := s.SetIfAbsent(ctx, "player:lock:1", []byte("token-b"), 5*time.Second); ok {
		t.Fatalf("expected second set to lose while held")
	}
	if deleted, _ := s.DeleteIfValue(ctx, "player:lock:1", []byte("token-b")); deleted {
		t.Fatalf("foreign token must not delete")
	}

	now = now.Add(6 * time.Second)
	if ok, _ := s.SetIfAbsent(ctx, "player:lock:1", []byte("token-b"), 5*time.Second); !ok {
		t.Fatalf("expected set to win after lease expiry")
	}
	if deleted, _ := s.DeleteIfValue(ctx, "player:lock:1", []byte("token-a")); deleted {
		t.Fatalf("expired token must not delete the new holder")
	}
	if deleted, _ := s.DeleteIfValue(ctx, "player:lock:1", []byte("token-b")); !deleted {
		t.Fatalf("owner token must delete")
	}
}

func TestStore_TransactRejectsInvalidOpsWithoutApplying(t *testing.T) {
	t.Parallel()

	s := NewStore()
	_ = s.Set(t.Context(), "player:stats:1", []byte("old"), 0)

	err := s.Transact(t.Context(), []statcache.Op{
		statcache.DeleteOp("player:stats:1"),
		statcache.SetOp("", []byte("x"), 0),
	})
	if err == nil {
		t.Fatalf("expected error for empty key")
	}
	if got, ok, _ := s.Get(t.Context(), "player:stats:1"); !ok || string(got) != "old" {
		t.Fatalf("failed transaction must not apply any op, got=%s ok=%v", got, ok)
	}
}

// Readers must observe either both old values or both new values.
func TestStore_TransactIsAtomicForReaders(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()
	_ = s.Set(ctx, "player:stats:1", []byte("v0"), 0)
	_ = s.Set(ctx, "team:stats:1", []byte("v0"), 0)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 500; i++ {
			v := []byte("v" + string(rune('0'+i%10)))
			_ = s.Transact(ctx, []statcache.Op{
				statcache.DeleteOp("player:stats:1"),
				statcache.DeleteOp("team:stats:1"),
				statcache.SetOp("player:stats:1", v, 0),
				statcache.SetOp("team:stats:1", v, 0),
			})
		}
		close(stop)
	}()

	var readers sync.WaitGroup
	for r := 0; r < 4; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				s.mu.RLock()
				p, pok := s.entries["player:stats:1"]
				tm, tok := s.entries["team:stats:1"]
				s.mu.RUnlock()
				if pok != tok || string(p.value) != string(tm.value) {
					t.Errorf("torn read: player=%s(%v) team=%s(%v)", p.value, pok, tm.value, tok)
					return
				}
			}
		}()
	}

	wg.Wait()
	readers.Wait()
}
