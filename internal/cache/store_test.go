package cache

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T) (Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewStore(WithClock(clock.Now)), clock
}

func TestStorePutAndGet(t *testing.T) {
	store, clock := newTestStore(t)
	payload := []byte("<html>listing</html>")
	store.Put("/docs", Record{Payload: payload, ExpiresAt: clock.Now().Add(time.Minute)})

	rec, ok := store.Get("/docs")
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if !bytes.Equal(rec.Payload, payload) || rec.IsJSON {
		t.Fatalf("cached payload mismatch: %q", rec.Payload)
	}

	again, _ := store.Get("/docs")
	if !bytes.Equal(again.Payload, rec.Payload) {
		t.Fatalf("repeated hits should be byte-identical")
	}
}

func TestStoreGetMissing(t *testing.T) {
	store, _ := newTestStore(t)
	if _, ok := store.Get("/missing"); ok {
		t.Fatalf("expected miss")
	}
}

func TestStoreExpiryIsLazy(t *testing.T) {
	store, clock := newTestStore(t)
	store.Put("/a", Record{Payload: []byte("a"), ExpiresAt: clock.Now().Add(time.Second)})

	clock.Advance(time.Second)
	if store.Len() != 1 {
		t.Fatalf("record should stay until observed, len=%d", store.Len())
	}
	if _, ok := store.Get("/a"); ok {
		t.Fatalf("record at its expiry instant must be a miss")
	}
	if store.Len() != 0 {
		t.Fatalf("expired record should be evicted by Get, len=%d", store.Len())
	}
}

func TestStorePutReplaces(t *testing.T) {
	store, clock := newTestStore(t)
	store.Put("/a", Record{Payload: []byte("old"), ExpiresAt: clock.Now().Add(time.Minute)})
	store.Put("/a", Record{Payload: []byte("new"), IsJSON: true, ExpiresAt: clock.Now().Add(time.Minute)})

	rec, ok := store.Get("/a")
	if !ok || string(rec.Payload) != "new" || !rec.IsJSON {
		t.Fatalf("expected replaced record, got %+v", rec)
	}
	if store.Len() != 1 {
		t.Fatalf("one record per key, len=%d", store.Len())
	}
}

func TestStoreRemoveAndSweep(t *testing.T) {
	store, clock := newTestStore(t)
	store.Put("/short", Record{ExpiresAt: clock.Now().Add(time.Second)})
	store.Put("/long", Record{ExpiresAt: clock.Now().Add(time.Hour)})
	store.Put("/gone", Record{ExpiresAt: clock.Now().Add(time.Hour)})

	store.Remove("/gone")
	store.Remove("/never-there")

	clock.Advance(time.Minute)
	if removed := store.Sweep(); removed != 1 {
		t.Fatalf("expected 1 swept record, got %d", removed)
	}
	if _, ok := store.Get("/long"); !ok {
		t.Fatalf("unexpired record should survive sweep")
	}
	if store.Len() != 1 {
		t.Fatalf("unexpected len %d", store.Len())
	}
}

func TestRunJanitorStopsOnCancel(t *testing.T) {
	store, clock := newTestStore(t)
	store.Put("/a", Record{ExpiresAt: clock.Now()})

	ctx, cancel := context.WithCancel(context.Background())
	swept := make(chan int, 1)
	done := make(chan struct{})
	go func() {
		RunJanitor(ctx, store, 5*time.Millisecond, func(n int) {
			if n > 0 {
				select {
				case swept <- n:
				default:
				}
			}
		})
		close(done)
	}()

	select {
	case n := <-swept:
		if n != 1 {
			t.Fatalf("expected 1 swept, got %d", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("janitor did not sweep")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("janitor did not stop after cancel")
	}

	// interval<=0 关闭清理
	RunJanitor(context.Background(), store, 0, nil)
}
