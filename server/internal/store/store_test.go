package store

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fixedClock returns a func() time.Time that always returns t.
func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestPutAndGet(t *testing.T) {
	st := New(5 * time.Minute)
	st.Put("0100100000", 1)

	got, ok := st.Get("0100100000")
	if !ok {
		t.Fatal("Get: expected entry, got none")
	}
	if got != 1 {
		t.Errorf("label: got %d, want 1", got)
	}
}

func TestGet_Missing(t *testing.T) {
	st := New(5 * time.Minute)
	if _, ok := st.Get("unknown"); ok {
		t.Fatal("Get on empty store: expected false, got true")
	}
}

func TestPut_Overwrites(t *testing.T) {
	st := New(5 * time.Minute)
	st.Put("k", 0)
	st.Put("k", 1)

	got, ok := st.Get("k")
	if !ok || got != 1 {
		t.Errorf("Get after two Puts: got %d,%v want 1,true", got, ok)
	}
}

func TestGet_StaleIsMiss(t *testing.T) {
	base := time.Now()
	st := New(5 * time.Minute)
	st.now = fixedClock(base.Add(-10 * time.Minute))
	st.Put("old", 1)

	st.now = fixedClock(base)
	if _, ok := st.Get("old"); ok {
		t.Error("Get: stale entry returned as hit")
	}
	if st.Count() != 1 {
		t.Errorf("Count: got %d, want 1 (stale entries stay until evicted)", st.Count())
	}
}

func TestList_ExcludesStale(t *testing.T) {
	base := time.Now()
	st := New(5 * time.Minute)

	st.now = fixedClock(base.Add(-10 * time.Minute))
	st.Put("old", 0)
	st.now = fixedClock(base)
	st.Put("new", 1)

	entries := st.List()
	if len(entries) != 1 {
		t.Fatalf("List: got %d entries, want 1", len(entries))
	}
	if e, ok := entries["new"]; !ok || e.Label != 1 {
		t.Errorf("List: got %+v, want new=1", entries)
	}
}

func TestEvict(t *testing.T) {
	base := time.Now()
	st := New(5 * time.Minute)

	st.now = fixedClock(base.Add(-10 * time.Minute))
	st.Put("stale-1", 0)
	st.Put("stale-2", 1)
	st.now = fixedClock(base)
	st.Put("live", 1)

	if n := st.Evict(base); n != 2 {
		t.Errorf("Evict: removed %d, want 2", n)
	}
	if st.Count() != 1 {
		t.Errorf("Count after Evict: got %d, want 1", st.Count())
	}
}

func TestEvict_BoundaryIsStale(t *testing.T) {
	base := time.Now()
	st := New(time.Minute)
	st.now = fixedClock(base.Add(-time.Minute))
	st.Put("edge", 1)

	if n := st.Evict(base); n != 1 {
		t.Errorf("Evict at exactly TTL: removed %d, want 1", n)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	st := New(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		st.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestConcurrentAccess(t *testing.T) {
	st := New(time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i))
			for j := 0; j < 100; j++ {
				st.Put(key, j%2)
				st.Get(key)
				st.List()
			}
		}(i)
	}
	wg.Wait()
	if st.Count() != 10 {
		t.Errorf("Count: got %d, want 10", st.Count())
	}
}

func TestReset(t *testing.T) {
	st := New(5 * time.Minute)
	st.Put("a", 1)
	st.Put("b", 0)

	if n := st.Reset(); n != 2 {
		t.Errorf("Reset: removed %d, want 2", n)
	}
	if _, ok := st.Get("a"); ok {
		t.Error("Get after Reset: expected miss")
	}
	st.Put("c", 1)
	if st.Count() != 1 {
		t.Errorf("Count after Reset+Put: got %d, want 1", st.Count())
	}
}
