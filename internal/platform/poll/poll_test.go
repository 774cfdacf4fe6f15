package poll

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGuardCoalescesConcurrentFetches(t *testing.T) {
	var g Guard
	var started int32
	var wg sync.WaitGroup

	// Simulate a strict double-invoke mount: many goroutines race to fetch.
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryStart(false) {
				atomic.AddInt32(&started, 1)
			}
		}()
	}
	wg.Wait()

	if started != 1 {
		t.Errorf("started = %d fetches, want 1", started)
	}
}

func TestGuardLoadedBlocksRepeatButForceBypasses(t *testing.T) {
	var g Guard

	if !g.TryStart(false) {
		t.Fatal("first fetch should start")
	}
	g.Finish(true)

	if g.TryStart(false) {
		t.Error("loaded resource re-fetched without force")
	}
	if !g.TryStart(true) {
		t.Error("forced refresh blocked on loaded flag")
	}
	// Forced refresh in flight: a second force must still be rejected.
	if g.TryStart(true) {
		t.Error("force bypassed the fetching flag")
	}
	g.Finish(true)
}

func TestGuardFailedFetchRetries(t *testing.T) {
	var g Guard
	g.TryStart(false)
	g.Finish(false)

	if g.Loaded() {
		t.Error("failed fetch marked loaded")
	}
	if !g.TryStart(false) {
		t.Error("retry after failure blocked")
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var runs int32

	stop := Start(ctx, 5*time.Millisecond, func(context.Context) {
		atomic.AddInt32(&runs, 1)
	})

	time.Sleep(30 * time.Millisecond)
	cancel()
	stop()

	n := atomic.LoadInt32(&runs)
	if n == 0 {
		t.Fatal("poller never ran")
	}
	time.Sleep(20 * time.Millisecond)
	if atomic.LoadInt32(&runs) != n {
		t.Error("poller kept running after cancel")
	}
}

func TestStopIdempotent(t *testing.T) {
	stop := Start(context.Background(), time.Millisecond, func(context.Context) {})
	stop()
	stop() // must not panic or hang
}
