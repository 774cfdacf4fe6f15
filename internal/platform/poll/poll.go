// Package poll provides the two scheduling primitives the dashboards rely
// on: a cancellable repeating poller standing in for server push, and a
// per-resource guard that collapses concurrent fetches of the same data
// into one network call.
package poll

import (
	"context"
	"sync"
	"time"
)

// Start runs fn every interval until ctx is cancelled or the returned stop
// function is called. The first run happens after one interval, not
// immediately; callers that want data right away fetch once themselves.
// Stop is idempotent and waits for an in-progress run to return, so no
// timer or request leaks past component teardown.
func Start(ctx context.Context, interval time.Duration, fn func(context.Context)) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

// Guard is the request-coalescing state for one resource category:
// "currently fetching" and "already loaded". Concurrent mount effects that
// would fetch the same data collapse into a single call; forced refreshes
// bypass the loaded flag but still respect the fetching flag.
type Guard struct {
	mu       sync.Mutex
	fetching bool
	loaded   bool
}

// TryStart reports whether the caller should perform the fetch. It returns
// false while another fetch is in flight, and false when the resource is
// already loaded unless force is set.
func (g *Guard) TryStart(force bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fetching {
		return false
	}
	if g.loaded && !force {
		return false
	}
	g.fetching = true
	return true
}

// Finish ends the fetch started by TryStart. ok marks the resource loaded;
// a failed fetch leaves it unloaded so the next attempt retries.
func (g *Guard) Finish(ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetching = false
	if ok {
		g.loaded = true
	}
}

// Loaded reports whether the resource has been fetched successfully.
func (g *Guard) Loaded() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loaded
}

// Reset clears both flags, e.g. after a forced logout.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetching = false
	g.loaded = false
}
