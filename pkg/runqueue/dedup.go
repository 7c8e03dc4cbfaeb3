package runqueue

import (
	"context"
	"sync"
	"time"
)

type dedupEntry struct {
	result   taskResult
	storedAt time.Time
}

// dedupCache remembers settled results by run id so a resubmitted run id
// returns the earlier outcome instead of executing twice.
type dedupCache struct {
	entries map[string]*dedupEntry
	ttl     time.Duration
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func newDedupCache(ctx context.Context, ttl time.Duration) *dedupCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(ctx)
	cache := &dedupCache{
		entries: make(map[string]*dedupEntry),
		ttl:     ttl,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go cache.cleanup(sweepInterval(ttl))

	return cache
}

func sweepInterval(ttl time.Duration) time.Duration {
	if ttl < time.Minute {
		return ttl
	}
	return time.Minute
}

func (dc *dedupCache) Stop() {
	dc.cancel()
	<-dc.done
}

// Get returns the cached result for runID if it has not expired.
func (dc *dedupCache) Get(runID string) (taskResult, bool) {
	dc.mu.RLock()
	defer dc.mu.RUnlock()

	entry, exists := dc.entries[runID]
	if !exists || time.Since(entry.storedAt) > dc.ttl {
		return taskResult{}, false
	}
	return entry.result, true
}

func (dc *dedupCache) Set(runID string, result taskResult) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	dc.entries[runID] = &dedupEntry{
		result:   result,
		storedAt: time.Now(),
	}
}

func (dc *dedupCache) cleanup(every time.Duration) {
	defer close(dc.done)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-dc.ctx.Done():
			return
		case <-ticker.C:
			dc.mu.Lock()
			now := time.Now()
			for runID, entry := range dc.entries {
				if now.Sub(entry.storedAt) > dc.ttl {
					delete(dc.entries, runID)
				}
			}
			dc.mu.Unlock()
		}
	}
}

func (dc *dedupCache) Size() int {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	return len(dc.entries)
}
