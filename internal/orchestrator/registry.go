package orchestrator

import (
	"context"
	"sync"
	"time"
)

// handleRegistry correlates job ids with live handles so HTTP callers can poll
// a job they enqueued earlier. Resolved handles are kept for a bounded TTL and
// then evicted, both lazily on lookup and by a background sweep; in-flight
// handles never expire.
type handleRegistry struct {
	mu      sync.RWMutex
	entries map[string]*Handle
	ttl     time.Duration
}

func newHandleRegistry(ttl time.Duration) *handleRegistry {
	if ttl <= 0 {
		ttl = defaultHandleTTL
	}
	return &handleRegistry{
		entries: make(map[string]*Handle),
		ttl:     ttl,
	}
}

func (r *handleRegistry) insert(h *Handle) {
	r.mu.Lock()
	r.entries[h.JobID] = h
	r.mu.Unlock()
}

func (r *handleRegistry) lookup(jobID string) (*Handle, bool) {
	r.mu.RLock()
	h, ok := r.entries[jobID]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if r.expired(h, time.Now()) {
		r.mu.Lock()
		delete(r.entries, jobID)
		r.mu.Unlock()
		return nil, false
	}
	return h, true
}

func (r *handleRegistry) expired(h *Handle, now time.Time) bool {
	resolvedAt, ok := h.resolvedSince()
	if !ok {
		return false
	}
	return now.Sub(resolvedAt) > r.ttl
}

func (r *handleRegistry) evictExpired(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for id, h := range r.entries {
		if r.expired(h, now) {
			delete(r.entries, id)
			evicted++
		}
	}
	return evicted
}

func (r *handleRegistry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// sweep runs periodic eviction until ctx is done.
func (r *handleRegistry) sweep(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.evictExpired(time.Now())
		}
	}
}
