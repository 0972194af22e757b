package orchestrator

import (
	"testing"
	"time"

	"server/internal/domain"
)

func TestRegistryLookupLiveHandle(t *testing.T) {
	r := newHandleRegistry(time.Minute)
	h := newHandle("job-1")
	r.insert(h)

	got, ok := r.lookup("job-1")
	if !ok || got != h {
		t.Fatalf("lookup failed for live handle")
	}
	if _, ok := r.lookup("missing"); ok {
		t.Fatalf("lookup returned a handle for an unknown id")
	}
}

func TestRegistryUnresolvedHandleNeverExpires(t *testing.T) {
	r := newHandleRegistry(time.Millisecond)
	h := newHandle("job-1")
	r.insert(h)

	if evicted := r.evictExpired(time.Now().Add(time.Hour)); evicted != 0 {
		t.Fatalf("evicted %d in-flight handles, want 0", evicted)
	}
	if _, ok := r.lookup("job-1"); !ok {
		t.Fatalf("in-flight handle disappeared")
	}
}

func TestRegistryEvictsResolvedAfterTTL(t *testing.T) {
	r := newHandleRegistry(time.Minute)
	h := newHandle("job-1")
	r.insert(h)
	h.resolve(domain.Outcome{Status: domain.OutcomeCompleted})

	if evicted := r.evictExpired(time.Now()); evicted != 0 {
		t.Fatalf("evicted %d fresh handles, want 0", evicted)
	}
	if evicted := r.evictExpired(time.Now().Add(2 * time.Minute)); evicted != 1 {
		t.Fatalf("evicted %d stale handles, want 1", evicted)
	}
	if r.len() != 0 {
		t.Fatalf("registry still holds %d entries", r.len())
	}
}

func TestRegistryLazyEvictionOnLookup(t *testing.T) {
	r := newHandleRegistry(time.Nanosecond)
	h := newHandle("job-1")
	r.insert(h)
	h.resolve(domain.Outcome{Status: domain.OutcomeFailed})

	time.Sleep(time.Millisecond)
	if _, ok := r.lookup("job-1"); ok {
		t.Fatalf("lookup returned an expired handle")
	}
	if r.len() != 0 {
		t.Fatalf("expired entry not removed on lookup")
	}
}

func TestHandleResolveIsIdempotent(t *testing.T) {
	h := newHandle("job-1")
	h.resolve(domain.Outcome{Status: domain.OutcomeCompleted, ArtifactRef: "first"})
	h.resolve(domain.Outcome{Status: domain.OutcomeFailed, Reason: "second"})

	out, ok := h.Outcome()
	if !ok {
		t.Fatalf("expected resolved outcome")
	}
	if out.Status != domain.OutcomeCompleted || out.ArtifactRef != "first" {
		t.Fatalf("second resolve overwrote the first: %#v", out)
	}
}
