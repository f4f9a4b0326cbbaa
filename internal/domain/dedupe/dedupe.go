// Package dedupe provides the fast-path idempotency cache for event
// ingestion. The event store's unique index on event_id remains the
// source of truth; this cache just avoids a store round-trip for the
// common resubmission case.
package dedupe

import (
	"context"
	"sync"
)

// Deduper records seen event IDs.
type Deduper interface {
	// SeenAndRecord atomically checks whether id was seen and records
	// it if not. Returns true when id was already seen.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord removes an ID from the seen set, allowing a retry. Used
	// when an event was marked seen but failed to reach the store.
	Unrecord(ctx context.Context, id string)

	// Size returns the current number of tracked IDs.
	Size() int64
}

// ringDeduper implements Deduper with a map plus a fixed-size FIFO ring
// for eviction. maxSize <= 0 disables eviction entirely.
type ringDeduper struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	ring    []string
	next    int
	maxSize int
}

// New creates a deduper with configuration options.
func New(opts ...Option) Deduper {
	d := &ringDeduper{
		maxSize: 50_000,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]struct{})
	if d.maxSize > 0 {
		d.ring = make([]string, d.maxSize)
	}
	return d
}

func (d *ringDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}

	if d.maxSize > 0 {
		// The ring slot about to be reused holds the oldest ID.
		if old := d.ring[d.next]; old != "" {
			delete(d.seen, old)
		}
		d.ring[d.next] = id
		d.next = (d.next + 1) % d.maxSize
	}
	d.seen[id] = struct{}{}
	return false
}

func (d *ringDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
	// The stale ring slot is left in place; eviction tolerates IDs that
	// are no longer in the map.
}

func (d *ringDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
