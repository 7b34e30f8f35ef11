package rope

import (
	"sync/atomic"
	"unsafe"
)

// Allocator supplies the backing array for a Document's slot arena.
//
// Allocate must return a slice of exactly n zeroed slots; hint is the
// current backing array (nil on first use) and may be used to pool or
// extend memory. Free receives arrays the Document no longer references.
// An allocator that cannot satisfy a request must panic; allocation
// failure is not a recoverable condition.
type Allocator interface {
	Allocate(n int, hint []Slot) []Slot
	Free(s []Slot)
}

// HeapAllocator allocates slot arrays on the Go heap.
type HeapAllocator struct{}

// Allocate returns a fresh array of n slots.
func (HeapAllocator) Allocate(n int, _ []Slot) []Slot {
	return make([]Slot, n)
}

// Free is a no-op; the garbage collector reclaims the array.
func (HeapAllocator) Free([]Slot) {}

// SlotSize is the in-memory size of one arena slot in bytes.
const SlotSize = int64(unsafe.Sizeof(Slot{}))

// TrackingAllocator wraps another Allocator and counts what flows through it.
// Counters are atomic so one tracker can be shared by documents parsed on
// different goroutines.
type TrackingAllocator struct {
	Inner Allocator

	allocs    atomic.Int64
	frees     atomic.Int64
	liveBytes atomic.Int64
	peakBytes atomic.Int64
}

// NewTrackingAllocator wraps inner, or the heap allocator when inner is nil.
func NewTrackingAllocator(inner Allocator) *TrackingAllocator {
	if inner == nil {
		inner = HeapAllocator{}
	}
	return &TrackingAllocator{Inner: inner}
}

// Allocate forwards to the wrapped allocator and records the request.
func (t *TrackingAllocator) Allocate(n int, hint []Slot) []Slot {
	s := t.Inner.Allocate(n, hint)
	t.allocs.Add(1)
	live := t.liveBytes.Add(int64(len(s)) * SlotSize)
	for {
		peak := t.peakBytes.Load()
		if live <= peak || t.peakBytes.CompareAndSwap(peak, live) {
			break
		}
	}
	return s
}

// Free forwards to the wrapped allocator and records the release.
func (t *TrackingAllocator) Free(s []Slot) {
	t.frees.Add(1)
	t.liveBytes.Add(-int64(len(s)) * SlotSize)
	t.Inner.Free(s)
}

// AllocStats is a snapshot of a TrackingAllocator.
type AllocStats struct {
	Allocations int64 `json:"allocations" yaml:"allocations"`
	Frees       int64 `json:"frees" yaml:"frees"`
	LiveBytes   int64 `json:"live_bytes" yaml:"live_bytes"`
	PeakBytes   int64 `json:"peak_bytes" yaml:"peak_bytes"`
}

// Stats returns the current counters.
func (t *TrackingAllocator) Stats() AllocStats {
	return AllocStats{
		Allocations: t.allocs.Load(),
		Frees:       t.frees.Load(),
		LiveBytes:   t.liveBytes.Load(),
		PeakBytes:   t.peakBytes.Load(),
	}
}
