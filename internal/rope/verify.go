package rope

import (
	"fmt"

	"github.com/conneroisu/ropetpl/internal/errors"
)

// Verify walks the arena and checks the structural invariants: list
// linkage in both directions, the live count, the cached text length and
// the emptiness of free slots. It is O(capacity) and meant for tests and
// the --verify render flag.
func (d *Document) Verify() error {
	fail := func(format string, args ...interface{}) error {
		return errors.NewInternalError(errors.ErrCodeInternalError, fmt.Sprintf(format, args...), nil)
	}

	count, total := 0, 0
	prev := none
	for i := d.head; i != none; i = d.slots[i].next {
		s := &d.slots[i]
		if !s.live {
			return fail("slot %d on the live list is marked free", i)
		}
		if s.prev != prev {
			return fail("slot %d prev is %d, want %d", i, s.prev, prev)
		}
		count++
		total += len(s.view)
		if count > len(d.slots) {
			return fail("live list has a cycle")
		}
		prev = i
	}
	if prev != d.tail {
		return fail("live list ends at %d, tail is %d", prev, d.tail)
	}
	if count != d.size {
		return fail("live list has %d slots, size is %d", count, d.size)
	}
	if total != d.textLen {
		return fail("live text is %d bytes, cached length is %d", total, d.textLen)
	}

	free := 0
	prev = none
	for i := d.freeHead; i != none; i = d.slots[i].next {
		s := &d.slots[i]
		if s.live {
			return fail("slot %d on the free list is marked live", i)
		}
		if s.view != "" {
			return fail("free slot %d holds %d bytes", i, len(s.view))
		}
		if s.prev != prev {
			return fail("free slot %d prev is %d, want %d", i, s.prev, prev)
		}
		free++
		if free > len(d.slots) {
			return fail("free list has a cycle")
		}
		prev = i
	}
	if prev != d.freeTail {
		return fail("free list ends at %d, free tail is %d", prev, d.freeTail)
	}
	if count+free != len(d.slots) {
		return fail("%d live + %d free slots, capacity %d", count, free, len(d.slots))
	}
	return nil
}
