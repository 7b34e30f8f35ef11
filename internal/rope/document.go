package rope

import (
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/conneroisu/ropetpl/internal/errors"
)

const (
	none = int32(-1)

	// MinCapacity is the arena size claimed on first growth.
	MinCapacity = 16
)

// Slot is one arena entry. Its fields are private; the type is exported so
// that an Allocator can produce backing arrays.
type Slot struct {
	view string
	prev int32
	next int32
	gen  uint32
	live bool
}

// Handle addresses a live slot. The zero Handle is Nil.
type Handle struct {
	id  uint32 // index+1, 0 for Nil
	gen uint32
}

// Nil is the invalid handle.
var Nil = Handle{}

// IsNil reports whether h is the invalid handle.
func (h Handle) IsNil() bool { return h.id == 0 }

// Index returns the arena index of h, or -1 for Nil.
func (h Handle) Index() int { return int(h.id) - 1 }

func (h Handle) String() string {
	if h.IsNil() {
		return "nil"
	}
	return fmt.Sprintf("%d@%d", h.Index(), h.gen)
}

// Position is a cursor at a byte offset inside one slot's view.
type Position struct {
	Slot   Handle
	Offset int
}

// NoPosition is returned by searches that find nothing.
var NoPosition = Position{Slot: Nil, Offset: -1}

// Valid reports whether p addresses a slot.
func (p Position) Valid() bool { return !p.Slot.IsNil() && p.Offset >= 0 }

// Option configures a Document.
type Option func(*Document)

// WithAllocator makes the Document obtain its arena from a.
func WithAllocator(a Allocator) Option {
	return func(d *Document) {
		if a != nil {
			d.alloc = a
		}
	}
}

// WithCapacity pre-sizes the arena.
func WithCapacity(n int) Option {
	return func(d *Document) { d.initialCap = n }
}

// Document is a rope of non-owning string views. The zero value is not
// usable; construct with New or FromString. A Document is not safe for
// concurrent use.
type Document struct {
	slots []Slot

	size     int
	head     int32
	tail     int32
	freeHead int32
	freeTail int32
	textLen  int

	alloc      Allocator
	initialCap int
}

// New creates an empty Document.
func New(opts ...Option) *Document {
	d := &Document{
		head:     none,
		tail:     none,
		freeHead: none,
		freeTail: none,
		alloc:    HeapAllocator{},
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.initialCap > 0 {
		d.Reserve(d.initialCap)
	}
	return d
}

// FromString creates a Document holding s as its single slot.
func FromString(s string, opts ...Option) *Document {
	d := New(opts...)
	d.Append(s)
	return d
}

// Len returns the total length of the live text.
func (d *Document) Len() int { return d.textLen }

// NumSlots returns the number of live slots.
func (d *Document) NumSlots() int { return d.size }

// Cap returns the arena capacity.
func (d *Document) Cap() int { return len(d.slots) }

// Head returns the first live slot, or Nil.
func (d *Document) Head() Handle { return d.handle(d.head) }

// Tail returns the last live slot, or Nil.
func (d *Document) Tail() Handle { return d.handle(d.tail) }

// Begin returns the position of the first byte of the document, or
// NoPosition when the document has no slots.
func (d *Document) Begin() Position {
	if d.head == none {
		return NoPosition
	}
	return Position{Slot: d.handle(d.head), Offset: 0}
}

// Next returns the slot after h, or Nil.
func (d *Document) Next(h Handle) Handle {
	return d.handle(d.slots[d.resolve(h)].next)
}

// Prev returns the slot before h, or Nil.
func (d *Document) Prev(h Handle) Handle {
	return d.handle(d.slots[d.resolve(h)].prev)
}

// View returns the text of slot h.
func (d *Document) View(h Handle) string {
	return d.slots[d.resolve(h)].view
}

// Sub returns the text of pos.Slot starting at pos.Offset.
func (d *Document) Sub(pos Position) string {
	v := d.View(pos.Slot)
	if pos.Offset < 0 || pos.Offset > len(v) {
		errors.Contractf(errors.ErrCodeIndexOutOfRange,
			"offset %d outside slot %s of length %d", pos.Offset, pos.Slot, len(v))
	}
	return v[pos.Offset:]
}

// Live reports whether h still addresses a live slot.
func (d *Document) Live(h Handle) bool {
	i := h.Index()
	if i < 0 || i >= len(d.slots) {
		return false
	}
	s := &d.slots[i]
	return s.live && s.gen == h.gen
}

func (d *Document) handle(i int32) Handle {
	if i == none {
		return Nil
	}
	return Handle{id: uint32(i) + 1, gen: d.slots[i].gen}
}

func (d *Document) resolve(h Handle) int32 {
	if h.IsNil() {
		errors.Contractf(errors.ErrCodeNilHandle, "nil slot handle")
	}
	i := h.Index()
	if i >= len(d.slots) {
		errors.Contractf(errors.ErrCodeIndexOutOfRange,
			"slot %d out of range (capacity %d)", i, len(d.slots))
	}
	s := &d.slots[i]
	if !s.live || s.gen != h.gen {
		errors.Contractf(errors.ErrCodeStaleHandle,
			"stale slot handle %s (slot generation %d, live %t)", h, s.gen, s.live)
	}
	return int32(i)
}

// Reserve grows the arena to at least n slots. Growth copies the existing
// slots index-for-index and appends the new ones to the free list, so live
// handles remain valid.
func (d *Document) Reserve(n int) {
	old := len(d.slots)
	if n <= old {
		return
	}
	buf := d.alloc.Allocate(n, d.slots)
	if len(buf) != n {
		errors.Contractf(errors.ErrCodeAllocFailed,
			"allocator returned %d slots, want %d", len(buf), n)
	}
	copy(buf, d.slots)
	if d.slots != nil {
		d.alloc.Free(d.slots)
	}
	d.slots = buf
	d.chainFree(int32(old), int32(n))

	first := int32(old)
	if d.freeHead == none {
		d.freeHead = first
	} else {
		d.slots[d.freeTail].next = first
		d.slots[first].prev = d.freeTail
	}
	d.freeTail = int32(n - 1)
}

// chainFree links slots [first, end) into a standalone free chain.
func (d *Document) chainFree(first, end int32) {
	for i := first; i < end; i++ {
		s := &d.slots[i]
		s.view = ""
		s.live = false
		s.prev = i - 1
		s.next = i + 1
	}
	d.slots[first].prev = none
	d.slots[end-1].next = none
}

// Clear empties the document and returns every slot to the free list.
// All outstanding handles become stale.
func (d *Document) Clear() {
	d.size = 0
	d.textLen = 0
	d.head, d.tail = none, none
	if len(d.slots) == 0 {
		d.freeHead, d.freeTail = none, none
		return
	}
	d.chainFree(0, int32(len(d.slots)))
	d.freeHead = 0
	d.freeTail = int32(len(d.slots) - 1)
}

// Release clears the document and hands the arena back to its allocator.
func (d *Document) Release() {
	d.Clear()
	if d.slots != nil {
		d.alloc.Free(d.slots)
	}
	d.slots = nil
	d.freeHead, d.freeTail = none, none
}

func (d *Document) claim() int32 {
	if d.freeHead == none {
		n := 2 * len(d.slots)
		if n == 0 {
			n = MinCapacity
		}
		d.Reserve(n)
	}

	i := d.freeHead
	s := &d.slots[i]
	d.freeHead = s.next
	if d.freeHead == none {
		d.freeTail = none
	} else {
		d.slots[d.freeHead].prev = none
	}

	s.gen++
	s.live = true
	s.view = ""
	s.prev, s.next = none, none
	d.size++
	return i
}

func (d *Document) release(i int32) {
	s := &d.slots[i]
	d.textLen -= len(s.view)
	s.view = ""
	s.live = false

	s.next = d.freeHead
	s.prev = none
	if d.freeHead != none {
		d.slots[d.freeHead].prev = i
	}
	d.freeHead = i
	if d.freeTail == none {
		d.freeTail = i
	}
	d.size--
}

func (d *Document) insertAfter(prev int32, view string) int32 {
	i := d.claim()
	e := &d.slots[i]
	e.prev = prev
	if prev == none {
		e.next = d.head
		d.head = i
	} else {
		e.next = d.slots[prev].next
		d.slots[prev].next = i
	}
	if e.next == none {
		d.tail = i
	} else {
		d.slots[e.next].prev = i
	}
	e.view = view
	d.textLen += len(view)
	return i
}

// InsertAfter links a new slot holding view after prev; a Nil prev makes
// the new slot the head. The caller guarantees view's bytes outlive the
// Document.
func (d *Document) InsertAfter(prev Handle, view string) Handle {
	p := none
	if !prev.IsNil() {
		p = d.resolve(prev)
	}
	return d.handle(d.insertAfter(p, view))
}

// InsertBefore links a new slot holding view before next.
func (d *Document) InsertBefore(next Handle, view string) Handle {
	n := d.resolve(next)
	return d.handle(d.insertAfter(d.slots[n].prev, view))
}

// Prepend inserts view as the new head.
func (d *Document) Prepend(view string) Handle {
	return d.handle(d.insertAfter(none, view))
}

// Append inserts view as the new tail.
func (d *Document) Append(view string) Handle {
	return d.handle(d.insertAfter(d.tail, view))
}

// Erase unlinks slot h and returns it to the free list.
func (d *Document) Erase(h Handle) {
	i := d.resolve(h)
	s := &d.slots[i]
	if s.prev == none {
		d.head = s.next
	} else {
		d.slots[s.prev].next = s.next
	}
	if s.next == none {
		d.tail = s.prev
	} else {
		d.slots[s.next].prev = s.prev
	}
	d.release(i)
}

// EraseBetween erases every slot strictly between from and to. A Nil from
// means "from the head", a Nil to means "through the tail". It returns the
// number of slots erased.
func (d *Document) EraseBetween(from, to Handle) int {
	var cur int32
	if from.IsNil() {
		cur = d.head
	} else {
		cur = d.slots[d.resolve(from)].next
	}
	stop := none
	if !to.IsNil() {
		stop = d.resolve(to)
	}
	n := 0
	for cur != stop {
		if cur == none {
			errors.Contractf(errors.ErrCodeIndexOutOfRange,
				"slot %s does not follow %s", to, from)
		}
		next := d.slots[cur].next
		d.Erase(d.handle(cur))
		cur = next
		n++
	}
	return n
}

// SplitOrErase removes the byte range [offset, offset+count) from slot h
// and returns the anchor after which replacement text belongs:
//
//   - offset == 0: the view loses its prefix; the anchor is the previous
//     slot (Nil at the head).
//   - 0 < offset and offset+count < len: the slot is split in two, the
//     suffix moving to a new slot right after; the anchor is h.
//   - offset == len and count == 0: nothing changes; the anchor is h.
//   - offset+count == len: the view is truncated; the anchor is h.
//
// A range reaching past the end of the slot is rejected: ranges never
// extend into the next slot.
func (d *Document) SplitOrErase(h Handle, offset, count int) Handle {
	i := d.resolve(h)
	n := len(d.slots[i].view)
	if offset < 0 || count < 0 || offset > n {
		errors.Contractf(errors.ErrCodeIndexOutOfRange,
			"range [%d, %d+%d) outside slot %s of length %d", offset, offset, count, h, n)
	}
	if offset+count > n {
		errors.Contractf(errors.ErrCodeRangeOutOfSlot,
			"range [%d, %d) extends past the end of slot %s (length %d)", offset, offset+count, h, n)
	}

	anchor := i
	switch {
	case offset == 0:
		w := &d.slots[i]
		w.view = w.view[count:]
		anchor = w.prev
	case offset+count < n:
		j := d.insertAfter(i, "")
		w := &d.slots[i]
		d.slots[j].view = w.view[offset+count:]
		w.view = w.view[:offset]
	case offset == n && count == 0:
	case offset+count == n:
		w := &d.slots[i]
		w.view = w.view[:offset]
	}
	d.textLen -= count
	return d.handle(anchor)
}

// Split cuts slot h at offset and returns the anchor slot ending right
// before the cut.
func (d *Document) Split(h Handle, offset int) Handle {
	return d.SplitOrErase(h, offset, 0)
}

// EraseRange removes count bytes at offset from slot h.
func (d *Document) EraseRange(h Handle, offset, count int) {
	if count == 0 {
		return
	}
	d.SplitOrErase(h, offset, count)
}

// Replace substitutes count bytes at offset in slot h with view, which is
// placed in a new slot. It returns the new slot.
func (d *Document) Replace(h Handle, offset, count int, view string) Handle {
	anchor := d.SplitOrErase(h, offset, count)
	return d.InsertAfter(anchor, view)
}

// ReplaceSlot substitutes the whole view of slot h.
func (d *Document) ReplaceSlot(h Handle, view string) Handle {
	i := d.resolve(h)
	s := &d.slots[i]
	d.textLen += len(view) - len(s.view)
	s.view = view
	return h
}

// Views yields the view of every live slot from head to tail.
func (d *Document) Views() iter.Seq[string] {
	return func(yield func(string) bool) {
		for i := d.head; i != none; i = d.slots[i].next {
			if !yield(d.slots[i].view) {
				return
			}
		}
	}
}

// All yields every live slot and its view from head to tail.
func (d *Document) All() iter.Seq2[Handle, string] {
	return func(yield func(Handle, string) bool) {
		for i := d.head; i != none; i = d.slots[i].next {
			if !yield(d.handle(i), d.slots[i].view) {
				return
			}
		}
	}
}

// String concatenates the live views.
func (d *Document) String() string {
	var b strings.Builder
	b.Grow(d.textLen)
	for v := range d.Views() {
		b.WriteString(v)
	}
	return b.String()
}

// WriteTo writes the live views to w in order.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for v := range d.Views() {
		n, err := io.WriteString(w, v)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
