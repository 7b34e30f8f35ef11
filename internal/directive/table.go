package directive

import (
	"fmt"
	"iter"
	"unsafe"

	"github.com/conneroisu/ropetpl/internal/errors"
	"github.com/conneroisu/ropetpl/internal/rope"
)

// tagSize is the per-record overhead added to the largest kind size to
// obtain the table stride.
const tagSize = unsafe.Sizeof(TypeID(0))

// Location is a cursor into a document being parsed.
type Location struct {
	Doc *rope.Document
	Pos rope.Position
	// Offset is the byte offset of Pos in the source text. Views never
	// copy, so this stays meaningful after the document has been cut.
	Offset int
}

// Begin returns a location at the start of doc.
func Begin(doc *rope.Document) Location {
	return Location{Doc: doc, Pos: doc.Begin()}
}

type record struct {
	tag TypeID
	d   Directive
}

// Table stores the directives discovered in one document, in discovery
// order. A directive is addressed by its index; pointers obtained from
// Get must not be held across a call that may append to the table.
type Table struct {
	reg     *Registry
	doc     *rope.Document
	records []record
	stride  uintptr
}

// NewTable creates an empty table over doc.
func NewTable(reg *Registry, doc *rope.Document, capHint int) *Table {
	return &Table{
		reg:     reg,
		doc:     doc,
		records: make([]record, 0, max(capHint, 0)),
	}
}

// Registry returns the kind catalog the table was created with.
func (t *Table) Registry() *Registry { return t.reg }

// Document returns the document the table's directives point into.
func (t *Table) Document() *rope.Document { return t.doc }

// Len returns the number of directives.
func (t *Table) Len() int { return len(t.records) }

// Stride returns the storage stride, zero before the first directive.
func (t *Table) Stride() uintptr { return t.stride }

// Next scans *rem for the earliest opening delimiter of any registered
// kind. On a match it appends an unparsed instance, advances *rem and loc
// to the delimiter and returns the new index. It returns ok == false when
// nothing matches, leaving *rem and loc untouched.
func (t *Table) Next(rem *string, loc *Location) (int, bool, error) {
	m, ok := t.reg.MatchAny(*rem)
	if !ok {
		return -1, false, nil
	}
	k := t.reg.Kind(m.Type)

	want := t.reg.MaxSize() + tagSize
	if t.stride == 0 {
		t.stride = want
	}
	if t.stride != want {
		return -1, false, errors.NewConfigError(errors.ErrCodeStrideMismatch,
			fmt.Sprintf("table stride %d does not match registry (%d); kinds were registered during a parse",
				t.stride, want))
	}
	if k.Size+tagSize > t.stride {
		return -1, false, errors.NewConfigError(errors.ErrCodeStrideMismatch,
			fmt.Sprintf("directive %q (size %d) does not fit stride %d", k.Name, k.Size, t.stride))
	}

	d := k.New()
	d.Core().Kind = k
	t.records = append(t.records, record{tag: m.Type, d: d})

	*rem = (*rem)[m.Pos:]
	loc.Pos.Offset += m.Pos
	loc.Offset += m.Pos

	return len(t.records) - 1, true, nil
}

func (t *Table) check(i int) {
	if i < 0 || i >= len(t.records) {
		errors.Contractf(errors.ErrCodeIndexOutOfRange,
			"directive index %d out of range (%d directives)", i, len(t.records))
	}
}

// Get returns the directive at index i.
func (t *Table) Get(i int) Directive {
	t.check(i)
	return t.records[i].d
}

// Type returns the TypeID of the directive at index i.
func (t *Table) Type(i int) TypeID {
	t.check(i)
	return t.records[i].tag
}

// All yields every directive with its index, in discovery order.
func (t *Table) All() iter.Seq2[int, Directive] {
	return func(yield func(int, Directive) bool) {
		for i := 0; i < len(t.records); i++ {
			if !yield(i, t.records[i].d) {
				return
			}
		}
	}
}

// Destroy drops every directive. The table can be reused afterwards.
func (t *Table) Destroy() {
	clear(t.records)
	t.records = t.records[:0]
	t.stride = 0
}
