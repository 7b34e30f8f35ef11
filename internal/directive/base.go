package directive

import (
	"fmt"
	"strings"

	"github.com/conneroisu/ropetpl/internal/errors"
	"github.com/conneroisu/ropetpl/internal/rope"
)

// Directive is one parsed template construct.
//
// Parse is called with *rem starting at the directive's opening delimiter
// and loc pointing at the same byte in the document. It must consume the
// directive's full text from *rem and leave loc on the first byte after
// it. ParseBody is called once Parse has succeeded and may recursively
// discover nested directives in the same table; self is the directive's
// own index and must be used to re-fetch the receiver after any call that
// can append to the table. Render runs once, after the whole document has
// been parsed.
type Directive interface {
	Core() *Base
	Parse(t *Table, rem *string, loc *Location) error
	ParseBody(t *Table, self int) error
	Render(rc *RenderContext, self int) error
}

// DataReader is implemented by directives that read the data tree. It
// lets callers find which templates a data change affects.
type DataReader interface {
	DataRoots() []string
}

// Base holds the state shared by every directive kind.
type Base struct {
	Kind Kind
	// Start is the location of the opening delimiter, End the location
	// right after the closing one.
	Start, End Location
	// FullText spans from the opening delimiter through the closing one.
	FullText string
	// InteriorText is FullText without its delimiters.
	InteriorText string
	// Slot is the document slot holding FullText once parsed.
	Slot rope.Handle

	parsed bool
}

// Core returns the shared state of a directive.
func (b *Base) Core() *Base { return b }

// Parsed reports whether Parse completed.
func (b *Base) Parsed() bool { return b.parsed }

// ParseBody is a no-op for kinds without a body.
func (b *Base) ParseBody(*Table, int) error { return nil }

// Parse locates the closing delimiter and pins the directive.
func (b *Base) Parse(t *Table, rem *string, loc *Location) error {
	n, err := b.span(*rem, loc.Offset)
	if err != nil {
		return err
	}
	b.pin(rem, loc, n)
	return nil
}

// span returns the length of the directive's full text at the start of
// rem without changing anything.
func (b *Base) span(rem string, offset int) (int, error) {
	if b.parsed {
		errors.Contractf(errors.ErrCodeDoubleParse, "directive %q parsed twice", b.Kind.Name)
	}
	if !strings.HasPrefix(rem, b.Kind.Open) {
		errors.Contractf(errors.ErrCodeIndexOutOfRange,
			"directive %q does not start at the cursor", b.Kind.Name)
	}

	if b.Kind.Nestable {
		after, err := SkipNested(b.Kind.Open, b.Kind.Close, rem)
		if err != nil {
			return 0, at(err, offset)
		}
		return len(rem) - len(after), nil
	}

	end := strings.Index(rem[len(b.Kind.Open):], b.Kind.Close)
	if end < 0 {
		return 0, syntaxAt(errors.ErrCodeUnclosedDirective,
			fmt.Sprintf("%q is never closed by %q", b.Kind.Open, b.Kind.Close), offset)
	}
	return len(b.Kind.Open) + end + len(b.Kind.Close), nil
}

// pin carves the first n bytes of *rem into a slot of their own and moves
// the cursor past them.
func (b *Base) pin(rem *string, loc *Location, n int) {
	full := (*rem)[:n]
	doc := loc.Doc
	if len(doc.Sub(loc.Pos)) < n {
		errors.Contractf(errors.ErrCodeRangeOutOfSlot,
			"directive %q spans past the cursor slot", b.Kind.Name)
	}

	b.Start = *loc
	b.FullText = full
	b.InteriorText = full[len(b.Kind.Open) : n-len(b.Kind.Close)]
	b.Slot = doc.Replace(loc.Pos.Slot, loc.Pos.Offset, n, full)

	loc.Pos = rope.Position{Slot: doc.Next(b.Slot), Offset: 0}
	loc.Offset += n
	b.End = *loc
	*rem = (*rem)[n:]
	b.parsed = true
}

// SkipNested returns the text following the closing delimiter that
// balances the opening delimiter at the start of rem. Nested open/close
// pairs are counted; an opening delimiter wins a tie.
func SkipNested(open, close, rem string) (string, error) {
	if !strings.HasPrefix(rem, open) {
		errors.Contractf(errors.ErrCodeIndexOutOfRange, "text does not start with %q", open)
	}

	r := rem[len(open):]
	level := 1
	for {
		ic := strings.Index(r, close)
		if ic < 0 {
			return "", syntaxAt(errors.ErrCodeUnbalanced,
				fmt.Sprintf("%q is never closed by %q", open, close), 0)
		}
		if io := strings.Index(r[:ic+len(close)], open); io >= 0 && io <= ic {
			level++
			r = r[io+len(open):]
			continue
		}
		level--
		r = r[ic+len(close):]
		if level == 0 {
			return r, nil
		}
	}
}

// ParseSpan discovers, parses and body-parses every directive in text,
// which must lie at loc. It returns the indices of the directives found at
// this level; nested ones are appended to the table by their parents.
func ParseSpan(t *Table, text string, loc Location) ([]int, error) {
	var found []int
	for text != "" {
		i, ok, err := t.Next(&text, &loc)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if err := t.Get(i).Parse(t, &text, &loc); err != nil {
			return nil, err
		}
		if err := t.Get(i).ParseBody(t, i); err != nil {
			return nil, err
		}
		found = append(found, i)
	}
	return found, nil
}

func syntaxAt(code, msg string, offset int) *errors.TplError {
	return errors.NewSyntaxError(code, msg).WithContext("offset", offset)
}

// at shifts the offset recorded by syntaxAt by base, recording base
// itself on errors that carry no offset yet.
func at(err error, base int) error {
	if te, ok := err.(*errors.TplError); ok {
		off, _ := te.Context["offset"].(int)
		te.WithContext("offset", base+off)
	}
	return err
}

// Offset returns the source offset recorded on a parse error.
func Offset(err error) (int, bool) {
	te, ok := err.(*errors.TplError)
	if !ok {
		return 0, false
	}
	off, ok := te.Context["offset"].(int)
	return off, ok
}
