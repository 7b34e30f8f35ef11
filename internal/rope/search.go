package rope

import (
	"iter"
	"strings"

	"github.com/conneroisu/ropetpl/internal/errors"
)

// LookupToken finds the first occurrence of needle at or after pos. Each
// slot is searched on its own, so an occurrence spanning a slot boundary is
// never reported. It returns NoPosition when nothing matches.
func (d *Document) LookupToken(needle string, pos Position) Position {
	for pos.Valid() {
		v := d.View(pos.Slot)
		if pos.Offset <= len(v) {
			if k := strings.Index(v[pos.Offset:], needle); k >= 0 {
				return Position{Slot: pos.Slot, Offset: pos.Offset + k}
			}
		}
		pos = Position{Slot: d.Next(pos.Slot), Offset: 0}
	}
	return NoPosition
}

// Tokens yields the position of every occurrence of needle, scanning
// forward from the head. Mutating the document while ranging is not
// supported; use ReplaceAll and friends for that.
func (d *Document) Tokens(needle string) iter.Seq[Position] {
	return func(yield func(Position) bool) {
		if needle == "" {
			return
		}
		pos := d.LookupToken(needle, d.Begin())
		for pos.Valid() {
			if !yield(pos) {
				return
			}
			pos = d.LookupToken(needle, Position{Slot: pos.Slot, Offset: pos.Offset + len(needle)})
		}
	}
}

// SplitBefore splits the slot containing the next occurrence of needle
// right before it and returns the anchor slot ending there. The anchor is
// Nil when the match starts the document. ok is false if needle is absent.
func (d *Document) SplitBefore(needle string, pos Position) (anchor Handle, ok bool) {
	p := d.LookupToken(needle, pos)
	if !p.Valid() {
		return Nil, false
	}
	return d.Split(p.Slot, p.Offset), true
}

// SplitAfter splits the slot containing the next occurrence of needle
// right after it and returns the anchor slot ending with the match.
func (d *Document) SplitAfter(needle string, pos Position) (anchor Handle, ok bool) {
	p := d.LookupToken(needle, pos)
	if !p.Valid() {
		return Nil, false
	}
	return d.Split(p.Slot, p.Offset+len(needle)), true
}

// InsertBeforeToken inserts val right before the next occurrence of needle
// and returns the position of the inserted slot.
func (d *Document) InsertBeforeToken(needle, val string, pos Position) (Position, bool) {
	anchor, ok := d.SplitBefore(needle, pos)
	if !ok {
		return NoPosition, false
	}
	return Position{Slot: d.InsertAfter(anchor, val), Offset: 0}, true
}

// InsertAfterToken inserts val right after the next occurrence of needle
// and returns the position of the inserted slot.
func (d *Document) InsertAfterToken(needle, val string, pos Position) (Position, bool) {
	anchor, ok := d.SplitAfter(needle, pos)
	if !ok {
		return NoPosition, false
	}
	return Position{Slot: d.InsertAfter(anchor, val), Offset: 0}, true
}

func mustNeedle(needle string) {
	if needle == "" {
		errors.Contractf(errors.ErrCodeIndexOutOfRange, "empty search token")
	}
}

// InsertBeforeAll inserts val before every occurrence of needle. It returns
// the number of insertions.
func (d *Document) InsertBeforeAll(needle, val string) int {
	mustNeedle(needle)
	n := 0
	pos := d.Begin()
	for pos.Valid() {
		ins, ok := d.InsertBeforeToken(needle, val, pos)
		if !ok {
			break
		}
		n++
		// the slot after the insertion starts with needle
		pos = Position{Slot: d.Next(ins.Slot), Offset: len(needle)}
	}
	return n
}

// InsertAfterAll inserts val after every occurrence of needle. It returns
// the number of insertions.
func (d *Document) InsertAfterAll(needle, val string) int {
	mustNeedle(needle)
	n := 0
	pos := d.Begin()
	for pos.Valid() {
		ins, ok := d.InsertAfterToken(needle, val, pos)
		if !ok {
			break
		}
		n++
		pos = Position{Slot: d.Next(ins.Slot), Offset: 0}
	}
	return n
}

// ReplaceAll replaces every occurrence of needle with repl. Inserted text is
// never searched again. It returns the number of replacements.
func (d *Document) ReplaceAll(needle, repl string) int {
	mustNeedle(needle)
	n := 0
	pos := d.Begin()
	for pos.Valid() {
		p := d.LookupToken(needle, pos)
		if !p.Valid() {
			break
		}
		h := d.Replace(p.Slot, p.Offset, len(needle), repl)
		n++
		pos = Position{Slot: d.Next(h), Offset: 0}
	}
	return n
}
