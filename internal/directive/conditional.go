package directive

import (
	"strings"

	"github.com/conneroisu/ropetpl/internal/errors"
	"github.com/conneroisu/ropetpl/internal/rope"
	"github.com/conneroisu/ropetpl/internal/tree"
)

// Conditional tag delimiters.
const (
	IfOpen   = "{% if "
	ElifOpen = "{% elif "
	ElseTag  = "{% else %}"
	EndifTag = "{% endif %}"
	TagClose = "%}"
)

// Branch is one guarded body of a conditional.
type Branch struct {
	Condition Condition
	// Body is the branch text without its tags, trimmed of one leading
	// and one trailing line terminator.
	Body      string
	BodyStart Location
	// Children are the table indices of the directives found directly in
	// Body.
	Children []int
}

// Conditional is an `{% if %}...{% elif %}...{% else %}...{% endif %}`
// block.
//
// Once parsed, the block occupies alternating tag and body slots in the
// document: the opening tag, the first body, the next tag and so on up to
// the endif tag. Rendering erases every tag slot together with the bodies
// that were not chosen.
type Conditional struct {
	Base
	Branches []Branch
	Else     *Branch

	tags []rope.Handle
}

// NewConditional returns an unparsed conditional directive.
func NewConditional() Directive { return &Conditional{} }

type section struct {
	start, end int
}

// Parse validates the whole block before touching the document, so a
// malformed block leaves the document as it was.
func (c *Conditional) Parse(t *Table, rem *string, loc *Location) error {
	n, err := c.span(*rem, loc.Offset)
	if err != nil {
		return err
	}
	conds, bodies, hasElse, err := scanConditional((*rem)[:n], loc.Offset)
	if err != nil {
		return err
	}
	c.pin(rem, loc, n)
	c.cut(conds, bodies, hasElse)
	*loc = c.End
	return nil
}

const (
	tagEndif = iota
	tagElse
	tagElif
	tagIf
)

var tagTokens = [...]string{
	tagEndif: EndifTag,
	tagElse:  ElseTag,
	tagElif:  ElifOpen,
	tagIf:    IfOpen,
}

// nextTag returns the position and kind of the earliest conditional tag
// in s; earlier entries of tagTokens win ties.
func nextTag(s string) (int, int) {
	pos, which := -1, -1
	for k, tok := range tagTokens {
		if i := strings.Index(s, tok); i >= 0 && (pos < 0 || i < pos) {
			pos, which = i, k
		}
	}
	return pos, which
}

// scanTag reads the condition of an if/elif tag at the start of s.
func scanTag(open, s string, offset int) (Condition, string, error) {
	end := strings.Index(s[len(open):], TagClose)
	if end < 0 {
		return Condition{}, "", syntaxAt(errors.ErrCodeUnclosedDirective,
			"condition tag is never closed by \"%}\"", offset)
	}
	cond, err := ParseCondition(s[len(open) : len(open)+end])
	if err != nil {
		return Condition{}, "", at(err, offset)
	}
	return cond, s[len(open)+end+len(TagClose):], nil
}

// scanConditional splits the full text of a block into its conditions and
// body sections. Nested blocks are skipped whole so their own tags are
// never mistaken for this block's.
func scanConditional(full string, offset int) ([]Condition, []section, bool, error) {
	var (
		conds   []Condition
		bodies  []section
		hasElse bool
	)
	s := full
	pos := func() int { return len(full) - len(s) }

	cond, s, err := scanTag(IfOpen, s, offset)
	if err != nil {
		return nil, nil, false, err
	}
	conds = append(conds, cond)
	start := pos()

	for {
		i, which := nextTag(s)
		if i < 0 {
			return nil, nil, false, syntaxAt(errors.ErrCodeUnbalanced,
				"conditional is never closed by "+EndifTag, offset)
		}
		tagAt := pos() + i

		switch which {
		case tagIf:
			after, err := SkipNested(IfOpen, EndifTag, s[i:])
			if err != nil {
				return nil, nil, false, at(err, offset+tagAt)
			}
			s = after

		case tagEndif:
			bodies = append(bodies, trimSection(full, section{start, tagAt}))
			return conds, bodies, hasElse, nil

		case tagElse:
			if hasElse {
				return nil, nil, false, syntaxAt(errors.ErrCodeInvalidStructure,
					"second {% else %} in conditional", offset+tagAt)
			}
			bodies = append(bodies, trimSection(full, section{start, tagAt}))
			hasElse = true
			s = s[i+len(ElseTag):]
			start = pos()

		case tagElif:
			if hasElse {
				return nil, nil, false, syntaxAt(errors.ErrCodeInvalidStructure,
					"{% elif %} after {% else %}", offset+tagAt)
			}
			bodies = append(bodies, trimSection(full, section{start, tagAt}))
			cond, rest, err := scanTag(ElifOpen, s[i:], offset+tagAt)
			if err != nil {
				return nil, nil, false, err
			}
			conds = append(conds, cond)
			s = rest
			start = pos()
		}
	}
}

// trimSection drops one leading and one trailing line terminator so a
// tag on a line of its own leaves no blank line behind.
func trimSection(full string, sec section) section {
	body := full[sec.start:sec.end]
	switch {
	case strings.HasPrefix(body, "\r\n"):
		sec.start += 2
	case strings.HasPrefix(body, "\n"):
		sec.start++
	}
	body = full[sec.start:sec.end]
	switch {
	case strings.HasSuffix(body, "\r\n"):
		sec.end -= 2
	case strings.HasSuffix(body, "\n"):
		sec.end--
	}
	return sec
}

// cut re-slices the pinned slot into alternating tag and body slots.
func (c *Conditional) cut(conds []Condition, bodies []section, hasElse bool) {
	doc := c.Start.Doc
	full := c.FullText

	prev := doc.ReplaceSlot(c.Slot, full[:bodies[0].start])
	c.tags = append(c.tags[:0], prev)

	for i, sec := range bodies {
		body := doc.InsertAfter(prev, full[sec.start:sec.end])
		end := len(full)
		if i+1 < len(bodies) {
			end = bodies[i+1].start
		}
		prev = doc.InsertAfter(body, full[sec.end:end])
		c.tags = append(c.tags, prev)

		b := Branch{
			Body: full[sec.start:sec.end],
			BodyStart: Location{
				Doc:    doc,
				Pos:    rope.Position{Slot: body},
				Offset: c.Start.Offset + sec.start,
			},
		}
		if i < len(conds) {
			b.Condition = conds[i]
			c.Branches = append(c.Branches, b)
		} else if hasElse {
			c.Else = &b
		}
	}

	c.End.Pos = rope.Position{Slot: doc.Next(prev)}
}

// branch returns branch i, the else branch for i == len(Branches), or nil.
func (c *Conditional) branch(i int) *Branch {
	switch {
	case i >= 0 && i < len(c.Branches):
		return &c.Branches[i]
	case i == len(c.Branches):
		return c.Else
	default:
		return nil
	}
}

// ParseBody parses the directives inside every branch, depth first.
func (c *Conditional) ParseBody(t *Table, self int) error {
	for i := 0; ; i++ {
		b := t.Get(self).(*Conditional).branch(i)
		if b == nil {
			return nil
		}
		children, err := ParseSpan(t, b.Body, b.BodyStart)
		if err != nil {
			return err
		}
		t.Get(self).(*Conditional).branch(i).Children = children
	}
}

// Choose returns the index of the first branch whose condition holds,
// len(Branches) when the else branch applies, or -1 when nothing renders.
func (c *Conditional) Choose(root tree.Node) int {
	for i := range c.Branches {
		if c.Branches[i].Condition.Resolve(root) {
			return i
		}
	}
	if c.Else != nil {
		return len(c.Branches)
	}
	return -1
}

// Resolve returns the body that renders for root and its branch index.
func (c *Conditional) Resolve(root tree.Node) (string, int) {
	i := c.Choose(root)
	if b := c.branch(i); b != nil {
		return b.Body, i
	}
	return "", i
}

// Render renders the chosen body's directives, then erases the tags and
// every other body.
func (c *Conditional) Render(rc *RenderContext, self int) error {
	chosen := c.Choose(rc.Data)
	if b := c.branch(chosen); b != nil {
		if err := rc.RenderAll(b.Children); err != nil {
			return err
		}
	}

	doc := rc.Table.Document()
	for i := 0; i+1 < len(c.tags); i++ {
		if i != chosen {
			doc.EraseBetween(c.tags[i], c.tags[i+1])
		}
	}
	for _, h := range c.tags {
		doc.Erase(h)
	}
	c.tags = nil
	return nil
}

// DataRoots returns the top-level data keys the branch conditions read.
// Directives nested in the bodies report their own.
func (c *Conditional) DataRoots() []string {
	var out []string
	for _, br := range c.Branches {
		out = append(out, br.Condition.LHS.Roots()...)
		if br.Condition.Kind != CondTruthy {
			out = append(out, br.Condition.RHS.Roots()...)
		}
	}
	return out
}
