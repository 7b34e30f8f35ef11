package directive

import (
	"strconv"
	"strings"

	"github.com/conneroisu/ropetpl/internal/errors"
	"github.com/conneroisu/ropetpl/internal/tree"
)

// Markers substituted for container values in string comparisons.
const (
	MapMarker = "<<<map>>>"
	SeqMarker = "<<<seq>>>"
)

type segmentKind int

const (
	segKey segmentKind = iota
	segIndex
	segLookup
)

// segment is one step of a path: a key, an integer index or a nested
// lookup whose scalar result is used as the key.
type segment struct {
	kind  segmentKind
	key   string
	index int
	sub   *Path
}

// Path is a compiled data path such as `site.pages[0].title` or
// `colors[user.favorite]`.
type Path struct {
	Raw      string
	segments []segment
}

// Operand is either a data path or a quoted string literal.
type Operand struct {
	Raw     string
	Literal bool
	Value   string
	Path    *Path
}

// ParseOperand compiles a condition or variable operand.
func ParseOperand(text string) (Operand, error) {
	text = strings.TrimSpace(text)
	if n := len(text); n >= 2 && (text[0] == '"' || text[0] == '\'') {
		if text[n-1] != text[0] {
			return Operand{}, errors.NewSyntaxError(errors.ErrCodeInvalidPath,
				"unterminated string literal: "+text)
		}
		return Operand{Raw: text, Literal: true, Value: text[1 : n-1]}, nil
	}
	p, err := ParsePath(text)
	if err != nil {
		return Operand{}, err
	}
	return Operand{Raw: text, Path: p}, nil
}

func badPath(raw, why string) error {
	return errors.NewSyntaxError(errors.ErrCodeInvalidPath, "invalid path "+strconv.Quote(raw)+": "+why)
}

// ParsePath compiles a dotted/bracketed path. A leading run of digits
// indexes into the root.
func ParsePath(raw string) (*Path, error) {
	p := &Path{Raw: raw}
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, badPath(raw, "empty")
	}

	first := true
	for s != "" {
		switch {
		case s[0] == '[':
			end := matchBracket(s)
			if end < 0 {
				return nil, badPath(raw, "unclosed '['")
			}
			inner := strings.TrimSpace(s[1:end])
			if inner == "" {
				return nil, badPath(raw, "empty brackets")
			}
			if n, err := strconv.Atoi(inner); err == nil && n >= 0 {
				p.segments = append(p.segments, segment{kind: segIndex, index: n, key: inner})
			} else {
				sub, err := ParsePath(inner)
				if err != nil {
					return nil, err
				}
				p.segments = append(p.segments, segment{kind: segLookup, sub: sub})
			}
			s = s[end+1:]
		case s[0] == '.':
			if first {
				return nil, badPath(raw, "leading '.'")
			}
			s = s[1:]
			if s == "" || s[0] == '.' || s[0] == '[' {
				return nil, badPath(raw, "empty segment")
			}
			fallthrough
		default:
			end := strings.IndexAny(s, ".[]")
			if end < 0 {
				end = len(s)
			}
			if end == 0 {
				return nil, badPath(raw, "unexpected ']'")
			}
			key := s[:end]
			if strings.ContainsAny(key, " \t\r\n") {
				return nil, badPath(raw, "whitespace in identifier")
			}
			if n, err := strconv.Atoi(key); first && err == nil && n >= 0 {
				p.segments = append(p.segments, segment{kind: segIndex, index: n, key: key})
			} else {
				p.segments = append(p.segments, segment{kind: segKey, key: key})
			}
			s = s[end:]
		}
		first = false
	}
	return p, nil
}

func matchBracket(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// Lookup walks the path from root.
func (p *Path) Lookup(root tree.Node) (tree.Node, bool) {
	cur := root
	for _, seg := range p.segments {
		if cur == nil {
			return nil, false
		}
		var ok bool
		switch seg.kind {
		case segKey:
			if n, err := strconv.Atoi(seg.key); err == nil && cur.IsSeq() {
				cur, ok = index(cur, n, seg.key)
			} else {
				cur, ok = cur.FindChild(seg.key)
			}
		case segIndex:
			cur, ok = index(cur, seg.index, seg.key)
		case segLookup:
			var k tree.Node
			k, ok = seg.sub.Lookup(root)
			if !ok || !k.IsScalar() {
				return nil, false
			}
			key := k.Val()
			if n, err := strconv.Atoi(key); err == nil && cur.IsSeq() {
				cur, ok = index(cur, n, key)
			} else {
				cur, ok = cur.FindChild(key)
			}
		}
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Roots returns the top-level data keys the path can read: its own first
// key plus the first keys of any nested lookups. A path whose first step is
// itself a lookup depends on every root key and reports "*".
func (p *Path) Roots() []string {
	var out []string
	for i, seg := range p.segments {
		switch {
		case seg.kind == segLookup:
			if i == 0 {
				out = append(out, "*")
			}
			out = append(out, seg.sub.Roots()...)
		case i == 0:
			out = append(out, seg.key)
		}
	}
	return out
}

// Roots returns the top-level data keys the operand reads. Literals read
// none.
func (o Operand) Roots() []string {
	if o.Literal || o.Path == nil {
		return nil
	}
	return o.Path.Roots()
}

// index reads item n of a sequence. Maps are looked up by the key text
// so that `m[0]` finds a key spelled "0".
func index(n tree.Node, i int, key string) (tree.Node, bool) {
	switch {
	case n.IsSeq():
		if i < 0 || i >= n.NumChildren() {
			return nil, false
		}
		return n.Child(i), true
	case n.IsMap():
		return n.FindChild(key)
	default:
		return nil, false
	}
}

// String resolves the operand to text. Containers resolve to a marker
// string; a missing path resolves to "" with found == false.
func (o Operand) String(root tree.Node) (string, bool) {
	if o.Literal {
		return o.Value, true
	}
	n, ok := o.Path.Lookup(root)
	if !ok {
		return "", false
	}
	return display(n), true
}

// Node resolves a path operand to a node. Literals never resolve.
func (o Operand) Node(root tree.Node) (tree.Node, bool) {
	if o.Literal {
		return nil, false
	}
	return o.Path.Lookup(root)
}

func display(n tree.Node) string {
	switch {
	case n.IsMap():
		return MapMarker
	case n.IsSeq():
		return SeqMarker
	default:
		return n.Val()
	}
}
