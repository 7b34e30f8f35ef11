package directive

import (
	"strings"

	"github.com/conneroisu/ropetpl/internal/errors"
	"github.com/conneroisu/ropetpl/internal/tree"
)

// CondKind is the comparison a Condition performs.
type CondKind int

const (
	CondTruthy CondKind = iota
	CondEqual
	CondNotEqual
	CondLess
	CondLessEqual
	CondGreater
	CondGreaterEqual
	CondIn
	CondNotIn
)

var condNames = [...]string{
	CondTruthy:       "truthy",
	CondEqual:        "==",
	CondNotEqual:     "!=",
	CondLess:         "<",
	CondLessEqual:    "<=",
	CondGreater:      ">",
	CondGreaterEqual: ">=",
	CondIn:           "in",
	CondNotIn:        "not in",
}

func (k CondKind) String() string {
	if k < 0 || int(k) >= len(condNames) {
		return "unknown"
	}
	return condNames[k]
}

// Condition is the parsed text of an if/elif tag.
type Condition struct {
	Kind CondKind
	Text string
	LHS  Operand
	RHS  Operand
}

func badCondition(text, why string) error {
	return errors.NewSyntaxError(errors.ErrCodeInvalidCondition,
		"invalid condition \""+text+"\": "+why)
}

// ParseCondition classifies text. Operators are searched in a fixed order:
// '<', '>', "!=", "==", " not in ", " in ", and only then is the whole
// text taken as a truthiness test. The first operator in that order that
// occurs anywhere in the text decides the split.
func ParseCondition(text string) (Condition, error) {
	text = strings.TrimSpace(text)
	c := Condition{Text: text}
	if text == "" {
		return c, badCondition(text, "empty")
	}
	if strings.ContainsAny(text, "{}*") {
		return c, badCondition(text, "unexpected '{', '}' or '*'")
	}

	op, pos, width := CondTruthy, -1, 0
	if i := strings.IndexByte(text, '<'); i >= 0 {
		op, pos, width = CondLess, i, 1
		if i+1 < len(text) && text[i+1] == '=' {
			op, width = CondLessEqual, 2
		}
	} else if i := strings.IndexByte(text, '>'); i >= 0 {
		op, pos, width = CondGreater, i, 1
		if i+1 < len(text) && text[i+1] == '=' {
			op, width = CondGreaterEqual, 2
		}
	} else if i := strings.IndexByte(text, '!'); i >= 0 {
		if i+1 >= len(text) || text[i+1] != '=' {
			return c, badCondition(text, "'!' must be followed by '='")
		}
		op, pos, width = CondNotEqual, i, 2
	} else if i := strings.IndexByte(text, '='); i >= 0 {
		if i+1 >= len(text) || text[i+1] != '=' {
			return c, badCondition(text, "'=' must be followed by '='")
		}
		op, pos, width = CondEqual, i, 2
	} else if i := strings.Index(text, " not in "); i >= 0 {
		op, pos, width = CondNotIn, i, len(" not in ")
	} else if i := strings.Index(text, " in "); i >= 0 {
		op, pos, width = CondIn, i, len(" in ")
	}

	c.Kind = op
	if op == CondTruthy {
		lhs, err := ParseOperand(text)
		if err != nil {
			return c, badCondition(text, err.Error())
		}
		c.LHS = lhs
		return c, nil
	}

	left, right := strings.TrimSpace(text[:pos]), strings.TrimSpace(text[pos+width:])
	if left == "" || right == "" {
		return c, badCondition(text, "operator "+op.String()+" needs two operands")
	}
	var err error
	if c.LHS, err = ParseOperand(left); err != nil {
		return c, badCondition(text, err.Error())
	}
	if c.RHS, err = ParseOperand(right); err != nil {
		return c, badCondition(text, err.Error())
	}
	return c, nil
}

// Resolve evaluates the condition against root.
//
// A truthiness test holds for a non-empty scalar. Ordering and equality
// compare the operands' text, containers standing in as marker strings
// and missing paths as "". Membership tests the left operand against the
// keys of a map or the scalar items of a sequence; when the right operand
// is not a container both "in" and "not in" are false.
func (c Condition) Resolve(root tree.Node) bool {
	switch c.Kind {
	case CondTruthy:
		n, ok := c.LHS.Node(root)
		if !ok {
			return c.LHS.Literal && c.LHS.Value != ""
		}
		return n.IsScalar() && n.Val() != ""
	case CondIn, CondNotIn:
		container, ok := c.RHS.Node(root)
		if !ok || container.IsScalar() {
			return false
		}
		found := contains(container, c.needle(root))
		return found == (c.Kind == CondIn)
	}

	l, _ := c.LHS.String(root)
	r, _ := c.RHS.String(root)
	switch c.Kind {
	case CondEqual:
		return l == r
	case CondNotEqual:
		return l != r
	case CondLess:
		return l < r
	case CondLessEqual:
		return l <= r
	case CondGreater:
		return l > r
	case CondGreaterEqual:
		return l >= r
	}
	return false
}

// needle is the value searched for by a membership test: the scalar the
// left path resolves to, or else the operand text itself.
func (c Condition) needle(root tree.Node) string {
	if c.LHS.Literal {
		return c.LHS.Value
	}
	if n, ok := c.LHS.Path.Lookup(root); ok && n.IsScalar() {
		return n.Val()
	}
	return c.LHS.Raw
}

func contains(container tree.Node, needle string) bool {
	if container.IsMap() {
		_, ok := container.FindChild(needle)
		return ok
	}
	for item := range container.Children() {
		if item.IsScalar() && item.Val() == needle {
			return true
		}
	}
	return false
}
