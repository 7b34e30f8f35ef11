package directive

import (
	"fmt"

	"golang.org/x/net/html"

	"github.com/conneroisu/ropetpl/internal/errors"
	"github.com/conneroisu/ropetpl/internal/tree"
)

// MissingPolicy decides what a variable that resolves to nothing renders.
type MissingPolicy string

const (
	// MissingEmpty renders nothing.
	MissingEmpty MissingPolicy = "empty"
	// MissingKeep leaves the directive text in the output.
	MissingKeep MissingPolicy = "keep"
	// MissingError fails the render.
	MissingError MissingPolicy = "error"
)

// ParseMissingPolicy validates a policy name; "" selects MissingEmpty.
func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch p := MissingPolicy(s); p {
	case "":
		return MissingEmpty, nil
	case MissingEmpty, MissingKeep, MissingError:
		return p, nil
	default:
		return "", errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown missing-value policy %q (want empty, keep or error)", s))
	}
}

// EscapeMode selects how substituted values are escaped.
type EscapeMode string

const (
	EscapeNone EscapeMode = "none"
	EscapeHTML EscapeMode = "html"
)

// ParseEscapeMode validates an escape mode name; "" selects EscapeNone.
func ParseEscapeMode(s string) (EscapeMode, error) {
	switch m := EscapeMode(s); m {
	case "":
		return EscapeNone, nil
	case EscapeNone, EscapeHTML:
		return m, nil
	default:
		return "", errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown escape mode %q (want none or html)", s))
	}
}

// Escape applies the mode to s.
func (m EscapeMode) Escape(s string) string {
	if m == EscapeHTML {
		return html.EscapeString(s)
	}
	return s
}

// RenderContext carries what directives need while rendering.
type RenderContext struct {
	Table   *Table
	Data    tree.Node
	Missing MissingPolicy
	Escape  EscapeMode
}

// RenderAll renders the given top-level directives in order.
func (rc *RenderContext) RenderAll(indices []int) error {
	for _, i := range indices {
		if err := rc.Table.Get(i).Render(rc, i); err != nil {
			return err
		}
	}
	return nil
}
