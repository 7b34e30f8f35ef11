package directive

import (
	"strings"

	"github.com/conneroisu/ropetpl/internal/errors"
)

// Variable substitutes a data value: `{{ path | filter | filter:arg }}`.
type Variable struct {
	Base
	Value   Operand
	Filters []filterCall
	raw     bool
}

// NewVariable returns an unparsed variable directive.
func NewVariable() Directive { return &Variable{} }

// Parse compiles the expression and pins the directive.
func (v *Variable) Parse(t *Table, rem *string, loc *Location) error {
	n, err := v.span(*rem, loc.Offset)
	if err != nil {
		return err
	}
	interior := (*rem)[len(v.Kind.Open) : n-len(v.Kind.Close)]
	if err := v.compile(interior); err != nil {
		return at(err, loc.Offset)
	}
	v.pin(rem, loc, n)
	return nil
}

func (v *Variable) compile(expr string) error {
	parts := splitPipes(expr)
	if strings.TrimSpace(parts[0]) == "" {
		return syntaxAt(errors.ErrCodeInvalidPath, "empty variable expression", 0)
	}
	value, err := ParseOperand(parts[0])
	if err != nil {
		return err
	}
	v.Value = value
	for _, p := range parts[1:] {
		f, err := parseFilter(p)
		if err != nil {
			return err
		}
		if f.name == "raw" {
			v.raw = true
			continue
		}
		v.Filters = append(v.Filters, f)
	}
	return nil
}

// Evaluate resolves and filters the value. found is false when the path
// resolved to nothing and no default filter supplied a value.
func (v *Variable) Evaluate(rc *RenderContext) (string, bool) {
	s, found := v.Value.String(rc.Data)
	for _, f := range v.Filters {
		if f.name == "default" && (!found || s == "") {
			found = true
		}
		s = f.fn(s, f.arg)
	}
	return s, found
}

// Render replaces the directive's slot with its value.
func (v *Variable) Render(rc *RenderContext, self int) error {
	s, found := v.Evaluate(rc)
	if !found {
		switch rc.Missing {
		case MissingKeep:
			return nil
		case MissingError:
			return errors.NewDataError(errors.ErrCodeMissingValue,
				"no value for "+v.Value.Raw, nil).WithContext("offset", v.Start.Offset)
		}
	}
	if !v.raw {
		s = rc.Escape.Escape(s)
	}
	rc.Table.Document().ReplaceSlot(v.Slot, s)
	return nil
}

// DataRoots returns the top-level data keys the variable reads.
func (v *Variable) DataRoots() []string { return v.Value.Roots() }
