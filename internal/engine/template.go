package engine

import (
	"context"
	"io"
	"sort"
	"strings"

	"github.com/conneroisu/ropetpl/internal/directive"
	"github.com/conneroisu/ropetpl/internal/errors"
	"github.com/conneroisu/ropetpl/internal/logging"
	"github.com/conneroisu/ropetpl/internal/rope"
	"github.com/conneroisu/ropetpl/internal/tree"
)

// Template is a parsed source. Rendering mutates the underlying document,
// so a Template renders once; parse again to render with other data.
type Template struct {
	Name   string
	Source string

	engine   *Engine
	doc      *rope.Document
	table    *directive.Table
	top      []int
	rendered bool
}

// Document exposes the template's document.
func (t *Template) Document() *rope.Document { return t.doc }

// Table exposes the template's directive table.
func (t *Template) Table() *directive.Table { return t.table }

// Render renders the template against data and returns the result.
func (t *Template) Render(ctx context.Context, data tree.Node) (string, error) {
	if err := t.render(ctx, data); err != nil {
		return "", err
	}
	return t.doc.String(), nil
}

// Execute renders the template against data and writes the result to w.
func (t *Template) Execute(ctx context.Context, w io.Writer, data tree.Node) error {
	if err := t.render(ctx, data); err != nil {
		return err
	}
	_, err := t.doc.WriteTo(w)
	if err != nil {
		return errors.NewIOError(errors.ErrCodeInternalError, "cannot write output of "+t.Name, err)
	}
	return nil
}

func (t *Template) render(ctx context.Context, data tree.Node) error {
	e := t.engine
	if t.rendered {
		return errors.NewContractError(errors.ErrCodeAlreadyRendered,
			"template "+t.Name+" has already been rendered")
	}
	if t.doc == nil {
		return errors.NewContractError(errors.ErrCodeAlreadyRendered,
			"template "+t.Name+" has been closed")
	}
	t.rendered = true
	if data == nil {
		data = tree.Empty()
	}

	op := logging.StartOperation(e.logger, "render")
	rc := &directive.RenderContext{
		Table:   t.table,
		Data:    data,
		Missing: e.opts.Missing,
		Escape:  e.opts.Escape,
	}
	if err := rc.RenderAll(t.top); err != nil {
		e.failed.Add(1)
		err = locate(err, t.Name, t.Source)
		op.EndWithError(ctx, err, "template", t.Name)
		return err
	}

	e.rendered.Add(1)
	op.End(ctx, "template", t.Name, "bytes", t.doc.Len())
	return nil
}

// Close releases the template's storage.
func (t *Template) Close() {
	if t.doc == nil {
		return
	}
	t.table.Destroy()
	t.doc.Release()
	t.doc = nil
}

// Summary describes one directive of a parsed template.
type Summary struct {
	Index     int    `json:"index" yaml:"index"`
	Kind      string `json:"kind" yaml:"kind"`
	Depth     int    `json:"depth" yaml:"depth"`
	Line      int    `json:"line" yaml:"line"`
	Column    int    `json:"column" yaml:"column"`
	Branches  int    `json:"branches,omitempty" yaml:"branches,omitempty"`
	HasElse   bool   `json:"has_else,omitempty" yaml:"has_else,omitempty"`
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
	Text      string `json:"text" yaml:"text"`
}

// Directives lists the template's directives in document order, nested
// ones directly after their parent.
func (t *Template) Directives() []Summary {
	var out []Summary
	var walk func(indices []int, depth int)
	walk = func(indices []int, depth int) {
		for _, i := range indices {
			d := t.table.Get(i)
			b := d.Core()
			line, col := errors.Position(t.Source, b.Start.Offset)
			s := Summary{
				Index:  i,
				Kind:   b.Kind.Name,
				Depth:  depth,
				Line:   line,
				Column: col,
				Text:   firstLine(b.FullText),
			}
			c, ok := d.(*directive.Conditional)
			if !ok {
				out = append(out, s)
				continue
			}
			s.Branches = len(c.Branches)
			s.HasElse = c.Else != nil
			conds := make([]string, len(c.Branches))
			for j, br := range c.Branches {
				conds[j] = br.Condition.Text
			}
			s.Condition = strings.Join(conds, " | ")
			out = append(out, s)
			for j := range c.Branches {
				walk(c.Branches[j].Children, depth+1)
			}
			if c.Else != nil {
				walk(c.Else.Children, depth+1)
			}
		}
	}
	walk(t.top, 0)
	return out
}

// DataKeys returns the sorted top-level data keys the template reads. A
// "*" entry means some path picks its root key from data.
func (t *Template) DataKeys() []string {
	seen := make(map[string]bool)
	for _, d := range t.table.All() {
		r, ok := d.(directive.DataReader)
		if !ok {
			continue
		}
		for _, k := range r.DataRoots() {
			seen[k] = true
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func firstLine(s string) string {
	const limit = 60
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i] + " ..."
	}
	if len(s) > limit {
		s = s[:limit] + " ..."
	}
	return s
}
