// Package engine ties the document, directive and data packages together:
// it parses template sources into Templates and renders them against a
// data tree.
package engine

import (
	"context"
	"io"
	"strings"
	"sync/atomic"

	"github.com/conneroisu/ropetpl/internal/directive"
	"github.com/conneroisu/ropetpl/internal/errors"
	"github.com/conneroisu/ropetpl/internal/logging"
	"github.com/conneroisu/ropetpl/internal/rope"
	"github.com/conneroisu/ropetpl/internal/tree"
)

// Options configures an Engine.
type Options struct {
	Missing   directive.MissingPolicy
	Escape    directive.EscapeMode
	Allocator rope.Allocator
	// Capacity is the initial slot capacity of each document; zero picks
	// a size from the source length.
	Capacity int
}

// Option mutates Options.
type Option func(*Options)

// WithMissing sets the policy for variables that resolve to nothing.
func WithMissing(p directive.MissingPolicy) Option {
	return func(o *Options) { o.Missing = p }
}

// WithEscape sets the escape mode applied to substituted values.
func WithEscape(m directive.EscapeMode) Option {
	return func(o *Options) { o.Escape = m }
}

// WithAllocator makes every document take its slot storage from a.
func WithAllocator(a rope.Allocator) Option {
	return func(o *Options) { o.Allocator = a }
}

// WithCapacity fixes the initial slot capacity of each document.
func WithCapacity(n int) Option {
	return func(o *Options) { o.Capacity = n }
}

// Stats counts engine activity. All fields are updated atomically.
type Stats struct {
	Parsed     int64 `json:"parsed" yaml:"parsed"`
	Rendered   int64 `json:"rendered" yaml:"rendered"`
	Failed     int64 `json:"failed" yaml:"failed"`
	Directives int64 `json:"directives" yaml:"directives"`
}

// Engine parses and renders templates. It is safe for concurrent use; the
// Templates it returns are not.
type Engine struct {
	registry *directive.Registry
	opts     Options
	logger   logging.Logger

	parsed     atomic.Int64
	rendered   atomic.Int64
	failed     atomic.Int64
	directives atomic.Int64
}

// New creates an engine over reg, which must not be modified afterwards.
// A nil reg selects the built-in kinds.
func New(reg *directive.Registry, logger logging.Logger, opts ...Option) *Engine {
	if reg == nil {
		reg = directive.NewDefaultRegistry()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	o := Options{Missing: directive.MissingEmpty, Escape: directive.EscapeNone}
	for _, opt := range opts {
		opt(&o)
	}
	return &Engine{
		registry: reg,
		opts:     o,
		logger:   logger.WithComponent("engine"),
	}
}

// Registry returns the directive catalog.
func (e *Engine) Registry() *directive.Registry { return e.registry }

// Stats returns a snapshot of the counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Parsed:     e.parsed.Load(),
		Rendered:   e.rendered.Load(),
		Failed:     e.failed.Load(),
		Directives: e.directives.Load(),
	}
}

func (e *Engine) capacity(src string) int {
	if e.opts.Capacity > 0 {
		return e.opts.Capacity
	}
	// every directive adds a few slots; a loose estimate avoids most
	// regrowth for typical templates
	return max(rope.MinCapacity, 4*strings.Count(src, "{")+1)
}

// Parse builds a Template from src. On error nothing is retained; the
// returned error carries the line and column of the offending directive.
func (e *Engine) Parse(ctx context.Context, name, src string) (*Template, error) {
	op := logging.StartOperation(e.logger, "parse")

	docOpts := []rope.Option{rope.WithCapacity(e.capacity(src))}
	if e.opts.Allocator != nil {
		docOpts = append(docOpts, rope.WithAllocator(e.opts.Allocator))
	}
	doc := rope.FromString(src, docOpts...)
	table := directive.NewTable(e.registry, doc, strings.Count(src, "{")/2)

	top, err := directive.ParseSpan(table, src, directive.Begin(doc))
	if err != nil {
		table.Destroy()
		doc.Release()
		e.failed.Add(1)
		err = locate(err, name, src)
		op.EndWithError(ctx, err, "template", name)
		return nil, err
	}

	e.parsed.Add(1)
	e.directives.Add(int64(table.Len()))
	op.End(ctx, "template", name, "directives", table.Len(), "slots", doc.NumSlots())

	return &Template{
		Name:   name,
		Source: src,
		engine: e,
		doc:    doc,
		table:  table,
		top:    top,
	}, nil
}

// Render parses src and renders it against data in one step.
func (e *Engine) Render(ctx context.Context, name, src string, data tree.Node) (string, error) {
	t, err := e.Parse(ctx, name, src)
	if err != nil {
		return "", err
	}
	defer t.Close()
	return t.Render(ctx, data)
}

// Execute parses src and writes its rendering to w.
func (e *Engine) Execute(ctx context.Context, w io.Writer, name, src string, data tree.Node) error {
	t, err := e.Parse(ctx, name, src)
	if err != nil {
		return err
	}
	defer t.Close()
	return t.Execute(ctx, w, data)
}

// locate fills in file, line and column on errors carrying a source offset.
func locate(err error, name, src string) error {
	te, ok := err.(*errors.TplError)
	if !ok {
		return err
	}
	if off, ok := directive.Offset(err); ok {
		te.Located(src, off)
	}
	if te.File == "" {
		te.WithFile(name)
	}
	return te
}
