// Package tree defines the hierarchical data model templates are evaluated
// against, and a gopkg.in/yaml.v3 backed implementation of it.
//
// YAML is a superset of JSON, so the same loader accepts .yml, .yaml and
// .json data files.
package tree

import (
	"fmt"
	"iter"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/ropetpl/internal/errors"
)

// Node is a map, sequence or scalar in the data model.
type Node interface {
	// FindChild looks up key in a map node.
	FindChild(key string) (Node, bool)
	IsMap() bool
	IsSeq() bool
	IsScalar() bool
	// NumChildren is the number of entries of a map or sequence.
	NumChildren() int
	// Child returns the i-th value of a map or sequence.
	Child(i int) Node
	Children() iter.Seq[Node]
	// Keys yields the keys of a map node in document order.
	Keys() iter.Seq[string]
	// Val is the text of a scalar node; empty for maps and sequences.
	Val() string
}

// YAML adapts a *yaml.Node to Node.
type YAML struct {
	n *yaml.Node
}

// FromYAML wraps n, unwrapping document nodes and aliases.
func FromYAML(n *yaml.Node) YAML {
	return YAML{n: unwrap(n)}
}

func unwrap(n *yaml.Node) *yaml.Node {
	for n != nil {
		switch {
		case n.Kind == yaml.DocumentNode && len(n.Content) > 0:
			n = n.Content[0]
		case n.Kind == yaml.AliasNode && n.Alias != nil:
			n = n.Alias
		default:
			return n
		}
	}
	return n
}

// Parse decodes YAML or JSON data into a tree.
func Parse(data []byte) (YAML, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return YAML{}, errors.NewDataError(errors.ErrCodeInvalidData, "cannot parse data", err)
	}
	if doc.Kind == 0 {
		return Empty(), nil
	}
	return FromYAML(&doc), nil
}

// Load reads and parses a data file.
func Load(path string) (YAML, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return YAML{}, errors.NewIOError(errors.ErrCodeFileNotFound, "cannot read data file "+path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return YAML{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// FromValue encodes a Go value (maps, slices, structs, scalars) into a tree.
func FromValue(v interface{}) (YAML, error) {
	var n yaml.Node
	if err := n.Encode(v); err != nil {
		return YAML{}, errors.NewDataError(errors.ErrCodeInvalidData, "cannot encode value", err)
	}
	return FromYAML(&n), nil
}

// Empty returns an empty map.
func Empty() YAML {
	return YAML{n: &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}}
}

// Merge combines the top-level keys of several map trees into one; later
// trees win on conflicting keys. Non-map trees are rejected.
func Merge(trees ...YAML) (YAML, error) {
	out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	index := make(map[string]int)
	for _, t := range trees {
		if t.n == nil {
			continue
		}
		if !t.IsMap() {
			return YAML{}, errors.NewDataError(errors.ErrCodeInvalidData,
				"only mappings can be merged, got "+t.kind(), nil)
		}
		for i := 0; i+1 < len(t.n.Content); i += 2 {
			k, v := t.n.Content[i], t.n.Content[i+1]
			if at, ok := index[k.Value]; ok {
				out.Content[at+1] = v
				continue
			}
			index[k.Value] = len(out.Content)
			out.Content = append(out.Content, k, v)
		}
	}
	return YAML{n: out}, nil
}

// Raw returns the wrapped yaml node.
func (y YAML) Raw() *yaml.Node { return y.n }

func (y YAML) kind() string {
	switch {
	case y.IsMap():
		return "map"
	case y.IsSeq():
		return "sequence"
	case y.IsScalar():
		return "scalar"
	default:
		return "nothing"
	}
}

// IsMap reports whether y is a mapping.
func (y YAML) IsMap() bool { return y.n != nil && y.n.Kind == yaml.MappingNode }

// IsSeq reports whether y is a sequence.
func (y YAML) IsSeq() bool { return y.n != nil && y.n.Kind == yaml.SequenceNode }

// IsScalar reports whether y is a scalar. A YAML null is a scalar with an
// empty value.
func (y YAML) IsScalar() bool { return y.n != nil && y.n.Kind == yaml.ScalarNode }

// FindChild looks up key among the keys of a mapping.
func (y YAML) FindChild(key string) (Node, bool) {
	if !y.IsMap() {
		return nil, false
	}
	for i := 0; i+1 < len(y.n.Content); i += 2 {
		if y.n.Content[i].Value == key {
			return FromYAML(y.n.Content[i+1]), true
		}
	}
	return nil, false
}

// NumChildren returns the number of map entries or sequence items.
func (y YAML) NumChildren() int {
	switch {
	case y.IsMap():
		return len(y.n.Content) / 2
	case y.IsSeq():
		return len(y.n.Content)
	default:
		return 0
	}
}

// Child returns the i-th value; it panics on an out-of-range index.
func (y YAML) Child(i int) Node {
	if i < 0 || i >= y.NumChildren() {
		errors.Contractf(errors.ErrCodeIndexOutOfRange,
			"child %d out of range (%d children)", i, y.NumChildren())
	}
	if y.IsMap() {
		return FromYAML(y.n.Content[2*i+1])
	}
	return FromYAML(y.n.Content[i])
}

// Children yields the values of a map or the items of a sequence.
func (y YAML) Children() iter.Seq[Node] {
	return func(yield func(Node) bool) {
		for i := 0; i < y.NumChildren(); i++ {
			if !yield(y.Child(i)) {
				return
			}
		}
	}
}

// Keys yields the keys of a mapping.
func (y YAML) Keys() iter.Seq[string] {
	return func(yield func(string) bool) {
		if !y.IsMap() {
			return
		}
		for i := 0; i+1 < len(y.n.Content); i += 2 {
			if !yield(y.n.Content[i].Value) {
				return
			}
		}
	}
}

// Val returns the scalar text. YAML nulls yield "".
func (y YAML) Val() string {
	if !y.IsScalar() || y.n.Tag == "!!null" {
		return ""
	}
	return y.n.Value
}
