// Package directive discovers, parses and renders the directives embedded
// in a template document.
//
// Directive kinds are described by Kind values held in a Registry, so new
// kinds can be added without touching a central switch. A Table holds the
// directive instances found while parsing one document, addressed by their
// discovery index. Indices stay valid while the table grows, which is what
// recursive body parsing relies on.
package directive

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/conneroisu/ropetpl/internal/errors"
)

// TypeID identifies a registered Kind. It is the registration index.
type TypeID int

// Kind describes a directive kind.
type Kind struct {
	// Name is unique within a registry.
	Name string
	// Open is the opening delimiter searched for while scanning.
	Open string
	// Close is the closing delimiter.
	Close string
	// Nestable kinds locate their closing delimiter by counting nested
	// Open/Close pairs instead of taking the first Close.
	Nestable bool
	// Size is the storage footprint of one instance. Register fills it in
	// from the type New returns when left zero.
	Size uintptr
	// New constructs an unparsed instance.
	New func() Directive
}

// Match is the result of a registry scan.
type Match struct {
	Type TypeID
	Pos  int
}

// Registry is a catalog of directive kinds. It is populated once at
// startup and then shared read-only by every parse.
type Registry struct {
	kinds   []Kind
	byName  map[string]TypeID
	maxSize uintptr
	mutex   sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		kinds:  make([]Kind, 0),
		byName: make(map[string]TypeID),
	}
}

// NewDefaultRegistry creates a registry holding the built-in kinds.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	if err := RegisterBuiltins(r); err != nil {
		panic(err)
	}
	return r
}

func sizeOf(d Directive) uintptr {
	t := reflect.TypeOf(d)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Size()
}

// Register appends k to the catalog and returns its TypeID.
func (r *Registry) Register(k Kind) (TypeID, error) {
	if k.Name == "" || k.Open == "" || k.Close == "" || k.New == nil {
		return -1, errors.NewConfigError(errors.ErrCodeInvalidKind,
			fmt.Sprintf("directive kind %q needs a name, delimiters and a constructor", k.Name))
	}
	if k.Size == 0 {
		k.Size = sizeOf(k.New())
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.byName[k.Name]; exists {
		return -1, errors.NewConfigError(errors.ErrCodeDuplicateKind,
			"directive kind already registered: "+k.Name)
	}

	id := TypeID(len(r.kinds))
	r.kinds = append(r.kinds, k)
	r.byName[k.Name] = id
	if k.Size > r.maxSize {
		r.maxSize = k.Size
	}
	return id, nil
}

// MatchAny finds the earliest opening delimiter in rem. When two kinds
// match at the same position the first registered wins.
func (r *Registry) MatchAny(rem string) (Match, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	best := Match{Type: -1, Pos: -1}
	for i, k := range r.kinds {
		limit := len(rem)
		if best.Pos >= 0 {
			// only a strictly earlier match can win
			limit = min(len(rem), best.Pos+len(k.Open)-1)
		}
		if p := strings.Index(rem[:limit], k.Open); p >= 0 && (best.Pos < 0 || p < best.Pos) {
			best = Match{Type: TypeID(i), Pos: p}
		}
	}
	return best, best.Pos >= 0
}

// Kind returns the descriptor registered under id.
func (r *Registry) Kind(id TypeID) Kind {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if id < 0 || int(id) >= len(r.kinds) {
		errors.Contractf(errors.ErrCodeIndexOutOfRange,
			"directive type %d out of range (%d registered)", id, len(r.kinds))
	}
	return r.kinds[id]
}

// Lookup returns the TypeID registered under name.
func (r *Registry) Lookup(name string) (TypeID, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	id, ok := r.byName[name]
	return id, ok
}

// Kinds returns a copy of the catalog in registration order.
func (r *Registry) Kinds() []Kind {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]Kind, len(r.kinds))
	copy(out, r.kinds)
	return out
}

// Count returns the number of registered kinds.
func (r *Registry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.kinds)
}

// MaxSize returns the largest Size among registered kinds.
func (r *Registry) MaxSize() uintptr {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.maxSize
}
