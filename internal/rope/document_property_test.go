//go:build property

package rope

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

type ropeOp struct {
	Kind   int
	Slot   int
	Offset int
	Count  int
	Text   string
}

func genOp() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, 5),
		gen.IntRange(0, 1000),
		gen.IntRange(0, 1000),
		gen.IntRange(0, 1000),
		gen.AlphaString(),
	).Map(func(v []interface{}) ropeOp {
		return ropeOp{
			Kind:   v[0].(int),
			Slot:   v[1].(int),
			Offset: v[2].(int),
			Count:  v[3].(int),
			Text:   v[4].(string),
		}
	})
}

// pick returns the k-th live slot (mod size) and the document offset at
// which its text starts.
func pick(d *Document, k int) (Handle, int) {
	k %= d.NumSlots()
	start := 0
	for h, v := range d.All() {
		if k == 0 {
			return h, start
		}
		start += len(v)
		k--
	}
	return Nil, 0
}

// apply runs op on d and mirrors it on model, returning the new model.
func apply(d *Document, model string, op ropeOp) string {
	if d.NumSlots() == 0 {
		d.Append(op.Text)
		return model + op.Text
	}
	h, start := pick(d, op.Slot)
	n := len(d.View(h))
	off := 0
	if n > 0 {
		off = op.Offset % (n + 1)
	}
	cnt := 0
	if rest := n - off; rest > 0 {
		cnt = op.Count % (rest + 1)
	}

	switch op.Kind {
	case 0:
		d.InsertAfter(h, op.Text)
		return model[:start+n] + op.Text + model[start+n:]
	case 1:
		d.InsertBefore(h, op.Text)
		return model[:start] + op.Text + model[start:]
	case 2:
		d.Split(h, off)
		return model
	case 3:
		d.EraseRange(h, off, cnt)
		return model[:start+off] + model[start+off+cnt:]
	case 4:
		d.Replace(h, off, cnt, op.Text)
		return model[:start+off] + op.Text + model[start+off+cnt:]
	default:
		d.Erase(h)
		return model[:start] + model[start+n:]
	}
}

// TestDocumentProperties checks the structural invariants after random
// operation sequences.
func TestDocumentProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4242)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("round trip without mutation", prop.ForAll(
		func(s string) bool {
			return FromString(s).String() == s
		},
		gen.AnyString(),
	))

	properties.Property("text and cached length follow the model", prop.ForAll(
		func(seed string, ops []ropeOp) bool {
			d := FromString(seed)
			model := seed
			for _, op := range ops {
				model = apply(d, model, op)
				if d.Len() != len(model) {
					return false
				}
			}
			return d.String() == model && d.Verify() == nil
		},
		gen.AlphaString(),
		gen.SliceOfN(60, genOp()),
	))

	properties.Property("prev and next are mutual inverses", prop.ForAll(
		func(ops []ropeOp) bool {
			d := New()
			model := ""
			for _, op := range ops {
				model = apply(d, model, op)
			}
			for h := range d.All() {
				if p := d.Prev(h); !p.IsNil() && d.Next(p) != h {
					return false
				}
				if n := d.Next(h); !n.IsNil() && d.Prev(n) != h {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(80, genOp()),
	))

	properties.TestingRun(t)
}
