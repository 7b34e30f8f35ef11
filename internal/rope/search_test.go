package rope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/ropetpl/internal/errors"
)

const sample = `
this is a long text {% t %}
with some tokens in it {% t %}
{% t %}
and yet some more
{% t %}
but not this one {% u %}
`

func TestLookupToken(t *testing.T) {
	d := FromString("alpha beta gamma")

	pos := d.LookupToken("beta", d.Begin())

	require.True(t, pos.Valid())
	assert.Equal(t, d.Head(), pos.Slot)
	assert.Equal(t, 6, pos.Offset)

	assert.False(t, d.LookupToken("delta", d.Begin()).Valid())
	assert.False(t, d.LookupToken("alpha", Position{Slot: d.Head(), Offset: 1}).Valid())
}

func TestLookupToken_DoesNotMatchAcrossSlots(t *testing.T) {
	d := FromString("find the needle here")
	d.Split(d.Head(), 12) // "find the nee" | "dle here"

	assert.Equal(t, "find the needle here", d.String())
	assert.False(t, d.LookupToken("needle", d.Begin()).Valid())
	assert.True(t, d.LookupToken("dle", d.Begin()).Valid())
}

func TestLookupToken_ContinuesIntoNextSlot(t *testing.T) {
	d := FromString("aaa")
	second := d.Append("bbb needle")

	pos := d.LookupToken("needle", d.Begin())

	assert.Equal(t, second, pos.Slot)
	assert.Equal(t, 4, pos.Offset)
}

func TestTokens(t *testing.T) {
	d := FromString(sample)

	var count int
	for pos := range d.Tokens("{% t %}") {
		assert.Equal(t, "{% t %}", d.Sub(pos)[:7])
		count++
	}
	assert.Equal(t, 4, count)
}

func TestSplitBeforeAfter(t *testing.T) {
	d := FromString("one two three")

	anchor, ok := d.SplitBefore("two", d.Begin())
	require.True(t, ok)
	assert.Equal(t, "one ", d.View(anchor))

	anchor, ok = d.SplitAfter("two", d.Begin())
	require.True(t, ok)
	assert.Equal(t, "two", d.View(anchor))
	assert.Equal(t, []string{"one ", "two", " three"}, views(d))

	_, ok = d.SplitBefore("four", d.Begin())
	assert.False(t, ok)
	requireValid(t, d)
}

func TestSplitBefore_AtDocumentStart(t *testing.T) {
	d := FromString("head of text")

	anchor, ok := d.SplitBefore("head", d.Begin())

	require.True(t, ok)
	assert.True(t, anchor.IsNil())

	pos, ok := d.InsertBeforeToken("head", ">> ", d.Begin())
	require.True(t, ok)
	assert.Equal(t, d.Head(), pos.Slot)
	assert.Equal(t, ">> head of text", d.String())
}

func TestReplaceAll(t *testing.T) {
	d := FromString(sample)
	d.Append("\n\nand more lines still {% t %}\n\n{% t %}\n\n{% u %}\n\n{% t %}\n")

	assert.Equal(t, 7, d.ReplaceAll("{% t %}", "______"))
	assert.Equal(t, 2, d.ReplaceAll("{% u %}", "tututu"))
	assert.Equal(t, 1, d.ReplaceAll("yet", "asdkjasdkjhaskdjasd"))

	out := d.String()
	assert.NotContains(t, out, "{% t %}")
	assert.NotContains(t, out, "{% u %}")
	assert.Contains(t, out, "and asdkjasdkjhaskdjasd some more")
	requireValid(t, d)
}

func TestReplaceAll_DoesNotRematchInsertedText(t *testing.T) {
	d := FromString("a-b-c")

	assert.Equal(t, 2, d.ReplaceAll("-", "--"))
	assert.Equal(t, "a--b--c", d.String())
}

func TestReplaceAll_WholeSlot(t *testing.T) {
	d := FromString("xx")

	assert.Equal(t, 2, d.ReplaceAll("x", "yx"))
	assert.Equal(t, "yxyx", d.String())
	requireValid(t, d)
}

func TestInsertTokenHelpers(t *testing.T) {
	d := FromString("this is a test")

	_, ok := d.InsertAfterToken("is a", " REALLY", d.Begin())
	require.True(t, ok)
	assert.Equal(t, "this is a REALLY test", d.String())

	_, ok = d.InsertBeforeToken("REALLY", "really ", d.Begin())
	require.True(t, ok)
	assert.Equal(t, "this is a really REALLY test", d.String())
	requireValid(t, d)
}

func TestInsertBeforeAll(t *testing.T) {
	d := FromString("x_x_x")

	assert.Equal(t, 3, d.InsertBeforeAll("x", "^x"))
	assert.Equal(t, "^xx_^xx_^xx", d.String())
	requireValid(t, d)
}

func TestInsertAfterAll(t *testing.T) {
	d := FromString("x_x_x")

	assert.Equal(t, 3, d.InsertAfterAll("x", "x^"))
	assert.Equal(t, "xx^_xx^_xx^", d.String())
	requireValid(t, d)
}

func TestEmptyNeedleIsRejected(t *testing.T) {
	d := FromString("abc")
	assertContract(t, errors.ErrCodeIndexOutOfRange, func() { d.ReplaceAll("", "x") })
}
