package directive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/ropetpl/internal/errors"
	"github.com/conneroisu/ropetpl/internal/rope"
	"github.com/conneroisu/ropetpl/internal/tree"
)

type parsed struct {
	doc *rope.Document
	tbl *Table
	top []int
}

func parse(t *testing.T, src string) (parsed, error) {
	t.Helper()
	doc := rope.FromString(src)
	tbl := NewTable(NewDefaultRegistry(), doc, 0)
	top, err := ParseSpan(tbl, src, Begin(doc))
	return parsed{doc: doc, tbl: tbl, top: top}, err
}

func mustParse(t *testing.T, src string) parsed {
	t.Helper()
	p, err := parse(t, src)
	require.NoError(t, err)
	require.Equal(t, src, p.doc.String(), "parsing must not change the text")
	require.NoError(t, p.doc.Verify())
	return p
}

func renderWith(t *testing.T, src, data string, missing MissingPolicy, escape EscapeMode) (string, error) {
	t.Helper()
	p := mustParse(t, src)
	root, err := tree.Parse([]byte(data))
	require.NoError(t, err)

	rc := &RenderContext{Table: p.tbl, Data: root, Missing: missing, Escape: escape}
	if err := rc.RenderAll(p.top); err != nil {
		return "", err
	}
	require.NoError(t, p.doc.Verify())
	return p.doc.String(), nil
}

func render(t *testing.T, src, data string) string {
	t.Helper()
	out, err := renderWith(t, src, data, MissingEmpty, EscapeNone)
	require.NoError(t, err)
	return out
}

func TestConditional_ParseStructure(t *testing.T) {
	src := "a\n{% if on %}\nON\n{% elif other %}\nOTHER\n{% else %}\nOFF\n{% endif %}\nb"
	p := mustParse(t, src)

	require.Len(t, p.top, 1)
	c, ok := p.tbl.Get(p.top[0]).(*Conditional)
	require.True(t, ok)

	assert.Equal(t, "{% if on %}\nON\n{% elif other %}\nOTHER\n{% else %}\nOFF\n{% endif %}", c.FullText)
	require.Len(t, c.Branches, 2)
	assert.Equal(t, "ON", c.Branches[0].Body)
	assert.Equal(t, "on", c.Branches[0].Condition.Text)
	assert.Equal(t, "OTHER", c.Branches[1].Body)
	assert.Equal(t, CondTruthy, c.Branches[1].Condition.Kind)
	require.NotNil(t, c.Else)
	assert.Equal(t, "OFF", c.Else.Body)

	assert.Equal(t, 2+len("{% if on %}\n"), c.Branches[0].BodyStart.Offset)
	assert.Equal(t, "ON", src[c.Branches[0].BodyStart.Offset:][:2])
	assert.Equal(t, "\nb", p.doc.Sub(c.End.Pos))
}

func TestConditional_Render(t *testing.T) {
	src := "a\n{% if on %}\nON\n{% else %}\nOFF\n{% endif %}\nb"

	assert.Equal(t, "a\nON\nb", render(t, src, "on: yes"))
	assert.Equal(t, "a\nOFF\nb", render(t, src, "on: ''"))
	assert.Equal(t, "a\nOFF\nb", render(t, src, "{}"))
}

func TestConditional_NoBranchHolds(t *testing.T) {
	assert.Equal(t, "x  y", render(t, "x {% if a %}A{% elif b %}B{% endif %} y", "{}"))
}

func TestConditional_CRLF(t *testing.T) {
	src := "{% if on %}\r\nON\r\n{% endif %}"
	assert.Equal(t, "ON", render(t, src, "on: 1"))
}

func TestConditional_ElifChain(t *testing.T) {
	src := `{% if n == '1' %}one{% elif n == '2' %}two{% elif n == '3' %}three{% else %}many{% endif %}`

	tests := map[string]string{
		"n: 1": "one",
		"n: 2": "two",
		"n: 3": "three",
		"n: 9": "many",
		"{}":   "many",
	}
	for data, want := range tests {
		t.Run(data, func(t *testing.T) {
			assert.Equal(t, want, render(t, src, data))
		})
	}
}

func TestConditional_FirstMatchingBranchWins(t *testing.T) {
	src := "{% if a %}A{% elif b %}B{% else %}E{% endif %}"
	assert.Equal(t, "A", render(t, src, "a: 1\nb: 1"))
	assert.Equal(t, "B", render(t, src, "b: 1"))
}

func TestConditional_NestedIsolation(t *testing.T) {
	src := "{% if outer %}[{% if inner %}I{% else %}i{% endif %}]{% else %}E{% endif %}"
	p := mustParse(t, src)

	require.Len(t, p.top, 1)
	c := p.tbl.Get(p.top[0]).(*Conditional)
	require.Len(t, c.Branches, 1)
	assert.Equal(t, "[{% if inner %}I{% else %}i{% endif %}]", c.Branches[0].Body)
	require.NotNil(t, c.Else)
	assert.Equal(t, "E", c.Else.Body)
	require.Len(t, c.Branches[0].Children, 1)

	inner := p.tbl.Get(c.Branches[0].Children[0]).(*Conditional)
	assert.Equal(t, "I", inner.Branches[0].Body)
	assert.Equal(t, "i", inner.Else.Body)
	assert.Equal(t, 2, p.tbl.Len())

	assert.Equal(t, "[I]", render(t, src, "outer: 1\ninner: 1"))
	assert.Equal(t, "[i]", render(t, src, "outer: 1"))
	assert.Equal(t, "E", render(t, src, "inner: 1"))
}

func TestConditional_NestedInElse(t *testing.T) {
	src := "{% if a %}A{% else %}{% if b %}B{% endif %}!{% endif %}"
	assert.Equal(t, "B!", render(t, src, "b: 1"))
	assert.Equal(t, "!", render(t, src, "{}"))
	assert.Equal(t, "A", render(t, src, "a: 1\nb: 1"))
}

func TestConditional_VariablesInBranches(t *testing.T) {
	src := "{% if user.name %}Hi {{ user.name | upper }}{% else %}Hi {{ guest }}{% endif %}."
	assert.Equal(t, "Hi ADA.", render(t, src, "user: {name: Ada}\nguest: nobody"))
	assert.Equal(t, "Hi nobody.", render(t, src, "guest: nobody"))
}

func TestConditional_Resolve(t *testing.T) {
	p := mustParse(t, "{% if a %}A{% elif b %}B{% endif %}")
	c := p.tbl.Get(0).(*Conditional)

	root, err := tree.Parse([]byte("b: yes"))
	require.NoError(t, err)
	body, i := c.Resolve(root)
	assert.Equal(t, "B", body)
	assert.Equal(t, 1, i)

	body, i = c.Resolve(tree.Empty())
	assert.Equal(t, "", body)
	assert.Equal(t, -1, i)
}

func TestConditional_SyntaxErrors(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		code   string
		offset int
	}{
		{name: "unbalanced", src: "x {% if a %} y", code: errors.ErrCodeUnbalanced, offset: 2},
		{name: "nested unbalanced", src: "{% if a %}{% if b %}{% endif %}", code: errors.ErrCodeUnbalanced, offset: 0},
		{name: "double else", src: "{% if a %}x{% else %}y{% else %}z{% endif %}", code: errors.ErrCodeInvalidStructure, offset: 22},
		{name: "elif after else", src: "{% if a %}x{% else %}y{% elif b %}z{% endif %}", code: errors.ErrCodeInvalidStructure, offset: 22},
		{name: "bad operator", src: "ab{% if a = b %}x{% endif %}", code: errors.ErrCodeInvalidCondition, offset: 2},
		{name: "empty condition", src: "{% if %}x{% endif %}", code: errors.ErrCodeInvalidCondition, offset: 0},
		{name: "bad elif", src: "{% if a %}x{% elif {b} %}y{% endif %}", code: errors.ErrCodeInvalidCondition, offset: 11},
		{name: "unclosed variable", src: "ab {{ name", code: errors.ErrCodeUnclosedDirective, offset: 3},
		{name: "unknown filter", src: "{{ a | shout }}", code: errors.ErrCodeUnknownFilter, offset: 0},
		{name: "bad path", src: "x{{ a..b }}", code: errors.ErrCodeInvalidPath, offset: 1},
		{name: "error in nested body", src: "{% if a %}{{ x | nope }}{% endif %}", code: errors.ErrCodeUnknownFilter, offset: 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := parse(t, tt.src)
			require.Error(t, err)
			assert.True(t, errors.IsSyntaxError(err), "got %v", err)
			assert.Equal(t, tt.code, errors.CodeOf(err))
			off, ok := Offset(err)
			require.True(t, ok)
			assert.Equal(t, tt.offset, off)
			assert.Equal(t, tt.src, p.doc.String())
		})
	}
}

func TestConditional_FailedParseLeavesDocument(t *testing.T) {
	src := "keep {% if a %}x{% else %}y{% else %}z{% endif %} me"
	p, err := parse(t, src)
	require.Error(t, err)

	assert.Equal(t, 1, p.doc.NumSlots())
	assert.Equal(t, src, p.doc.String())
}

func TestSkipNested(t *testing.T) {
	rest, err := SkipNested(IfOpen, EndifTag, "{% if a %}{% if b %}x{% endif %}y{% endif %} tail")
	require.NoError(t, err)
	assert.Equal(t, " tail", rest)

	_, err = SkipNested(IfOpen, EndifTag, "{% if a %}{% if b %}{% endif %}")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUnbalanced, errors.CodeOf(err))

	assertContract(t, errors.ErrCodeIndexOutOfRange, func() {
		_, _ = SkipNested(IfOpen, EndifTag, "no opener")
	})
}

func TestVariable_Render(t *testing.T) {
	data := "name: Ada\ntitle: the analytical engine\nhtml: '<b>&</b>'\nempty: ''\nlist: [a, b]\n"

	tests := []struct {
		src  string
		want string
	}{
		{src: "Hello {{ name }}!", want: "Hello Ada!"},
		{src: "{{name}}{{name}}", want: "AdaAda"},
		{src: "{{ name | upper }}", want: "ADA"},
		{src: "{{ name | lower }}", want: "ada"},
		{src: "{{ title | title }}", want: "The Analytical Engine"},
		{src: "{{ empty | default: 'n/a' }}", want: "n/a"},
		{src: "{{ missing | default:none | upper }}", want: "NONE"},
		{src: "{{ list }}", want: SeqMarker},
		{src: "{{ list[1] }}", want: "b"},
		{src: "{{ 'literal | kept' }}", want: "literal | kept"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, render(t, tt.src, data))
		})
	}
}

func TestVariable_Escape(t *testing.T) {
	data := "html: '<b>&</b>'"

	out, err := renderWith(t, "{{ html }}", data, MissingEmpty, EscapeHTML)
	require.NoError(t, err)
	assert.Equal(t, "&lt;b&gt;&amp;&lt;/b&gt;", out)

	out, err = renderWith(t, "{{ html | raw }}", data, MissingEmpty, EscapeHTML)
	require.NoError(t, err)
	assert.Equal(t, "<b>&</b>", out)
}

func TestVariable_MissingPolicy(t *testing.T) {
	src := "[{{ nope }}]"

	out, err := renderWith(t, src, "{}", MissingEmpty, EscapeNone)
	require.NoError(t, err)
	assert.Equal(t, "[]", out)

	out, err = renderWith(t, src, "{}", MissingKeep, EscapeNone)
	require.NoError(t, err)
	assert.Equal(t, src, out)

	_, err = renderWith(t, src, "{}", MissingError, EscapeNone)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeMissingValue, errors.CodeOf(err))
	off, _ := Offset(err)
	assert.Equal(t, 1, off)
}

func TestParsePolicies(t *testing.T) {
	m, err := ParseMissingPolicy("")
	require.NoError(t, err)
	assert.Equal(t, MissingEmpty, m)
	_, err = ParseMissingPolicy("explode")
	assert.True(t, errors.IsConfigError(err))

	e, err := ParseEscapeMode("html")
	require.NoError(t, err)
	assert.Equal(t, EscapeHTML, e)
	_, err = ParseEscapeMode("xml")
	assert.Error(t, err)
}
