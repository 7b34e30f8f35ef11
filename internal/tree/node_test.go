package tree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const people = `
name: Ada
langs: [go, c, ocaml]
address:
  city: London
empty: ~
base: &base
  color: blue
derived: *base
`

func TestParse_Navigation(t *testing.T) {
	root, err := Parse([]byte(people))
	require.NoError(t, err)

	assert.True(t, root.IsMap())
	assert.Equal(t, 6, root.NumChildren())

	name, ok := root.FindChild("name")
	require.True(t, ok)
	assert.True(t, name.IsScalar())
	assert.Equal(t, "Ada", name.Val())

	langs, ok := root.FindChild("langs")
	require.True(t, ok)
	assert.True(t, langs.IsSeq())
	assert.Equal(t, 3, langs.NumChildren())
	assert.Equal(t, "ocaml", langs.Child(2).Val())

	var items []string
	for c := range langs.Children() {
		items = append(items, c.Val())
	}
	assert.Equal(t, []string{"go", "c", "ocaml"}, items)

	_, ok = root.FindChild("missing")
	assert.False(t, ok)

	_, ok = langs.FindChild("go")
	assert.False(t, ok, "sequences have no keys")
}

func TestParse_NullAndAlias(t *testing.T) {
	root, err := Parse([]byte(people))
	require.NoError(t, err)

	empty, ok := root.FindChild("empty")
	require.True(t, ok)
	assert.True(t, empty.IsScalar())
	assert.Equal(t, "", empty.Val())

	derived, ok := root.FindChild("derived")
	require.True(t, ok)
	color, ok := derived.FindChild("color")
	require.True(t, ok)
	assert.Equal(t, "blue", color.Val())
}

func TestParse_JSON(t *testing.T) {
	root, err := Parse([]byte(`{"a": {"b": [1, 2]}}`))
	require.NoError(t, err)

	a, ok := root.FindChild("a")
	require.True(t, ok)
	b, ok := a.FindChild("b")
	require.True(t, ok)
	assert.Equal(t, "2", b.Child(1).Val())
}

func TestParse_EmptyInput(t *testing.T) {
	root, err := Parse(nil)
	require.NoError(t, err)
	assert.True(t, root.IsMap())
	assert.Equal(t, 0, root.NumChildren())
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("a: [unclosed"))
	assert.Error(t, err)
}

func TestKeys(t *testing.T) {
	root, err := Parse([]byte("z: 1\na: 2\nm: 3\n"))
	require.NoError(t, err)

	var keys []string
	for k := range root.Keys() {
		keys = append(keys, k)
	}
	assert.Equal(t, []string{"z", "a", "m"}, keys)
}

func TestFromValue(t *testing.T) {
	root, err := FromValue(map[string]interface{}{
		"user": map[string]interface{}{"admin": true},
	})
	require.NoError(t, err)

	user, ok := root.FindChild("user")
	require.True(t, ok)
	admin, ok := user.FindChild("admin")
	require.True(t, ok)
	assert.Equal(t, "true", admin.Val())
}

func TestMerge(t *testing.T) {
	a, err := Parse([]byte("x: 1\ny: 2\n"))
	require.NoError(t, err)
	b, err := Parse([]byte("y: 20\nz: 30\n"))
	require.NoError(t, err)

	m, err := Merge(a, b)
	require.NoError(t, err)

	assert.Equal(t, 3, m.NumChildren())
	y, _ := m.FindChild("y")
	assert.Equal(t, "20", y.Val())

	seq, err := Parse([]byte("[1, 2]"))
	require.NoError(t, err)
	_, err = Merge(a, seq)
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.yml")
	require.NoError(t, os.WriteFile(path, []byte("title: hello\n"), 0o644))

	root, err := Load(path)
	require.NoError(t, err)
	title, ok := root.FindChild("title")
	require.True(t, ok)
	assert.Equal(t, "hello", title.Val())

	_, err = Load(filepath.Join(dir, "missing.yml"))
	assert.Error(t, err)
}
