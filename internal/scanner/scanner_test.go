package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/ropetpl/internal/config"
	"github.com/conneroisu/ropetpl/internal/errors"
	"github.com/conneroisu/ropetpl/internal/registry"
)

const validTemplate = `<h1>{{ site.title }}</h1>
{% if user.admin %}{{ user.name }}{% endif %}`

func newScanner(t *testing.T, root string, opts ...Option) (*TemplateScanner, *registry.TemplateRegistry) {
	t.Helper()
	reg := registry.NewTemplateRegistry()
	s := NewTemplateScanner(reg, nil, nil, nil, append([]Option{WithRoot(root)}, opts...)...)
	t.Cleanup(func() { _ = s.Close() })
	return s, reg
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewTemplateScanner(t *testing.T) {
	s, reg := newScanner(t, t.TempDir())

	assert.NotNil(t, s)
	assert.Same(t, reg, s.GetRegistry())
}

func TestScanFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.tpl")
	write(t, path, validTemplate)
	s, reg := newScanner(t, dir)

	require.NoError(t, s.ScanFile(context.Background(), path))

	info, ok := reg.Get(Name(path))
	require.True(t, ok)
	assert.True(t, info.Valid())
	assert.Equal(t, 3, info.Directives)
	assert.Equal(t, 1, info.Conditionals)
	assert.Equal(t, 2, info.Variables)
	assert.Equal(t, []string{"site", "user"}, info.DataKeys)
	assert.Len(t, info.Hash, 8)
	assert.Equal(t, int64(len(validTemplate)), info.Size)
}

func TestScanFile_ParseErrorIsRecorded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.tpl")
	write(t, path, "ok\n{% if a %}never closed")
	s, reg := newScanner(t, dir)

	require.NoError(t, s.ScanFile(context.Background(), path))

	info, ok := reg.Get(Name(path))
	require.True(t, ok)
	assert.False(t, info.Valid())
	assert.True(t, errors.IsSyntaxError(info.Err))
	assert.Len(t, reg.Invalid(), 1)
}

func TestScanFile_UnchangedIsSkipped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.tpl")
	write(t, path, validTemplate)
	s, reg := newScanner(t, dir)
	events := reg.Watch()
	ctx := context.Background()

	require.NoError(t, s.ScanFile(ctx, path))
	require.NoError(t, s.ScanFile(ctx, path))
	write(t, path, "changed {{ x }}")
	require.NoError(t, s.ScanFile(ctx, path))

	assert.Equal(t, registry.EventTypeAdded, (<-events).Type)
	assert.Equal(t, registry.EventTypeUpdated, (<-events).Type)
	assert.Empty(t, events)

	info, _ := reg.Get(Name(path))
	assert.Equal(t, []string{"x"}, info.DataKeys)
}

func TestScanFile_OutsideRoot(t *testing.T) {
	root := t.TempDir()
	other := t.TempDir()
	path := filepath.Join(other, "page.tpl")
	write(t, path, validTemplate)
	s, _ := newScanner(t, root)

	err := s.ScanFile(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside")
}

func TestScanDirectory(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 12; i++ {
		write(t, filepath.Join(dir, fmt.Sprintf("sub%d", i%3), fmt.Sprintf("t%02d.tpl", i)), fmt.Sprintf("{{ v%d }}", i))
	}
	write(t, filepath.Join(dir, "notes.txt"), "{{ ignored }}")
	write(t, filepath.Join(dir, "old.tpl.bak"), "{{ ignored }}")
	write(t, filepath.Join(dir, ".hidden", "h.tpl"), "{{ ignored }}")
	write(t, filepath.Join(dir, "alt.tmpl"), "{% if a %}{% endif %}")
	s, reg := newScanner(t, dir, WithWorkers(3))

	require.NoError(t, s.ScanDirectory(context.Background(), dir))

	assert.Equal(t, 13, reg.Count())
	assert.Empty(t, reg.Invalid())
}

func TestScanDirectory_Cancelled(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "a.tpl"), "x")
	s, _ := newScanner(t, dir)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, s.ScanDirectory(ctx, dir))
}

func TestScanAll(t *testing.T) {
	dir := t.TempDir()
	pages := filepath.Join(dir, "pages")
	write(t, filepath.Join(pages, "index.html"), "{{ title }}")
	write(t, filepath.Join(pages, "skip.tpl"), "{{ title }}")

	cfg := &config.Config{Template: config.TemplateConfig{
		Extensions: []string{".html"},
		ScanPaths:  []string{pages, filepath.Join(dir, "missing")},
	}}
	reg := registry.NewTemplateRegistry()
	s := NewTemplateScanner(reg, nil, cfg, nil, WithRoot(dir))
	defer s.Close()

	require.NoError(t, s.ScanAll(context.Background()))

	assert.Equal(t, 1, reg.Count())
	_, ok := reg.Get(Name(filepath.Join(pages, "index.html")))
	assert.True(t, ok)
}

func TestForget(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.tpl")
	write(t, path, validTemplate)
	s, reg := newScanner(t, dir)

	require.NoError(t, s.ScanFile(context.Background(), path))
	s.Forget(path)

	assert.Equal(t, 0, reg.Count())
}

func TestWorkerPool_StopIsIdempotent(t *testing.T) {
	s, _ := newScanner(t, t.TempDir(), WithWorkers(2))
	s.workerPool.Stop()
	s.workerPool.Stop()
}
