package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventType_String(t *testing.T) {
	tests := []struct {
		eventType EventType
		want      string
	}{
		{EventTypeCreated, "created"},
		{EventTypeModified, "modified"},
		{EventTypeDeleted, "deleted"},
		{EventTypeRenamed, "renamed"},
		{EventType(42), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.eventType.String())
	}
}

func TestFilters(t *testing.T) {
	tpl := ExtensionFilter(".tpl", ".tmpl")
	assert.True(t, tpl("a/b/page.tpl"))
	assert.True(t, tpl("PAGE.TMPL"))
	assert.False(t, tpl("page.html"))

	data := PathFilter("data/site.yml")
	assert.True(t, data("./data/site.yml"))
	assert.False(t, data("data/other.yml"))

	any := AnyOf(tpl, data)
	assert.True(t, any("x.tpl"))
	assert.True(t, any("data/site.yml"))
	assert.False(t, any("x.txt"))

	assert.False(t, NoHiddenFilter("dir/.page.tpl.tmp-123"))
	assert.True(t, NoHiddenFilter(".config/page.tpl"))
	assert.False(t, NoBackupFilter("page.tpl~"))
	assert.False(t, NoBackupFilter("page.tpl.swp"))
	assert.True(t, NoBackupFilter("page.tpl"))
	assert.False(t, NoGitFilter("repo/.git/HEAD"))
	assert.True(t, NoGitFilter("repo/git/HEAD"))
}

func TestDebouncer_CoalescesByPath(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)

	d.addEvent(ChangeEvent{Type: EventTypeCreated, Path: "b.tpl"})
	d.addEvent(ChangeEvent{Type: EventTypeModified, Path: "b.tpl"})
	d.addEvent(ChangeEvent{Type: EventTypeModified, Path: "a.tpl"})
	d.addEvent(ChangeEvent{Type: EventTypeDeleted, Path: "a.tpl"})

	select {
	case events := <-d.output:
		require.Len(t, events, 2)
		assert.Equal(t, "a.tpl", events[0].Path)
		assert.Equal(t, EventTypeDeleted, events[0].Type)
		assert.Equal(t, "b.tpl", events[1].Path)
		assert.Equal(t, EventTypeCreated, events[1].Type)
	case <-time.After(2 * time.Second):
		t.Fatal("debouncer did not flush")
	}
}

func TestDebouncer_FlushEmpty(t *testing.T) {
	d := NewDebouncer(time.Millisecond)
	d.flush()
	assert.Empty(t, d.output)
}

func TestFileWatcher_ReportsChanges(t *testing.T) {
	dir := t.TempDir()
	fw, err := NewFileWatcher(50*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()

	fw.AddFilter(ExtensionFilter(".tpl"))
	fw.AddFilter(NoHiddenFilter)

	var mu sync.Mutex
	var seen []ChangeEvent
	fw.AddHandler(func(ctx context.Context, events []ChangeEvent) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, events...)
		return nil
	})

	require.NoError(t, fw.AddRecursive(dir))
	assert.Contains(t, fw.WatchList(), dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "page.tpl"), []byte("{{ a }}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".page.tpl.tmp"), []byte("x"), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	for _, ev := range seen {
		assert.Equal(t, filepath.Join(dir, "page.tpl"), ev.Path)
	}
	mu.Unlock()
}

func TestFileWatcher_FollowsNewDirectories(t *testing.T) {
	dir := t.TempDir()
	fw, err := NewFileWatcher(10*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()

	require.NoError(t, fw.AddRecursive(dir))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Start(ctx))

	sub := filepath.Join(dir, "partials")
	require.NoError(t, os.Mkdir(sub, 0o755))

	assert.Eventually(t, func() bool {
		for _, p := range fw.WatchList() {
			if p == sub {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)
}

func TestFileWatcher_AddPathFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "site.yml")
	require.NoError(t, os.WriteFile(file, []byte("a: 1"), 0o644))

	fw, err := NewFileWatcher(time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()

	require.NoError(t, fw.AddPath(file))
	assert.Equal(t, []string{dir}, fw.WatchList())
	assert.Error(t, fw.AddPath(filepath.Join(dir, "missing.yml")))
}
