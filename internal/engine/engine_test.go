package engine

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/ropetpl/internal/directive"
	"github.com/conneroisu/ropetpl/internal/errors"
	"github.com/conneroisu/ropetpl/internal/logging"
	"github.com/conneroisu/ropetpl/internal/rope"
	"github.com/conneroisu/ropetpl/internal/tree"
)

const page = `<h1>{{ site.title | title }}</h1>
{% if user.name %}
<p>Welcome back, {{ user.name }}.</p>
{% if 'admin' in user.roles %}
<a href="/admin">Admin</a>
{% endif %}
{% else %}
<p>Please sign in.</p>
{% endif %}
<footer>{{ site.year }}</footer>`

func data(t *testing.T, src string) tree.Node {
	t.Helper()
	root, err := tree.Parse([]byte(src))
	require.NoError(t, err)
	return root
}

func TestEngine_Render(t *testing.T) {
	e := New(nil, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		data string
		want string
	}{
		{
			name: "admin",
			data: "site: {title: my site, year: 2024}\nuser: {name: Ada, roles: [admin, dev]}",
			want: "<h1>My Site</h1>\n<p>Welcome back, Ada.</p>\n<a href=\"/admin\">Admin</a>\n<footer>2024</footer>",
		},
		{
			name: "member",
			data: "site: {title: my site, year: 2024}\nuser: {name: Bob, roles: [dev]}",
			want: "<h1>My Site</h1>\n<p>Welcome back, Bob.</p>\n\n<footer>2024</footer>",
		},
		{
			name: "anonymous",
			data: "site: {title: my site, year: 2024}",
			want: "<h1>My Site</h1>\n<p>Please sign in.</p>\n<footer>2024</footer>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := e.Render(ctx, "page.html", page, data(t, tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}

	stats := e.Stats()
	assert.Equal(t, int64(3), stats.Parsed)
	assert.Equal(t, int64(3), stats.Rendered)
	assert.Equal(t, int64(0), stats.Failed)
	assert.Equal(t, int64(3*5), stats.Directives)
}

func TestEngine_ParseErrorIsLocated(t *testing.T) {
	e := New(nil, nil)

	_, err := e.Parse(context.Background(), "broken.tpl", "line one\n  {% if a = b %}x{% endif %}")

	require.Error(t, err)
	var te *errors.TplError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, errors.ErrCodeInvalidCondition, te.Code)
	assert.Equal(t, "broken.tpl", te.File)
	assert.Equal(t, 2, te.Line)
	assert.Equal(t, 3, te.Column)
	assert.Contains(t, err.Error(), "broken.tpl:2:3")
	assert.Equal(t, int64(1), e.Stats().Failed)
}

func TestEngine_MissingPolicy(t *testing.T) {
	e := New(nil, nil, WithMissing(directive.MissingError))

	_, err := e.Render(context.Background(), "t", "a\nb {{ nope }}", tree.Empty())

	require.Error(t, err)
	var te *errors.TplError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, errors.ErrCodeMissingValue, te.Code)
	assert.Equal(t, 2, te.Line)
	assert.Equal(t, 3, te.Column)
}

func TestEngine_Escape(t *testing.T) {
	e := New(nil, nil, WithEscape(directive.EscapeHTML))

	out, err := e.Render(context.Background(), "t", "{{ v }}|{{ v | raw }}", data(t, "v: '<i>'"))

	require.NoError(t, err)
	assert.Equal(t, "&lt;i&gt;|<i>", out)
}

func TestTemplate_RendersOnce(t *testing.T) {
	e := New(nil, nil)
	ctx := context.Background()

	tpl, err := e.Parse(ctx, "once", "hello {{ who }}")
	require.NoError(t, err)
	defer tpl.Close()

	out, err := tpl.Render(ctx, data(t, "who: world"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)

	_, err = tpl.Render(ctx, data(t, "who: again"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAlreadyRendered, errors.CodeOf(err))
}

func TestTemplate_Execute(t *testing.T) {
	e := New(nil, nil)
	var buf bytes.Buffer

	err := e.Execute(context.Background(), &buf, "x", "{% if on %}on{% else %}off{% endif %}", nil)

	require.NoError(t, err)
	assert.Equal(t, "off", buf.String())
}

func TestTemplate_Directives(t *testing.T) {
	e := New(nil, nil)

	tpl, err := e.Parse(context.Background(), "page.html", page)
	require.NoError(t, err)
	defer tpl.Close()

	summary := tpl.Directives()
	require.Len(t, summary, 5)

	kinds := make([]string, len(summary))
	depths := make([]int, len(summary))
	for i, s := range summary {
		kinds[i] = s.Kind
		depths[i] = s.Depth
	}
	assert.Equal(t, []string{"var", "if", "var", "if", "var"}, kinds)
	assert.Equal(t, []int{0, 0, 1, 1, 0}, depths)

	cond := summary[1]
	assert.Equal(t, 2, cond.Line)
	assert.Equal(t, 1, cond.Column)
	assert.Equal(t, 1, cond.Branches)
	assert.True(t, cond.HasElse)
	assert.Equal(t, "user.name", cond.Condition)
	assert.Equal(t, "{% if user.name %} ...", cond.Text)
}

func TestTemplate_DataKeys(t *testing.T) {
	e := New(nil, nil)

	tpl, err := e.Parse(context.Background(), "page.html", page+"{{ prices[cart.sku] }}{% if 'x' == [a].b %}{% endif %}")
	require.NoError(t, err)
	defer tpl.Close()

	assert.Equal(t, []string{"*", "a", "cart", "prices", "site", "user"}, tpl.DataKeys())
}

func TestEngine_AllocatorIsReturned(t *testing.T) {
	alloc := rope.NewTrackingAllocator(nil)
	e := New(nil, nil, WithAllocator(alloc), WithCapacity(2))

	for i := 0; i < 3; i++ {
		_, err := e.Render(context.Background(), "t", page, data(t, "user: {name: x}"))
		require.NoError(t, err)
	}
	_, err := e.Parse(context.Background(), "bad", "{% if a %}")
	require.Error(t, err)

	stats := alloc.Stats()
	assert.Greater(t, stats.Allocations, int64(3))
	assert.Equal(t, stats.Allocations, stats.Frees)
	assert.Zero(t, stats.LiveBytes)
}

func TestEngine_LogsOperations(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelDebug, Output: &buf})
	e := New(nil, logger)

	_, err := e.Render(context.Background(), "logged.tpl", "{{ a }}", tree.Empty())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "component=engine")
	assert.Contains(t, out, "operation=parse")
	assert.Contains(t, out, "operation=render")
	assert.Contains(t, out, "template=logged.tpl")
}

func TestEngine_ConcurrentRenders(t *testing.T) {
	e := New(nil, nil)
	root := data(t, "site: {title: t, year: 1}\nuser: {name: n, roles: [admin]}")

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := e.Render(context.Background(), fmt.Sprintf("p%d", i), page, root)
			if err == nil && out == "" {
				err = fmt.Errorf("empty output")
			}
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int64(16), e.Stats().Rendered)
}
