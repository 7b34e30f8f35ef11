package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/ropetpl/internal/directive"
	"github.com/conneroisu/ropetpl/internal/errors"
	"github.com/conneroisu/ropetpl/internal/logging"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name          string
		setup         func()
		expectError   bool
		expectedPaths []string
	}{
		{
			name:          "defaults",
			setup:         func() { viper.Reset() },
			expectedPaths: []string{"./templates"},
		},
		{
			name: "custom scan paths",
			setup: func() {
				viper.Reset()
				viper.Set("template.scan_paths", []string{"./pages", "./partials"})
			},
			expectedPaths: []string{"./pages", "./partials"},
		},
		{
			name: "comma separated scan paths",
			setup: func() {
				viper.Reset()
				viper.Set("template.scan_paths", "./a, ./b")
			},
			expectedPaths: []string{"./a", "./b"},
		},
		{
			name: "unknown missing policy",
			setup: func() {
				viper.Reset()
				viper.Set("render.missing", "explode")
			},
			expectError: true,
		},
		{
			name: "path traversal",
			setup: func() {
				viper.Reset()
				viper.Set("template.scan_paths", []string{"../../etc"})
			},
			expectError: true,
		},
		{
			name: "undecodable capacity",
			setup: func() {
				viper.Reset()
				viper.Set("template.initial_capacity", "lots")
			},
			expectError: true,
		},
		{
			name: "bad log level",
			setup: func() {
				viper.Reset()
				viper.Set("log.level", "chatty")
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()

			config, err := Load()

			if tt.expectError {
				assert.Error(t, err)
				assert.True(t, errors.IsConfigError(err))
				assert.Nil(t, config)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, config)
			assert.Equal(t, tt.expectedPaths, config.Template.ScanPaths)
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()

	config, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultExtensions, config.Template.Extensions)
	assert.Equal(t, DefaultExcludePatterns, config.Template.ExcludePatterns)
	assert.Equal(t, directive.MissingEmpty, config.Missing())
	assert.Equal(t, directive.EscapeNone, config.Escape())
	assert.False(t, config.Render.Markdown)
	assert.True(t, config.Watch.Enabled)
	assert.Equal(t, DefaultDebounce, config.Watch.Debounce)
	assert.Equal(t, "info", config.Log.Level)
	assert.Equal(t, "text", config.Log.Format)
}

func TestLoad_Structure(t *testing.T) {
	viper.Reset()
	viper.Set("template.extensions", []string{"html", ".txt"})
	viper.Set("template.exclude_patterns", []string{})
	viper.Set("template.initial_capacity", 64)
	viper.Set("render.missing", "error")
	viper.Set("render.escape", "html")
	viper.Set("render.markdown", true)
	viper.Set("render.output", "out/index.html")
	viper.Set("data.files", []string{"site.yml", "user.json"})
	viper.Set("watch.enabled", false)
	viper.Set("watch.debounce", "1s")
	viper.Set("log.level", "debug")
	viper.Set("log.format", "json")

	config, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{".html", ".txt"}, config.Template.Extensions)
	assert.Empty(t, config.Template.ExcludePatterns)
	assert.Equal(t, 64, config.Template.InitialCapacity)
	assert.Equal(t, directive.MissingError, config.Missing())
	assert.Equal(t, directive.EscapeHTML, config.Escape())
	assert.True(t, config.Render.Markdown)
	assert.Equal(t, "out/index.html", config.Render.Output)
	assert.Equal(t, []string{"site.yml", "user.json"}, config.Data.Files)
	assert.False(t, config.Watch.Enabled)
	assert.Equal(t, time.Second, config.Watch.Debounce)

	lc := config.LoggerConfig()
	assert.Equal(t, logging.LevelDebug, lc.Level)
	assert.Equal(t, "json", lc.Format)
}

func TestLoad_ConfigFile(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(`
template:
  scan_paths: [./site]
render:
  missing: keep
watch:
  debounce: 50ms
`), 0o644))

	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())

	config, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"./site"}, config.Template.ScanPaths)
	assert.Equal(t, directive.MissingKeep, config.Missing())
	assert.Equal(t, 50*time.Millisecond, config.Watch.Debounce)
}

func TestBindEnv(t *testing.T) {
	viper.Reset()
	t.Setenv("ROPETPL_RENDER_ESCAPE", "html")
	t.Setenv("ROPETPL_TEMPLATE_SCAN_PATHS", "./x,./y")
	BindEnv()
	defer viper.Reset()

	config, err := Load()
	require.NoError(t, err)
	assert.Equal(t, directive.EscapeHTML, config.Escape())
	assert.Equal(t, []string{"./x", "./y"}, config.Template.ScanPaths)
	assert.Contains(t, Keys(), "render.escape")
}

func TestIsTemplate(t *testing.T) {
	config := &Config{Template: TemplateConfig{
		Extensions:      []string{".tpl", ".tmpl"},
		ExcludePatterns: []string{"*.bak", ".*"},
	}}

	assert.True(t, config.IsTemplate("templates/page.tpl"))
	assert.True(t, config.IsTemplate("PAGE.TMPL"))
	assert.False(t, config.IsTemplate("page.html"))
	assert.False(t, config.IsTemplate(".hidden.tpl"))
	assert.False(t, config.IsTemplate("page.tpl.bak"))
}

func TestDecode_SkipsValidation(t *testing.T) {
	v := viper.New()
	v.Set("render.missing", "explode")
	v.Set("template.extensions", "md,txt")

	cfg, err := Decode(v)

	require.NoError(t, err)
	assert.Equal(t, "explode", cfg.Render.Missing)
	assert.Equal(t, []string{".md", ".txt"}, cfg.Template.Extensions)
	assert.Equal(t, DefaultScanPaths, cfg.Template.ScanPaths)
	assert.True(t, ValidateConfigWithDetails(cfg).HasErrors())
}
