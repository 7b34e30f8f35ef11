// Package config provides configuration management for ropetpl using Viper
// for loading from files, environment variables, and command-line flags.
//
// The configuration is read from .ropetpl.yml (or the file named by
// --config / ROPETPL_CONFIG_FILE) with ROPETPL_ environment overrides. It
// covers where templates live, how they render, which data files feed
// them, how the watcher debounces changes, and how ropetpl logs.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/ropetpl/internal/directive"
	"github.com/conneroisu/ropetpl/internal/errors"
	"github.com/conneroisu/ropetpl/internal/logging"
	"github.com/conneroisu/ropetpl/internal/validation"
)

// EnvPrefix prefixes every environment override, e.g. ROPETPL_RENDER_MISSING.
const EnvPrefix = "ROPETPL"

// FileName is the configuration file looked up in the working directory.
const FileName = ".ropetpl.yml"

type Config struct {
	Template TemplateConfig `mapstructure:"template" yaml:"template" json:"template"`
	Render   RenderConfig   `mapstructure:"render" yaml:"render" json:"render"`
	Data     DataConfig     `mapstructure:"data" yaml:"data" json:"data"`
	Watch    WatchConfig    `mapstructure:"watch" yaml:"watch" json:"watch"`
	Log      LogConfig      `mapstructure:"log" yaml:"log" json:"log"`

	TargetFiles []string `mapstructure:"-" yaml:"-" json:"-"` // CLI arguments, not from config file
}

type TemplateConfig struct {
	Extensions      []string `mapstructure:"extensions" yaml:"extensions" json:"extensions"`
	ScanPaths       []string `mapstructure:"scan_paths" yaml:"scan_paths" json:"scan_paths"`
	ExcludePatterns []string `mapstructure:"exclude_patterns" yaml:"exclude_patterns" json:"exclude_patterns"`
	// InitialCapacity is the slot capacity of each parsed document; zero
	// sizes it from the source.
	InitialCapacity int `mapstructure:"initial_capacity" yaml:"initial_capacity" json:"initial_capacity"`
}

type RenderConfig struct {
	Missing  string `mapstructure:"missing" yaml:"missing" json:"missing"`
	Escape   string `mapstructure:"escape" yaml:"escape" json:"escape"`
	Markdown bool   `mapstructure:"markdown" yaml:"markdown" json:"markdown"`
	Output   string `mapstructure:"output" yaml:"output" json:"output"`
}

type DataConfig struct {
	Files []string `mapstructure:"files" yaml:"files" json:"files"`
}

type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce" json:"debounce"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	Dir    string `mapstructure:"dir" yaml:"dir" json:"dir,omitempty"` // also log to a dated file here
}

// Defaults.
var (
	DefaultExtensions      = []string{".tpl", ".tmpl"}
	DefaultScanPaths       = []string{"./templates"}
	DefaultExcludePatterns = []string{"*.bak", "*~", ".*"}
	DefaultDebounce        = 300 * time.Millisecond

	// DataExtensions are the extensions data files are expected to carry.
	DataExtensions = []string{".yml", ".yaml", ".json"}
)

// Load builds the configuration from the global viper instance, applies
// defaults for anything left unset and validates the result.
func Load() (*Config, error) {
	config, err := Decode(viper.GetViper())
	if err != nil {
		return nil, err
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.WrapConfig(err, errors.ErrCodeConfigInvalid, "invalid configuration")
	}

	return config, nil
}

// Decode reads the configuration held by v and applies defaults without
// validating it.
func Decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.WrapConfig(err, errors.ErrCodeConfigInvalid, "cannot decode configuration")
	}

	// viper hands comma-separated env values over as a single string
	config.Template.ScanPaths = stringSlice(v, "template.scan_paths", config.Template.ScanPaths)
	config.Template.Extensions = stringSlice(v, "template.extensions", config.Template.Extensions)
	config.Template.ExcludePatterns = stringSlice(v, "template.exclude_patterns", config.Template.ExcludePatterns)
	config.Data.Files = stringSlice(v, "data.files", config.Data.Files)

	applyDefaults(v, &config)
	return &config, nil
}

func stringSlice(v *viper.Viper, key string, current []string) []string {
	if !v.IsSet(key) {
		return current
	}
	var out []string
	for _, s := range v.GetStringSlice(key) {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func applyDefaults(v *viper.Viper, config *Config) {
	if len(config.Template.Extensions) == 0 {
		config.Template.Extensions = append([]string(nil), DefaultExtensions...)
	}
	if len(config.Template.ScanPaths) == 0 {
		config.Template.ScanPaths = append([]string(nil), DefaultScanPaths...)
	}
	if !v.IsSet("template.exclude_patterns") && len(config.Template.ExcludePatterns) == 0 {
		config.Template.ExcludePatterns = append([]string(nil), DefaultExcludePatterns...)
	}
	for i, ext := range config.Template.Extensions {
		if !strings.HasPrefix(ext, ".") {
			config.Template.Extensions[i] = "." + ext
		}
	}

	if config.Render.Missing == "" {
		config.Render.Missing = string(directive.MissingEmpty)
	}
	if config.Render.Escape == "" {
		config.Render.Escape = string(directive.EscapeNone)
	}

	if !v.IsSet("watch.enabled") {
		config.Watch.Enabled = true
	}
	if config.Watch.Debounce == 0 {
		config.Watch.Debounce = DefaultDebounce
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
}

// validateConfig validates configuration values for correctness
func validateConfig(config *Config) error {
	if err := validateTemplateConfig(&config.Template); err != nil {
		return fmt.Errorf("template config: %w", err)
	}

	if err := validateRenderConfig(&config.Render); err != nil {
		return fmt.Errorf("render config: %w", err)
	}

	for _, f := range config.Data.Files {
		if err := validation.ValidatePath(f); err != nil {
			return fmt.Errorf("data config: invalid data file '%s': %w", f, err)
		}
	}

	if config.Watch.Debounce < 0 {
		return fmt.Errorf("watch config: debounce %s is negative", config.Watch.Debounce)
	}

	if _, err := logging.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("log config: %w", err)
	}
	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("log config: unknown format %q (want text or json)", config.Log.Format)
	}
	if config.Log.Dir != "" {
		if err := validation.ValidatePath(config.Log.Dir); err != nil {
			return fmt.Errorf("log config: invalid dir '%s': %w", config.Log.Dir, err)
		}
	}

	return nil
}

func validateTemplateConfig(config *TemplateConfig) error {
	for _, path := range config.ScanPaths {
		if err := validation.ValidatePath(path); err != nil {
			return fmt.Errorf("invalid scan path '%s': %w", path, err)
		}
	}
	for _, pattern := range config.ExcludePatterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("invalid exclude pattern '%s': %w", pattern, err)
		}
	}
	if config.InitialCapacity < 0 {
		return fmt.Errorf("initial_capacity %d is negative", config.InitialCapacity)
	}
	return nil
}

func validateRenderConfig(config *RenderConfig) error {
	if _, err := directive.ParseMissingPolicy(config.Missing); err != nil {
		return err
	}
	if _, err := directive.ParseEscapeMode(config.Escape); err != nil {
		return err
	}
	if config.Output != "" && config.Output != "-" {
		if err := validation.ValidatePath(config.Output); err != nil {
			return fmt.Errorf("invalid output '%s': %w", config.Output, err)
		}
	}
	return nil
}

// Missing returns the parsed missing-value policy. Load has validated it.
func (c *Config) Missing() directive.MissingPolicy {
	p, _ := directive.ParseMissingPolicy(c.Render.Missing)
	return p
}

// Escape returns the parsed escape mode. Load has validated it.
func (c *Config) Escape() directive.EscapeMode {
	m, _ := directive.ParseEscapeMode(c.Render.Escape)
	return m
}

// LoggerConfig converts the log section for logging.NewLogger.
func (c *Config) LoggerConfig() *logging.LoggerConfig {
	lc := logging.DefaultConfig()
	lc.Level, _ = logging.ParseLevel(c.Log.Level)
	lc.Format = c.Log.Format
	return lc
}

// IsTemplate reports whether path has a template extension and matches no
// exclude pattern.
func (c *Config) IsTemplate(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range c.Template.ExcludePatterns {
		if ok, _ := filepath.Match(pattern, base); ok {
			return false
		}
	}
	ext := filepath.Ext(base)
	for _, want := range c.Template.Extensions {
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}
