package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/conneroisu/ropetpl/internal/directive"
	"github.com/conneroisu/ropetpl/internal/logging"
	"github.com/conneroisu/ropetpl/internal/validation"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("❌ Validation Errors:\n")
		for _, err := range vr.Errors {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", err.Field, err.Message))
			for _, suggestion := range err.Suggestions {
				builder.WriteString(fmt.Sprintf("    💡 %s\n", suggestion))
			}
		}
		builder.WriteString("\n")
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("⚠️  Validation Warnings:\n")
		for _, warning := range vr.Warnings {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", warning.Field, warning.Message))
			for _, suggestion := range warning.Suggestions {
				builder.WriteString(fmt.Sprintf("    💡 %s\n", suggestion))
			}
		}
	}

	return builder.String()
}

func (vr *ValidationResult) addError(field string, value interface{}, msg string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field string, value interface{}, msg string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

// ValidateConfigWithDetails checks a loaded configuration and reports
// problems with suggestions. Unlike Load it also looks at the file system:
// missing scan paths and data files are reported as warnings.
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{Valid: true}

	validateTemplateConfigDetails(&config.Template, result)
	validateRenderConfigDetails(&config.Render, result)
	validateDataConfigDetails(&config.Data, result)
	validateWatchConfigDetails(&config.Watch, result)
	validateLogConfigDetails(&config.Log, result)

	result.Valid = !result.HasErrors()

	return result
}

func validateTemplateConfigDetails(config *TemplateConfig, result *ValidationResult) {
	if len(config.ScanPaths) == 0 {
		result.addError("template.scan_paths", config.ScanPaths,
			"no scan paths specified - no templates will be found",
			"Add './templates' to scan the default template directory")
	}

	for i, path := range config.ScanPaths {
		field := fmt.Sprintf("template.scan_paths[%d]", i)
		if err := validation.ValidatePath(path); err != nil {
			result.addError(field, path, err.Error(),
				"Use relative paths from project root",
				"Avoid parent directory references (..)")
			continue
		}
		if !pathExists(path) {
			result.addWarning(field, path, "directory does not exist",
				"Create the directory: mkdir -p "+path,
				"Remove the path if not needed")
		}
	}

	if len(config.Extensions) == 0 {
		result.addError("template.extensions", config.Extensions,
			"no template extensions - every file would be skipped",
			"Use the defaults: "+strings.Join(DefaultExtensions, ", "))
	}

	for i, pattern := range config.ExcludePatterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			result.addError(fmt.Sprintf("template.exclude_patterns[%d]", i), pattern, err.Error(),
				"Exclude patterns use filepath.Match syntax, e.g. '*.bak'")
		}
	}

	if config.InitialCapacity < 0 {
		result.addError("template.initial_capacity", config.InitialCapacity,
			"capacity cannot be negative",
			"Use 0 to size documents from their source")
	} else if config.InitialCapacity > 0 && config.InitialCapacity < 16 {
		result.addWarning("template.initial_capacity", config.InitialCapacity,
			"capacities below 16 are raised to 16")
	}
}

func validateRenderConfigDetails(config *RenderConfig, result *ValidationResult) {
	if _, err := directive.ParseMissingPolicy(config.Missing); err != nil {
		result.addError("render.missing", config.Missing, err.Error(),
			"Use 'empty' to drop unresolved variables",
			"Use 'keep' to leave them in the output",
			"Use 'error' to fail the render")
	}
	if _, err := directive.ParseEscapeMode(config.Escape); err != nil {
		result.addError("render.escape", config.Escape, err.Error(),
			"Use 'html' when rendering into HTML documents")
	}
	if config.Markdown && config.Escape == string(directive.EscapeNone) {
		result.addWarning("render", "markdown + escape none",
			"substituted values may inject raw HTML into the converted Markdown",
			"Set render.escape to 'html'")
	}
	if config.Output != "" && config.Output != "-" {
		if err := validation.ValidatePath(config.Output); err != nil {
			result.addError("render.output", config.Output, err.Error())
		}
	}
}

func validateDataConfigDetails(config *DataConfig, result *ValidationResult) {
	for i, f := range config.Files {
		field := fmt.Sprintf("data.files[%d]", i)
		if err := validation.ValidatePath(f); err != nil {
			result.addError(field, f, err.Error())
			continue
		}
		if err := validation.ValidateFileExtension(f, DataExtensions); err != nil {
			result.addWarning(field, f, "data files are parsed as YAML",
				"Use a .yml, .yaml or .json extension")
		}
		if !pathExists(f) {
			result.addWarning(field, f, "file does not exist")
		}
	}
}

func validateWatchConfigDetails(config *WatchConfig, result *ValidationResult) {
	switch {
	case config.Debounce < 0:
		result.addError("watch.debounce", config.Debounce, "debounce cannot be negative")
	case config.Debounce > 0 && config.Debounce < 10*time.Millisecond:
		result.addWarning("watch.debounce", config.Debounce,
			"very short debounce may re-render several times per save",
			"Use at least 100ms")
	}
}

func validateLogConfigDetails(config *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.addError("log.level", config.Level, err.Error(),
			"Use one of: debug, info, warn, error")
	}
	if config.Format != "text" && config.Format != "json" {
		result.addError("log.format", config.Format, "unknown log format",
			"Use 'text' or 'json'")
	}
	if config.Dir != "" {
		if err := validation.ValidatePath(config.Dir); err != nil {
			result.addError("log.dir", config.Dir, err.Error())
		}
	}
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
