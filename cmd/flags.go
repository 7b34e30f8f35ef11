package cmd

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// StandardFlags provides consistent flag definitions across commands
type StandardFlags struct {
	// Data flags
	DataFiles []string `flag:"data,d" desc:"Data file (YAML or JSON), repeatable"`

	// Render flags
	Missing  string `flag:"missing" desc:"Missing-value policy (empty|keep|error)"`
	Escape   string `flag:"escape" desc:"Escape mode (none|html)"`
	Markdown bool   `flag:"markdown" desc:"Convert the rendered Markdown to HTML"`

	// Output flags
	Format  string `flag:"format,f" desc:"Output format (table|json|yaml)" default:"table"`
	Verbose bool   `flag:"verbose,v" desc:"Enable verbose output" default:"false"`
	Quiet   bool   `flag:"quiet,q" desc:"Suppress output" default:"false"`
}

// Formats are the structured output formats.
var Formats = []string{"table", "json", "yaml"}

// AddStandardFlags adds standard flags to a command
func AddStandardFlags(cmd *cobra.Command, flagTypes ...string) *StandardFlags {
	flags := &StandardFlags{}

	for _, flagType := range flagTypes {
		switch flagType {
		case "data":
			addDataFlags(cmd, flags)
		case "render":
			addRenderFlags(cmd, flags)
		case "output":
			addOutputFlags(cmd, flags)
		}
	}

	return flags
}

func addDataFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().StringArrayVarP(&flags.DataFiles, "data", "d", nil, "Data file (YAML or JSON), repeatable; later files override earlier ones")
}

func addRenderFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().StringVar(&flags.Missing, "missing", "", "Missing-value policy (empty, keep, error)")
	cmd.Flags().StringVar(&flags.Escape, "escape", "", "Escape mode (none, html)")
	cmd.Flags().BoolVar(&flags.Markdown, "markdown", false, "Convert the rendered Markdown to HTML")
}

func addOutputFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().StringVarP(&flags.Format, "format", "f", "table", "Output format (table|json|yaml)")
	cmd.Flags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable verbose output")
	cmd.Flags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Suppress output")
}

// BindRenderFlags binds the render flags of cmd to their configuration
// keys, so an explicit flag overrides the file and the environment.
// It must run when cmd executes; viper keeps one binding per key.
func BindRenderFlags(cmd *cobra.Command) {
	SetViperBindings(cmd, map[string]string{
		"missing":  "render.missing",
		"escape":   "render.escape",
		"markdown": "render.markdown",
	})
}

// ValidateFlags validates flag combinations and values
func (f *StandardFlags) ValidateFlags() error {
	if f.Format != "" {
		if err := ValidateFormatWithSuggestion(f.Format, Formats); err != nil {
			return err
		}
	}

	if f.Quiet && f.Verbose {
		return fmt.Errorf("cannot specify both --quiet and --verbose")
	}

	for _, file := range f.DataFiles {
		if err := ValidateFileExists(file); err != nil {
			return err
		}
	}

	return nil
}

// SetViperBindings binds flags to viper configuration keys
func SetViperBindings(cmd *cobra.Command, bindings map[string]string) {
	for flagName, configKey := range bindings {
		if flag := cmd.Flags().Lookup(flagName); flag != nil {
			_ = viper.BindPFlag(configKey, flag)
		}
	}
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:     flag.Value,
		validator: validator,
	}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.Value.Set(val)
}

// ValidateFormatWithSuggestion rejects a format outside valid, naming the
// accepted ones.
func ValidateFormatWithSuggestion(format string, valid []string) error {
	if slices.Contains(valid, strings.ToLower(format)) {
		return nil
	}
	return fmt.Errorf("invalid format %s, must be one of: %s", format, strings.Join(valid, ", "))
}

// File existence validation helper
func ValidateFileExists(filename string) error {
	if filename == "" {
		return nil // Empty is valid for optional files
	}

	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", filename)
	}

	return nil
}
