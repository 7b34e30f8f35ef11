package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/ropetpl/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage ropetpl configuration",
	Long: `Manage ropetpl configuration files and settings.

This command provides subcommands for:
- Validating existing configuration files
- Showing current configuration values
- Listing the environment variables ropetpl reads

Examples:
  ropetpl config validate              # Validate current configuration
  ropetpl config show                  # Show current configuration
  ropetpl config env                   # List ROPETPL_ variables
  ropetpl config validate --file .ropetpl.yml  # Validate specific config file`,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate a ropetpl configuration file for correctness and best practices.

This command checks for:
- Known missing-value policies, escape modes and log levels
- Template extensions and exclude patterns that cannot match
- Scan paths and data files that do not exist
- Paths that traverse outside the project

Examples:
  ropetpl config validate              # Validate .ropetpl.yml in current directory
  ropetpl config validate --file config.yml  # Validate specific file
  ropetpl config validate --strict    # Treat warnings as errors`,
	RunE: runConfigValidate,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the current ropetpl configuration including all resolved values.

This shows the final configuration after:
- Loading from configuration file
- Applying environment variable overrides
- Setting default values
- Processing command-line flags

Examples:
  ropetpl config show                  # Show all configuration
  ropetpl config show --format yaml   # Show in YAML format
  ropetpl config show --format json   # Show in JSON format`,
	RunE: runConfigShow,
}

var configEnvCmd = &cobra.Command{
	Use:   "env",
	Short: "List the environment variables ropetpl reads",
	RunE:  runConfigEnv,
}

var (
	configFile   string
	configFormat string
	configStrict bool
)

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEnvCmd)

	configValidateCmd.Flags().
		StringVarP(&configFile, "file", "f", "", "Configuration file to validate (default: .ropetpl.yml)")
	configValidateCmd.Flags().BoolVar(&configStrict, "strict", false, "Treat warnings as errors")

	configShowCmd.Flags().StringVar(&configFormat, "format", "yaml", "Output format (yaml, json)")
	AddFlagValidation(configShowCmd, "format", func(format string) error {
		return ValidateFormatWithSuggestion(format, []string{"yaml", "json"})
	})
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	targetFile := configFile
	if targetFile == "" {
		if _, err := os.Stat(config.FileName); err == nil {
			targetFile = config.FileName
		} else {
			return errors.New("no configuration file found. Use --file to specify a config file")
		}
	}

	if _, err := os.Stat(targetFile); os.IsNotExist(err) {
		return fmt.Errorf("configuration file %s does not exist", targetFile)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "🔍 Validating configuration file: %s\n", targetFile)
	fmt.Fprintln(out, "=====================================")

	v := viper.New()
	v.SetConfigFile(targetFile)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read configuration file: %w", err)
	}

	cfg, err := config.Decode(v)
	if err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	validation := config.ValidateConfigWithDetails(cfg)

	if validation.Valid && !validation.HasWarnings() {
		fmt.Fprintln(out, "✅ Configuration is valid!")
		fmt.Fprintln(out, "No errors or warnings found.")
		return nil
	}

	fmt.Fprint(out, validation.String())

	if validation.HasErrors() {
		return fmt.Errorf("configuration validation failed with %d errors", len(validation.Errors))
	}
	if configStrict {
		return fmt.Errorf(
			"configuration validation failed in strict mode with %d warnings",
			len(validation.Warnings),
		)
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "# loaded from %s\n", used)
	}

	switch configFormat {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(cfg)
	default:
		encoder := yaml.NewEncoder(out)
		defer encoder.Close()
		return encoder.Encode(cfg)
	}
}

func runConfigEnv(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s_CONFIG_FILE\n", config.EnvPrefix)
	for _, key := range config.Keys() {
		fmt.Fprintln(out, envName(key))
	}
	return nil
}

// envName is the environment variable viper consults for key.
func envName(key string) string {
	return config.EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
