// Package cmd provides the command-line interface for ropetpl with
// configuration loaded from multiple sources.
//
// Configuration System:
//
//	The CLI supports flexible configuration through multiple sources with clear precedence:
//	1. Command-line flags (--config, --missing, etc.) - highest priority
//	2. ROPETPL_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (ROPETPL_RENDER_MISSING, etc.)
//	4. Configuration files (.ropetpl.yml) - lowest priority
//
// Environment Variables:
//
//	ROPETPL_CONFIG_FILE: Path to custom configuration file
//	ROPETPL_RENDER_MISSING: Missing-value policy (empty, keep, error)
//	ROPETPL_RENDER_ESCAPE: Escape mode (none, html)
//	ROPETPL_TEMPLATE_SCAN_PATHS: Comma-separated template directories
//	And the rest following the ROPETPL_<SECTION>_<OPTION> pattern
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/ropetpl/internal/config"
	"github.com/conneroisu/ropetpl/internal/directive"
	"github.com/conneroisu/ropetpl/internal/engine"
	"github.com/conneroisu/ropetpl/internal/errors"
	"github.com/conneroisu/ropetpl/internal/logging"
	"github.com/conneroisu/ropetpl/internal/tree"
)

var (
	cfgFile string
	logFile *logging.FileLogger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ropetpl",
	Short: "A text template engine with conditionals and substitutions",
	Long: `ropetpl renders text templates against YAML or JSON data.

Templates mix plain text with two kinds of directives:

  {{ path | filter }}                       substitute a value
  {% if cond %}..{% elif cond %}..{% else %}..{% endif %}
                                            keep one branch

Quick Start:
  ropetpl render page.tpl --data site.yml   Render to standard output
  ropetpl check                             Check all templates
  ropetpl list                              List discovered templates
  ropetpl watch                             Re-render on change

Documentation: https://github.com/conneroisu/ropetpl`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// Errors are printed with fix suggestions attached.
func Execute() error {
	err := rootCmd.Execute()
	closeLogs()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", errors.Enhance(err))
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .ropetpl.yml, can also use ROPETPL_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")
	bindConfig()
}

// bindConfig binds the persistent flags to their configuration keys.
func bindConfig() {
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig initializes the configuration system.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag: Explicitly specified config file path
//  2. ROPETPL_CONFIG_FILE environment variable: Custom config file path
//  3. Default: .ropetpl.yml in current directory
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("ROPETPL_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(strings.TrimSuffix(config.FileName, ".yml"))
	}

	config.BindEnv()

	// a missing or unreadable file leaves defaults in place
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig loads the configuration and builds the logger the command
// logs through. With log.dir set, logs also go to a dated file there.
func loadConfig() (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.NewLogger(cfg.LoggerConfig())
	if cfg.Log.Dir == "" {
		return cfg, logger, nil
	}

	closeLogs()
	fileLogger, err := logging.NewFileLogger(cfg.LoggerConfig(), cfg.Log.Dir)
	if err != nil {
		return nil, nil, errors.WrapIO(err, errors.ErrCodeInternalError, "cannot open log file")
	}
	logFile = fileLogger
	return cfg, logging.NewMultiLogger(logger, fileLogger), nil
}

func closeLogs() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

// newEngine builds an engine honouring the render and template settings.
func newEngine(cfg *config.Config, logger logging.Logger, opts ...engine.Option) *engine.Engine {
	base := []engine.Option{
		engine.WithMissing(cfg.Missing()),
		engine.WithEscape(cfg.Escape()),
		engine.WithCapacity(cfg.Template.InitialCapacity),
	}
	return engine.New(directive.NewDefaultRegistry(), logger, append(base, opts...)...)
}

// loadData reads every data file in order and merges them, later files
// overriding earlier ones.
func loadData(files []string) (tree.YAML, error) {
	if len(files) == 0 {
		return tree.Empty(), nil
	}
	trees := make([]tree.YAML, 0, len(files))
	for _, f := range files {
		t, err := tree.Load(f)
		if err != nil {
			return tree.YAML{}, err
		}
		trees = append(trees, t)
	}
	return tree.Merge(trees...)
}
