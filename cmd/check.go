package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/conneroisu/ropetpl/internal/config"
	"github.com/conneroisu/ropetpl/internal/errors"
	"github.com/conneroisu/ropetpl/internal/registry"
	"github.com/conneroisu/ropetpl/internal/scanner"
)

var (
	checkFormat string
	checkStrict bool
)

// checkCmd represents the check command.
var checkCmd = &cobra.Command{
	Use:     "check [path...]",
	Aliases: []string{"validate"},
	Short:   "Check templates for syntax errors",
	Long: `Parse every template and report the ones that fail, including:

- Unclosed {{ }} and {% %} directives
- Unbalanced if/endif nesting and misplaced else branches
- Malformed conditions and paths
- Unknown filters

Without arguments the configured scan paths are checked. Data keys no
template reads are reported as warnings.

Examples:
  ropetpl check                       # Check all configured templates
  ropetpl check templates/emails      # Check one directory
  ropetpl check page.tpl --format json
  ropetpl check --strict              # Treat warnings as errors`,
	RunE: runCheckCommand,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVarP(&checkFormat, "format", "f", "text", "Output format (text, json)")
	checkCmd.Flags().BoolVar(&checkStrict, "strict", false, "Treat warnings as errors")

	AddFlagValidation(checkCmd, "format", func(format string) error {
		return ValidateFormatWithSuggestion(format, []string{"text", "json"})
	})
}

// CheckResult is the outcome for one template.
type CheckResult struct {
	Template string                 `json:"template"`
	Valid    bool                   `json:"valid"`
	Error    string                 `json:"error,omitempty"`
	Details  map[string]interface{} `json:"details,omitempty"`
	Hints    []string               `json:"hints,omitempty"`
}

// CheckSummary aggregates a check run.
type CheckSummary struct {
	Total      int           `json:"total"`
	Valid      int           `json:"valid"`
	Invalid    int           `json:"invalid"`
	UnusedKeys []string      `json:"unused_keys,omitempty"`
	Warnings   []string      `json:"warnings,omitempty"`
	Results    []CheckResult `json:"results"`
}

func runCheckCommand(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	reg := registry.NewTemplateRegistry()
	s := scanner.NewTemplateScanner(reg, newEngine(cfg, logger), cfg, logger)
	defer s.Close()

	ctx := commandContext(cmd)
	if len(args) == 0 {
		err = s.ScanAll(ctx)
	} else {
		err = scanTargets(cmd, s, args)
	}
	if err != nil {
		return err
	}

	summary, collector := summarize(reg, cfg)

	if checkFormat == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(summary); err != nil {
			return err
		}
	} else {
		printSummary(cmd.OutOrStdout(), summary)
	}

	if collector.HasErrors() {
		return fmt.Errorf("%d of %d templates failed to parse", collector.Count(), summary.Total)
	}
	if checkStrict && len(summary.Warnings)+len(summary.UnusedKeys) > 0 {
		return fmt.Errorf("check failed in strict mode with %d warnings",
			len(summary.Warnings)+len(summary.UnusedKeys))
	}
	return nil
}

func scanTargets(cmd *cobra.Command, s *scanner.TemplateScanner, args []string) error {
	ctx := commandContext(cmd)
	var errs []error
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			errs = append(errs, errors.WrapIO(err, errors.ErrCodeFileNotFound, "cannot check "+arg))
			continue
		}
		if info.IsDir() {
			err = s.ScanDirectory(ctx, arg)
		} else {
			err = s.ScanFile(ctx, arg)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.CombineErrors(errs...)
}

func summarize(reg *registry.TemplateRegistry, cfg *config.Config) (CheckSummary, *errors.ErrorCollector) {
	collector := errors.NewErrorCollector()
	summary := CheckSummary{}

	for _, info := range reg.GetAll() {
		summary.Total++
		result := CheckResult{Template: info.Name, Valid: info.Valid()}
		if info.Valid() {
			summary.Valid++
		} else {
			summary.Invalid++
			collector.AddFile(info.Name, info.Err)
			result.Error = info.Err.Error()
			result.Details = errors.GetErrorContext(info.Err)
			for _, s := range errors.SuggestionsFor(info.Err) {
				result.Hints = append(result.Hints, s.Title)
			}
		}
		summary.Results = append(summary.Results, result)
	}

	validation := config.ValidateConfigWithDetails(cfg)
	for _, w := range validation.Warnings {
		summary.Warnings = append(summary.Warnings, w.Error())
	}

	if len(cfg.Data.Files) > 0 {
		data, err := loadData(cfg.Data.Files)
		if err != nil {
			summary.Warnings = append(summary.Warnings, err.Error())
		} else {
			var keys []string
			for k := range data.Keys() {
				keys = append(keys, k)
			}
			summary.UnusedKeys = reg.UnusedKeys(keys)
		}
	}

	return summary, collector
}

func printSummary(w io.Writer, summary CheckSummary) {
	for _, warning := range summary.Warnings {
		fmt.Fprintf(w, "⚠️  %s\n", warning)
	}
	for _, key := range summary.UnusedKeys {
		fmt.Fprintf(w, "⚠️  data key %q is not read by any template\n", key)
	}

	if summary.Total == 0 {
		fmt.Fprintln(w, "No templates found to check")
		return
	}

	for _, result := range summary.Results {
		if result.Valid {
			fmt.Fprintf(w, "✅ %s\n", result.Template)
			continue
		}
		fmt.Fprintf(w, "❌ %s\n", result.Template)
		fmt.Fprintf(w, "   %s\n", result.Error)
		for _, hint := range result.Hints {
			fmt.Fprintf(w, "   💡 %s\n", hint)
		}
	}

	fmt.Fprintf(w, "\n%d templates, %d valid, %d invalid\n", summary.Total, summary.Valid, summary.Invalid)
}
