package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/ropetpl/internal/registry"
	"github.com/conneroisu/ropetpl/internal/scanner"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"l", "ls"},
	Short:   "List all discovered templates",
	Long: `List all templates found under the configured scan paths with their
directive counts. Shows names, sizes and parse status, and optionally the
data keys each template reads.

Examples:
  ropetpl list                    # List all templates in table format
  ropetpl list -f json            # Output as JSON (short flag)
  ropetpl list -k                 # Include data keys (short flag)
  ropetpl list -k -f yaml         # Include data keys, output as YAML`,
	RunE: runList,
}

var (
	listFlags    *StandardFlags
	listWithKeys bool
)

func init() {
	rootCmd.AddCommand(listCmd)

	listFlags = AddStandardFlags(listCmd, "output")

	listCmd.Flags().
		BoolVarP(&listWithKeys, "with-keys", "k", false, "Include the data keys each template reads")

	AddFlagValidation(listCmd, "format", func(format string) error {
		return ValidateFormatWithSuggestion(format, Formats)
	})
}

// listItem is the serialised form of one template.
type listItem struct {
	Name         string   `json:"name" yaml:"name"`
	FilePath     string   `json:"file_path" yaml:"file_path"`
	Size         int64    `json:"size" yaml:"size"`
	Directives   int      `json:"directives" yaml:"directives"`
	Conditionals int      `json:"conditionals" yaml:"conditionals"`
	Variables    int      `json:"variables" yaml:"variables"`
	Valid        bool     `json:"valid" yaml:"valid"`
	Error        string   `json:"error,omitempty" yaml:"error,omitempty"`
	DataKeys     []string `json:"data_keys,omitempty" yaml:"data_keys,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	if err := listFlags.ValidateFlags(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	reg := registry.NewTemplateRegistry()
	s := scanner.NewTemplateScanner(reg, newEngine(cfg, logger), cfg, logger)
	defer s.Close()

	if err := s.ScanAll(commandContext(cmd)); err != nil {
		// partial results are still worth listing
		logger.Warn(commandContext(cmd), err, "scan finished with errors")
	}

	templates := reg.GetAll()
	out := cmd.OutOrStdout()

	if len(templates) == 0 {
		if !listFlags.Quiet {
			fmt.Fprintln(out, "No templates found.")
		}
		return nil
	}

	items := make([]listItem, len(templates))
	for i, info := range templates {
		items[i] = newListItem(info, listWithKeys)
	}

	switch strings.ToLower(listFlags.Format) {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(items)
	case "yaml":
		encoder := yaml.NewEncoder(out)
		defer encoder.Close()
		return encoder.Encode(items)
	default:
		return outputTable(out, items)
	}
}

func newListItem(info *registry.TemplateInfo, withKeys bool) listItem {
	item := listItem{
		Name:         info.Name,
		FilePath:     info.FilePath,
		Size:         info.Size,
		Directives:   info.Directives,
		Conditionals: info.Conditionals,
		Variables:    info.Variables,
		Valid:        info.Valid(),
	}
	if !info.Valid() {
		item.Error = info.Err.Error()
	}
	if withKeys {
		item.DataKeys = info.DataKeys
	}
	return item
}

func outputTable(out io.Writer, items []listItem) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	header := "NAME\tSIZE\tDIRECTIVES\tIF\tVARS\tSTATUS"
	if listWithKeys {
		header += "\tKEYS"
	}
	fmt.Fprintln(w, header)

	for _, item := range items {
		status := "ok"
		if !item.Valid {
			status = "error"
		}
		line := fmt.Sprintf("%s\t%d\t%d\t%d\t%d\t%s",
			item.Name, item.Size, item.Directives, item.Conditionals, item.Variables, status)
		if listWithKeys {
			line += "\t" + strings.Join(item.DataKeys, ",")
		}
		fmt.Fprintln(w, line)
	}

	if err := w.Flush(); err != nil {
		return err
	}

	if listFlags.Verbose {
		fmt.Fprintf(out, "\nTotal: %d templates\n", len(items))
	}
	return nil
}
