package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/ropetpl/internal/engine"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <template>",
	Short: "Show the directive tree of a template",
	Long: `Parse a template and print its directives in document order, nested
ones indented below the conditional branch that contains them.

Examples:
  ropetpl inspect page.tpl               # Table view
  ropetpl inspect page.tpl -f json       # Machine-readable
  cat page.tpl | ropetpl inspect - -f yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

var inspectFlags *StandardFlags

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectFlags = AddStandardFlags(inspectCmd, "output")

	AddFlagValidation(inspectCmd, "format", func(format string) error {
		return ValidateFormatWithSuggestion(format, Formats)
	})
}

// Inspection is the serialised form of a parsed template.
type Inspection struct {
	Template   string           `json:"template" yaml:"template"`
	Bytes      int              `json:"bytes" yaml:"bytes"`
	Slots      int              `json:"slots" yaml:"slots"`
	DataKeys   []string         `json:"data_keys" yaml:"data_keys"`
	Directives []engine.Summary `json:"directives" yaml:"directives"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	if err := inspectFlags.ValidateFlags(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	name, src, err := readTemplate(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}

	t, err := newEngine(cfg, logger).Parse(commandContext(cmd), name, src)
	if err != nil {
		return err
	}
	defer t.Close()

	in := Inspection{
		Template:   name,
		Bytes:      len(src),
		Slots:      t.Document().NumSlots(),
		DataKeys:   t.DataKeys(),
		Directives: t.Directives(),
	}

	out := cmd.OutOrStdout()
	switch strings.ToLower(inspectFlags.Format) {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(in)
	case "yaml":
		encoder := yaml.NewEncoder(out)
		defer encoder.Close()
		return encoder.Encode(in)
	default:
		return inspectTable(out, in)
	}
}

func inspectTable(out io.Writer, in Inspection) error {
	if !inspectFlags.Quiet {
		fmt.Fprintf(out, "%s: %d bytes, %d slots, %d directives\n",
			in.Template, in.Bytes, in.Slots, len(in.Directives))
		if len(in.DataKeys) > 0 {
			fmt.Fprintf(out, "reads: %s\n", strings.Join(in.DataKeys, ", "))
		}
		fmt.Fprintln(out)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tKIND\tAT\tDETAIL")
	for _, d := range in.Directives {
		detail := d.Text
		if d.Kind == "if" && !inspectFlags.Verbose {
			detail = d.Condition
			if d.HasElse {
				detail += " | else"
			}
		}
		fmt.Fprintf(w, "%d\t%s%s\t%d:%d\t%s\n",
			d.Index, strings.Repeat("  ", d.Depth), d.Kind, d.Line, d.Column, detail)
	}
	return w.Flush()
}
