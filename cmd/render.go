package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/conneroisu/ropetpl/internal/engine"
	"github.com/conneroisu/ropetpl/internal/errors"
	"github.com/conneroisu/ropetpl/internal/output"
	"github.com/conneroisu/ropetpl/internal/rope"
	"github.com/conneroisu/ropetpl/internal/scanner"
	"github.com/conneroisu/ropetpl/internal/tree"
)

var renderCmd = &cobra.Command{
	Use:     "render <template>",
	Aliases: []string{"r"},
	Short:   "Render a template against data",
	Long: `Render a template against YAML or JSON data and write the result.

Data files listed under data.files in .ropetpl.yml are loaded first, then
every --data file in order. Later files override keys of earlier ones.
Use "-" as the template to read it from standard input.

Examples:
  ropetpl render page.tpl --data site.yml             # Render to stdout
  ropetpl render page.tpl -d base.yml -d prod.yml     # Layer data files
  ropetpl render notes.md.tpl --markdown -o notes.html
  ropetpl render page.tpl --missing error             # Fail on unknown paths
  cat page.tpl | ropetpl render - --escape html`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

var (
	renderFlags  *StandardFlags
	renderOutput string
	renderStats  bool
	renderVerify bool
)

func init() {
	rootCmd.AddCommand(renderCmd)

	renderFlags = AddStandardFlags(renderCmd, "data", "render")
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "Output file (default standard output)")
	renderCmd.Flags().BoolVar(&renderStats, "stats", false, "Print engine and allocation statistics to stderr")
	renderCmd.Flags().BoolVar(&renderVerify, "verify", false, "Check document consistency after rendering")

	AddFlagValidation(renderCmd, "missing", func(v string) error {
		return ValidateFormatWithSuggestion(v, []string{"empty", "keep", "error"})
	})
	AddFlagValidation(renderCmd, "escape", func(v string) error {
		return ValidateFormatWithSuggestion(v, []string{"none", "html"})
	})
}

func runRender(cmd *cobra.Command, args []string) error {
	BindRenderFlags(cmd)
	SetViperBindings(cmd, map[string]string{"output": "render.output"})

	if err := renderFlags.ValidateFlags(); err != nil {
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

	data, err := loadData(append(append([]string(nil), cfg.Data.Files...), renderFlags.DataFiles...))
	if err != nil {
		return err
	}

	var alloc *rope.TrackingAllocator
	var opts []engine.Option
	if renderStats {
		alloc = rope.NewTrackingAllocator(nil)
		opts = append(opts, engine.WithAllocator(alloc))
	}
	eng := newEngine(cfg, logger, opts...)

	text, err := renderTemplate(commandContext(cmd), eng, name, src, data, renderVerify)
	if err != nil {
		return err
	}

	w := output.New(cfg.Render.Output, cfg.Render.Markdown)
	if w.Path() == output.Stdout {
		w = output.NewTo(cmd.OutOrStdout(), cfg.Render.Markdown)
	}
	if err := w.Write(text); err != nil {
		return err
	}

	if renderStats {
		printStats(cmd.ErrOrStderr(), eng.Stats(), alloc.Stats())
	}
	return nil
}

// readTemplate loads the template named by arg, or standard input for "-".
func readTemplate(stdin io.Reader, arg string) (name, src string, err error) {
	if arg == output.Stdout {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", "", errors.WrapIO(err, errors.ErrCodeInternalError, "cannot read template from standard input")
		}
		return "stdin", string(b), nil
	}
	b, err := os.ReadFile(arg)
	if err != nil {
		return "", "", errors.WrapIO(err, errors.ErrCodeFileNotFound, "cannot read template "+arg)
	}
	return scanner.Name(arg), string(b), nil
}

// renderTemplate parses and renders src. With verify set the document is
// checked for link and length consistency before it is released.
func renderTemplate(ctx context.Context, eng *engine.Engine, name, src string, data tree.Node, verify bool) (string, error) {
	t, err := eng.Parse(ctx, name, src)
	if err != nil {
		return "", err
	}
	defer t.Close()

	text, err := t.Render(ctx, data)
	if err != nil {
		return "", err
	}
	if verify {
		if err := t.Document().Verify(); err != nil {
			return "", errors.Wrap(err, errors.ErrorTypeInternal, errors.ErrCodeInternalError,
				"document of "+name+" is inconsistent after rendering")
		}
	}
	return text, nil
}

func printStats(w io.Writer, s engine.Stats, a rope.AllocStats) {
	fmt.Fprintf(w, "parsed %d, rendered %d, failed %d, directives %d\n",
		s.Parsed, s.Rendered, s.Failed, s.Directives)
	fmt.Fprintf(w, "slot arrays: %d allocated, %d freed, peak %d bytes\n",
		a.Allocations, a.Frees, a.PeakBytes)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
