package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/ropetpl/internal/config"
	"github.com/conneroisu/ropetpl/internal/engine"
	"github.com/conneroisu/ropetpl/internal/errors"
	"github.com/conneroisu/ropetpl/internal/logging"
	"github.com/conneroisu/ropetpl/internal/output"
	"github.com/conneroisu/ropetpl/internal/registry"
	"github.com/conneroisu/ropetpl/internal/scanner"
	"github.com/conneroisu/ropetpl/internal/tree"
	"github.com/conneroisu/ropetpl/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Render all templates and re-render them on change",
	Long: `Render every template under the scan paths into an output directory,
then watch templates and data files. A changed template is re-rendered on
its own; a changed data file re-renders only the templates that read one
of the keys whose value changed.

The output name is the template path without its template extension, so
templates/index.html.tpl becomes <out-dir>/templates/index.html.

Examples:
  ropetpl watch                        # Watch and render into ./dist
  ropetpl watch --out-dir public -d site.yml
  ropetpl watch --once                 # Render everything and exit`,
	RunE: runWatch,
}

var (
	watchFlags   *StandardFlags
	watchOutDir  string
	watchOnce    bool
	watchVerbose bool
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchFlags = AddStandardFlags(watchCmd, "data", "render")
	watchCmd.Flags().StringVar(&watchOutDir, "out-dir", "dist", "Directory rendered templates are written to")
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "Render everything once and exit")
	watchCmd.Flags().BoolVarP(&watchVerbose, "verbose", "v", false, "Verbose output")
}

func runWatch(cmd *cobra.Command, args []string) error {
	BindRenderFlags(cmd)

	if err := watchFlags.ValidateFlags(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	dataFiles := append(append([]string(nil), cfg.Data.Files...), watchFlags.DataFiles...)
	s := newSite(cfg, newEngine(cfg, logger), logger, watchOutDir, dataFiles, cmd.OutOrStdout())
	defer s.Close()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(s.out, "📁 Performing initial render...")
	if err := s.Build(ctx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Initial render failed: %v\n", errors.Enhance(err))
	}

	if watchOnce || !cfg.Watch.Enabled {
		if !cfg.Watch.Enabled {
			fmt.Fprintln(s.out, "Watching is disabled in the configuration.")
		}
		return nil
	}

	fileWatcher, err := watcher.NewFileWatcher(cfg.Watch.Debounce, logger)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fileWatcher.Stop()

	fileWatcher.AddFilter(watcher.AnyOf(
		watcher.ExtensionFilter(cfg.Template.Extensions...),
		watcher.PathFilter(dataFiles...),
	))
	fileWatcher.AddFilter(watcher.NoHiddenFilter)
	fileWatcher.AddFilter(watcher.NoBackupFilter)
	fileWatcher.AddFilter(watcher.NoGitFilter)
	fileWatcher.AddHandler(s.Handle)

	fmt.Fprintln(s.out, "🔍 Setting up file watching...")
	for _, path := range cfg.Template.ScanPaths {
		if err := fileWatcher.AddRecursive(path); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to watch path %s: %v\n", path, err)
		} else {
			fmt.Fprintf(s.out, "   - Watching: %s\n", path)
		}
	}
	for _, f := range dataFiles {
		if err := fileWatcher.AddPath(f); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to watch data file %s: %v\n", f, err)
		} else {
			fmt.Fprintf(s.out, "   - Watching: %s\n", f)
		}
	}

	if watchVerbose {
		events := s.registry.Watch()
		defer s.registry.UnWatch(events)
		go func() {
			for ev := range events {
				fmt.Fprintf(s.out, "   %s: %s\n", ev.Type, ev.Template.Name)
			}
		}()
	}

	if err := fileWatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}

	fmt.Fprintln(s.out, "👀 Watching for changes... (Press Ctrl+C to stop)")
	<-ctx.Done()
	fmt.Fprintln(s.out, "\n🛑 Stopping file watcher...")

	err = fileWatcher.Stop()
	fileWatcher.Wait()
	return err
}

// site renders the templates of a registry into a directory and keeps the
// outputs current as templates and data change.
type site struct {
	cfg      *config.Config
	engine   *engine.Engine
	logger   logging.Logger
	scanner  *scanner.TemplateScanner
	registry *registry.TemplateRegistry
	outDir   string
	out      io.Writer

	mu        sync.Mutex
	dataFiles []string
	data      tree.YAML
}

func newSite(cfg *config.Config, eng *engine.Engine, logger logging.Logger, outDir string, dataFiles []string, out io.Writer) *site {
	reg := registry.NewTemplateRegistry()
	return &site{
		cfg:       cfg,
		engine:    eng,
		logger:    logger.WithComponent("site"),
		scanner:   scanner.NewTemplateScanner(reg, eng, cfg, logger),
		registry:  reg,
		outDir:    outDir,
		out:       out,
		dataFiles: dataFiles,
		data:      tree.Empty(),
	}
}

// Close stops the scanner's workers.
func (s *site) Close() error { return s.scanner.Close() }

// Build loads the data, scans every template and renders the valid ones.
func (s *site) Build(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := loadData(s.dataFiles)
	if err != nil {
		return err
	}
	s.data = data

	scanErr := s.scanner.ScanAll(ctx)

	var names []string
	for _, info := range s.registry.GetAll() {
		names = append(names, info.Name)
	}
	return errors.CombineErrors(scanErr, s.render(ctx, names))
}

// Handle reacts to one debounced batch of file changes.
func (s *site) Handle(ctx context.Context, events []watcher.ChangeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make(map[string]bool)
	dataChanged := false
	var errs []error

	for _, ev := range events {
		if s.isData(ev.Path) {
			dataChanged = true
			continue
		}
		name := scanner.Name(ev.Path)
		switch ev.Type {
		case watcher.EventTypeDeleted, watcher.EventTypeRenamed:
			s.scanner.Forget(ev.Path)
			if err := os.Remove(s.outputPath(name)); err != nil && !os.IsNotExist(err) {
				errs = append(errs, errors.WrapIO(err, errors.ErrCodeInternalError, "cannot remove output of "+name))
			}
			fmt.Fprintf(s.out, "🗑  %s\n", name)
		default:
			if err := s.scanner.ScanFile(ctx, ev.Path); err != nil {
				errs = append(errs, err)
				continue
			}
			names[name] = true
		}
	}

	if dataChanged {
		data, err := loadData(s.dataFiles)
		if err != nil {
			// keep rendering against the last good data
			errs = append(errs, err)
		} else {
			keys := changedKeys(s.data, data)
			s.data = data
			s.logger.Info(ctx, "data changed", "keys", keys)
			for _, name := range s.registry.Dependents(keys...) {
				names[name] = true
			}
		}
	}

	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	errs = append(errs, s.render(ctx, sorted))
	err := errors.CombineErrors(errs...)
	if err != nil {
		s.logger.Error(ctx, err, "change handling failed")
	}
	return err
}

func (s *site) render(ctx context.Context, names []string) error {
	var errs []error
	for _, name := range names {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		info, ok := s.registry.Get(name)
		if !ok {
			continue
		}
		if !info.Valid() {
			fmt.Fprintf(s.out, "❌ %s: %v\n", name, info.Err)
			errs = append(errs, info.Err)
			continue
		}
		if err := s.renderOne(ctx, info); err != nil {
			fmt.Fprintf(s.out, "❌ %s: %v\n", name, err)
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(s.out, "✅ %s\n", name)
	}
	return errors.CombineErrors(errs...)
}

func (s *site) renderOne(ctx context.Context, info *registry.TemplateInfo) error {
	src, err := os.ReadFile(info.FilePath)
	if err != nil {
		return errors.WrapIO(err, errors.ErrCodeFileNotFound, "cannot read template "+info.FilePath)
	}
	text, err := renderTemplate(ctx, s.engine, info.Name, string(src), s.data, false)
	if err != nil {
		return err
	}
	return output.New(s.outputPath(info.Name), s.cfg.Render.Markdown).Write(text)
}

// outputPath maps a template name to its file below the output directory.
func (s *site) outputPath(name string) string {
	rel := strings.TrimSuffix(name, filepath.Ext(name))
	if s.cfg.Render.Markdown {
		switch ext := filepath.Ext(rel); ext {
		case ".html":
		case ".md", ".markdown":
			rel = strings.TrimSuffix(rel, ext) + ".html"
		default:
			rel += ".html"
		}
	}
	rel = strings.TrimPrefix(filepath.Clean(filepath.FromSlash(rel)), string(filepath.Separator))
	return filepath.Join(s.outDir, rel)
}

func (s *site) isData(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, f := range s.dataFiles {
		if fa, err := filepath.Abs(f); err == nil && fa == abs {
			return true
		}
	}
	return false
}

// changedKeys returns the sorted top-level keys whose values differ between
// two data trees, including keys present in only one of them.
func changedKeys(before, after tree.YAML) []string {
	seen := make(map[string]bool)
	var changed []string
	check := func(key string) {
		if seen[key] {
			return
		}
		seen[key] = true
		a, inBefore := before.FindChild(key)
		b, inAfter := after.FindChild(key)
		if inBefore != inAfter || (inBefore && !sameValue(a, b)) {
			changed = append(changed, key)
		}
	}
	for key := range before.Keys() {
		check(key)
	}
	for key := range after.Keys() {
		check(key)
	}
	sort.Strings(changed)
	return changed
}

func sameValue(a, b tree.Node) bool {
	ay, aok := a.(tree.YAML)
	by, bok := b.(tree.YAML)
	if !aok || !bok {
		return false
	}
	ab, err := yaml.Marshal(ay.Raw())
	if err != nil {
		return false
	}
	bb, err := yaml.Marshal(by.Raw())
	if err != nil {
		return false
	}
	return string(ab) == string(bb)
}
