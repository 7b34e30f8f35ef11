// Package scanner discovers template files and validates them.
//
// The scanner walks the configured scan paths, hands every template to a
// pool of persistent workers which parse it with the engine, and records
// the outcome in the template registry. CRC32 hashes let a rescan skip
// files whose content has not changed since the last parse.
package scanner

import (
	"context"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/conneroisu/ropetpl/internal/config"
	"github.com/conneroisu/ropetpl/internal/directive"
	"github.com/conneroisu/ropetpl/internal/engine"
	"github.com/conneroisu/ropetpl/internal/errors"
	"github.com/conneroisu/ropetpl/internal/logging"
	"github.com/conneroisu/ropetpl/internal/registry"
	"github.com/conneroisu/ropetpl/internal/validation"
)

// ScanJob represents a scanning job for the worker pool containing the file
// path to scan and a result channel for asynchronous communication.
type ScanJob struct {
	ctx      context.Context
	filePath string
	result   chan<- ScanResult
}

// ScanResult is the outcome of scanning one file. Parse failures are not
// errors here: they are recorded on the registered TemplateInfo.
type ScanResult struct {
	filePath string
	err      error
}

// WorkerPool manages persistent scanning workers.
type WorkerPool struct {
	jobQueue    chan ScanJob
	workerCount int
	stop        chan struct{}
	stopped     bool
	wg          sync.WaitGroup
	mu          sync.Mutex
}

// TemplateScanner discovers templates and parses them with an engine.
type TemplateScanner struct {
	registry   *registry.TemplateRegistry
	engine     *engine.Engine
	config     *config.Config
	logger     logging.Logger
	workerPool *WorkerPool

	// root bounds every scanned path; it defaults to the working directory
	root     string
	rootOnce sync.Once
	rootErr  error
}

// Option configures a TemplateScanner.
type Option func(*TemplateScanner)

// WithRoot restricts scanning to paths below dir.
func WithRoot(dir string) Option {
	return func(s *TemplateScanner) { s.root = dir }
}

// WithWorkers fixes the worker count.
func WithWorkers(n int) Option {
	return func(s *TemplateScanner) {
		if n > 0 {
			s.workerPool = NewWorkerPool(n, s)
		}
	}
}

// NewTemplateScanner creates a scanner registering into reg. A nil eng
// selects an engine over the built-in directives; a nil cfg selects the
// default extensions and exclude patterns.
func NewTemplateScanner(reg *registry.TemplateRegistry, eng *engine.Engine, cfg *config.Config, logger logging.Logger, opts ...Option) *TemplateScanner {
	if eng == nil {
		eng = engine.New(nil, logger)
	}
	if cfg == nil {
		cfg = &config.Config{Template: config.TemplateConfig{
			Extensions:      config.DefaultExtensions,
			ExcludePatterns: config.DefaultExcludePatterns,
		}}
	}
	if logger == nil {
		logger = logging.Nop()
	}
	s := &TemplateScanner{
		registry: reg,
		engine:   eng,
		config:   cfg,
		logger:   logger.WithComponent("scanner"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.workerPool == nil {
		s.workerPool = NewWorkerPool(min(runtime.NumCPU(), 8), s)
	}
	return s
}

// NewWorkerPool starts workerCount workers scanning with s.
func NewWorkerPool(workerCount int, s *TemplateScanner) *WorkerPool {
	pool := &WorkerPool{
		jobQueue:    make(chan ScanJob, workerCount*2),
		workerCount: workerCount,
		stop:        make(chan struct{}),
	}
	pool.wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go pool.work(s)
	}
	return pool
}

func (p *WorkerPool) work(s *TemplateScanner) {
	defer p.wg.Done()
	for {
		select {
		case job := <-p.jobQueue:
			job.result <- ScanResult{filePath: job.filePath, err: s.scanFile(job.ctx, job.filePath)}
		case <-p.stop:
			return
		}
	}
}

// Stop shuts the workers down and waits for them to exit.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.stop)
	p.mu.Unlock()
	p.wg.Wait()
}

// GetRegistry returns the template registry
func (s *TemplateScanner) GetRegistry() *registry.TemplateRegistry {
	return s.registry
}

// Close stops the worker pool.
func (s *TemplateScanner) Close() error {
	s.workerPool.Stop()
	return nil
}

// ScanAll scans every configured scan path. Missing scan paths are
// skipped with a warning.
func (s *TemplateScanner) ScanAll(ctx context.Context) error {
	var errs []error
	for _, dir := range s.config.Template.ScanPaths {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			s.logger.Warn(ctx, err, "Scan path does not exist", "path", dir)
			continue
		}
		errs = append(errs, s.ScanDirectory(ctx, dir))
	}
	return errors.CombineErrors(errs...)
}

// ScanDirectory scans a directory tree for templates.
func (s *TemplateScanner) ScanDirectory(ctx context.Context, dir string) error {
	if _, err := s.validatePath(dir); err != nil {
		return errors.WrapIO(err, errors.ErrCodeFileNotFound, "invalid directory path")
	}

	op := logging.StartOperation(s.logger, "scan")
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !s.config.IsTemplate(path) {
			return nil
		}
		if _, err := s.validatePath(path); err != nil {
			s.logger.Warn(ctx, err, "Skipping file outside scan root", "path", path)
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		op.EndWithError(ctx, err, "dir", dir)
		return errors.WrapIO(err, errors.ErrCodeInternalError, "cannot walk "+dir)
	}

	err = s.processBatch(ctx, files)
	op.End(ctx, "dir", dir, "files", len(files))
	return err
}

func (s *TemplateScanner) processBatch(ctx context.Context, files []string) error {
	if len(files) == 0 {
		return nil
	}

	// small batches are not worth the channel round trips
	if len(files) <= 5 {
		var errs []error
		for _, file := range files {
			errs = append(errs, s.scanFile(ctx, file))
		}
		return errors.CombineErrors(errs...)
	}

	resultChan := make(chan ScanResult, len(files))
	for _, file := range files {
		job := ScanJob{ctx: ctx, filePath: file, result: resultChan}
		select {
		case s.workerPool.jobQueue <- job:
		case <-s.workerPool.stop:
			resultChan <- ScanResult{filePath: file, err: s.scanFile(ctx, file)}
		case <-ctx.Done():
			resultChan <- ScanResult{filePath: file, err: ctx.Err()}
		}
	}

	var errs []error
	for range files {
		result := <-resultChan
		if result.err != nil {
			errs = append(errs, fmt.Errorf("scanning %s: %w", result.filePath, result.err))
		}
	}
	return errors.CombineErrors(errs...)
}

// ScanFile scans a single template.
func (s *TemplateScanner) ScanFile(ctx context.Context, path string) error {
	return s.scanFile(ctx, path)
}

// Forget removes a deleted template from the registry.
func (s *TemplateScanner) Forget(path string) {
	s.registry.Remove(Name(path))
}

// Name is the registry name of the template at path.
func Name(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}

func (s *TemplateScanner) scanFile(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cleanPath, err := s.validatePath(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return errors.WrapIO(err, errors.ErrCodeFileNotFound, "cannot stat "+cleanPath)
	}
	content, err := os.ReadFile(cleanPath)
	if err != nil {
		return errors.WrapIO(err, errors.ErrCodeFileNotFound, "cannot read "+cleanPath)
	}

	name := Name(cleanPath)
	hash := fmt.Sprintf("%08x", crc32.ChecksumIEEE(content))
	if old, ok := s.registry.Get(name); ok && old.Hash == hash {
		return nil
	}

	tpl := &registry.TemplateInfo{
		Name:     name,
		FilePath: cleanPath,
		Size:     info.Size(),
		LastMod:  info.ModTime(),
		Hash:     hash,
	}

	parsed, err := s.engine.Parse(ctx, name, string(content))
	if err != nil {
		tpl.Err = err
		s.logger.Debug(ctx, "Template failed to parse", "template", name, "error", err.Error())
	} else {
		for _, d := range parsed.Directives() {
			tpl.Directives++
			switch d.Kind {
			case directive.KindConditional:
				tpl.Conditionals++
			case directive.KindVariable:
				tpl.Variables++
			}
		}
		tpl.DataKeys = parsed.DataKeys()
		parsed.Close()
	}

	s.registry.Register(tpl)
	return nil
}

// validatePath cleans path and rejects anything outside the scan root.
func (s *TemplateScanner) validatePath(path string) (string, error) {
	root, err := s.scanRoot()
	if err != nil {
		return "", fmt.Errorf("getting scan root: %w", err)
	}
	return validation.ValidateWithin(root, path)
}

func (s *TemplateScanner) scanRoot() (string, error) {
	s.rootOnce.Do(func() {
		root := s.root
		if root == "" {
			root, s.rootErr = os.Getwd()
			if s.rootErr != nil {
				return
			}
		}
		s.root, s.rootErr = filepath.Abs(root)
	})
	return s.root, s.rootErr
}
