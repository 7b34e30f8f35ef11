// Package internal contains the implementation packages for ropetpl.
//
// # Package Organization
//
//   - rope: arena-backed document of string views with generation-checked handles
//   - directive: directive registry, per-document table and the if/elif/else and
//     variable directives
//   - engine: parses sources into templates and renders them against data
//   - tree: YAML data trees with merge and path lookup
//   - config: viper-backed configuration with validation and suggestions
//   - validation: path and extension checks for configured files
//   - errors: coded errors carrying template positions and fix suggestions
//   - logging: slog-based structured logging
//   - output: writes rendered text, optionally converted from Markdown
//   - registry: discovered templates and the data keys they read
//   - scanner: walks scan paths and parses templates with a worker pool
//   - watcher: fsnotify watching with debouncing and filters
//   - version: build information
//
// # Data Flow
//
// The scanner feeds the registry, the watcher feeds the scanner, and the
// engine sits underneath both: it builds a rope document per template,
// parses directives into a table over that document and renders by
// splicing each directive's result into its span.
package internal
