// Package cmd provides the command-line interface for ropetpl.
//
// This package implements all CLI commands using the Cobra framework.
//
// # Available Commands
//
//   - render: Render one template against YAML or JSON data
//   - check: Parse every template and report syntax errors with hints
//   - list: List discovered templates with their directive counts
//   - inspect: Show the directive tree of a single template
//   - watch: Re-render templates whenever they or their data change
//   - config: Show or validate the effective configuration
//   - version: Show build information
//
// # Command Examples
//
//	// Render a page to standard output
//	ropetpl render templates/page.html.tpl --data data/site.yml
//
//	// Render Markdown and convert it to HTML
//	ropetpl render README.md.tpl --data site.yml --markdown -o README.html
//
//	// Check every template under the scan paths
//	ropetpl check
//
//	// Inspect a template as YAML
//	ropetpl inspect templates/page.html.tpl --format yaml
//
//	// Keep dist/ up to date
//	ropetpl watch --out-dir dist
//
// # Configuration Integration
//
// Commands respect configuration from multiple sources in order of precedence:
//
//  1. Command-line flags (highest priority)
//  2. Environment variables (ROPETPL_*)
//  3. Configuration file (.ropetpl.yml)
//  4. Default values (lowest priority)
//
// # Error Handling
//
// Template errors are reported with file, line and column, followed by
// suggestions for fixing them.
package cmd
