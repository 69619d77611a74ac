// Package cli provides the command-line plumbing for the studio tool.
//
// This package includes:
//   - Configuration management with named contexts, similar to kubectl
//   - Output formatting (JSON, YAML, raw) with optional jq queries
//   - Turn file loading (YAML/JSON)
//   - Terminal rendering of conversation records
//
// Configuration is stored in ~/.studio/<app>/config.yaml. Each context
// carries its own credentials, model overrides and media backend, and keeps
// its sessions under ~/.studio/<app>/data/<context>.
//
// Example usage:
//
//	cfg, err := cli.LoadConfig("studio")
//	ctx, err := cfg.ResolveContext("")
//
//	cli.Output(sessions, cli.OutputOptions{
//	    Format: cli.FormatJSON,
//	    Query:  ".[].title",
//	})
package cli
