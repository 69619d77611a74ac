// Package main provides the studio CLI.
//
// Usage:
//
//	studio [flags] <command> [args]
//
// Commands:
//
//	ctx      - Manage contexts (credentials, models, media backend)
//	run      - Run one assistant turn in a session
//	improve  - Rewrite a prompt to be more detailed
//	session  - Manage stored conversations
//	media    - Fetch or delete generated media
//	serve    - Serve the assistant over websocket
//	version  - Show version information
//
// Configuration:
//
//	The CLI stores configuration in ~/.studio/studio/
//	Use 'studio ctx' commands to manage contexts.
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/studio/cmd/studio/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
