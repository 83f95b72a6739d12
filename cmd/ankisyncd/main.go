// Command ankisyncd runs a personal Anki sync server.
package main

import (
	"fmt"
	"os"

	"github.com/ankisyncd/ankisyncd-go/cmd/ankisyncd/commands"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
