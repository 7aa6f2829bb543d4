// favmirror TUI - terminal console for a running favmirror server.
package main

import (
	"fmt"
	"os"

	"github.com/iconidentify/favmirror/cmd/favmirror-tui/internal/config"
	"github.com/iconidentify/favmirror/cmd/favmirror-tui/internal/ui"
)

func main() {
	cfg := config.Load()

	app, err := ui.NewApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing TUI: %v\n", err)
		os.Exit(1)
	}

	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}
