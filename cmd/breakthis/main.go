package main

import (
	"fmt"
	"os"

	"github.com/soyeahso/breakthis/internal/cli"
	"github.com/tillberg/autorestart"
)

func main() {
	// Restart on rebuilt binary during development.
	if os.Getenv("BREAKTHIS_AUTORESTART") != "" {
		go autorestart.RestartOnChange()
	}

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "breakthis:", err)
		os.Exit(1)
	}
}
