package main

import (
	"fmt"
	"os"

	"github.com/lakshaymaurya-felt/winreclaim/cmd"
)

// Set by -ldflags at release time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, date)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "wr:", err)
		os.Exit(cmd.ExitCode(err))
	}
}
