// logview loads log files, merges them by timestamp and reports filtered
// views, level analytics and recurring error patterns. The watch command
// keeps the files loaded and reloads them as they change.
package main

import (
	"fmt"
	"os"
)

// version is set via ldflags at build time
var version = "0.1.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
