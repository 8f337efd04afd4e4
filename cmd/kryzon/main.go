// Command kryzon runs and reconciles CTF challenge instances.
package main

import (
	"os"

	"github.com/jmgilman/kryzon/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
