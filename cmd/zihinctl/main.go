// Command zihinctl is the operator CLI: seed the technique index, run
// one-off analyses and inspect technique advice and user history.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
