package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Snapshot diff operation failed: %v\n", err)
		fmt.Fprintln(os.Stderr, "Please check the log file in the result directory for details")
		os.Exit(1)
	}
}
