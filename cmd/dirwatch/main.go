// Package main provides the entry point for the dirwatch CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/dirwatch/cmd/dirwatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
