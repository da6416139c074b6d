// Package main is the entry point for hisabctl.
package main

import (
	"os"

	"hisab/cmd/hisabctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
