package main

import (
	"os"

	"github.com/conneroisu/ropetpl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
