package main

import (
	"os"

	"github.com/skillcheck-dev/skillcheck/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
