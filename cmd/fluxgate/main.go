package main

import (
	"os"

	"github.com/viant/fluxgate/internal/cmd"
)

func main() {
	if err := cmd.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
