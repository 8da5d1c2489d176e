package main

import (
	"os"

	"github.com/deudat/deudat/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
