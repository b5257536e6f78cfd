package main

import (
	"os"

	"github.com/g3labs/planner/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
