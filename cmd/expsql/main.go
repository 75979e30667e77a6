package main

import (
	"os"

	"github.com/leapstack-labs/expsql/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
