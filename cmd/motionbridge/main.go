package main

import (
	"os"

	"github.com/mkessler-io/motionbridge/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
