package main

import (
	"os"

	"github.com/majorcontext/berm/cmd/berm/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
