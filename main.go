package main

import (
	"os"

	"github.com/aethermart/dataplane/cli"
)

func main() {
	cmd := cli.RootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
