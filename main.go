package main

import (
	"os"

	"github.com/querydesk/querydesk-cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
