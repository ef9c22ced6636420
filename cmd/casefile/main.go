package main

import (
	"os"

	"github.com/osinto/casefile/cmd/casefile/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
