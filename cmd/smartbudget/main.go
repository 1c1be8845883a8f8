package main

import (
	"os"

	"github.com/aaron777collins/smartbudget-sub003/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
