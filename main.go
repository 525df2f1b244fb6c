package main

import (
	"os"

	"github.com/chart-proxy/internal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
