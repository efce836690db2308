package main

import (
	"os"

	"taskforge/cmd/taskforge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
