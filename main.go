package main

import (
	"os"

	"github.com/tdalverme/umbral/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
