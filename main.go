package main

import (
	"os"

	"github.com/wirewarden/wirewarden/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
