package main

import (
	"os"

	"github.com/vkngwrapper/inflight/cmd/inflight/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
