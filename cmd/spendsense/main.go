package main

import (
	"fmt"
	"os"

	"github.com/spendsense/operator-console/internal/commands"
)

// Version is set at build time via -ldflags "-X main.Version=X.Y.Z"
var Version = "0.0.0-dev"

func main() {
	if err := commands.NewRootCmd(Version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
