package main

import (
	"fmt"
	"os"

	"github.com/tphakala/birdnet-display/cmd"
	"github.com/tphakala/birdnet-display/internal/buildinfo"
	"github.com/tphakala/birdnet-display/internal/conf"
)

// Set at build time with -ldflags "-X main.version=... -X main.buildDate=..."
var (
	version   = "dev"
	buildDate = ""
)

func main() {
	info := buildinfo.NewContext(version, buildDate)
	settings := &conf.Settings{}

	rootCmd := cmd.RootCommand(settings, info)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
