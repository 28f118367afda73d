package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/badalhalder99/vital/internal/cli"
	"github.com/badalhalder99/vital/internal/config"
)

const quickStart = `vital - returning guest detection without accounts

Quick start:
  vital fingerprint                     Show the device fingerprint
  vital visit --page /pricing           Record a page load
  vital click -x 120 -y 40              Record a click
  vital show --where clicks>=3          Inspect the guest and past visits
  vital serve                           Run the guest visit collector

For help:
  vital --help                          All commands and flags
  vital schema                          JSON Schemas for ndjson output
`

func main() {
	// Show quick start if no args provided
	if len(os.Args) == 1 {
		fmt.Print(quickStart)
		return
	}

	// Load configuration from files/environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		cfg = config.Default()
	}

	var c cli.CLI

	// Config values become flag defaults; explicit flags still win
	ctx := kong.Parse(&c,
		kong.Name("vital"),
		kong.Description("vital: identify returning guests and bucket their activity into visits"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		cli.KongVars(cfg),
	)

	globals := cli.NewGlobalsWithConfig(&c, cfg)
	if err := ctx.Run(globals); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
