// Command alertcore runs the delivery alerting service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"alertcore/internal/app"
	"alertcore/internal/clock"
	"alertcore/internal/config"
)

// main parses CLI flags and runs the service until shutdown.
// Params: --config-file or --config-dir (exactly one).
// Returns: exit 2 on usage errors, 1 on init or run failure.
func main() {
	configFile := flag.String("config-file", "", "path to a single TOML config file")
	configDir := flag.String("config-dir", "", "path to a directory of TOML config fragments")
	flag.Parse()

	source, err := config.FromCLI(*configFile, *configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		flag.Usage()
		os.Exit(2)
	}

	service, err := app.NewService(source, clock.RealClock{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "service init failed: %v\n", err)
		os.Exit(1)
	}

	if err := service.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "service stopped with error: %v\n", err)
		os.Exit(1)
	}
}
