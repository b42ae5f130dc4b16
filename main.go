// Package main is the entry point for the trafficslice alert query service.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"trafficslice/bootstrap"
	"trafficslice/cmd"
)

// configPathEnv names the variable that points the server at a config file
const configPathEnv = "TRAFFICSLICE_CONFIG"

// run initializes and starts the HTTP server, blocking until shutdown.
func run(configPath string) error {
	ctx := context.Background()

	app, err := bootstrap.NewApp(ctx, configPath)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	if err := app.Start(ctx); err != nil {
		app.Shutdown()
		return fmt.Errorf("failed to start application: %w", err)
	}

	app.WaitForShutdown(ctx)
	app.Shutdown()

	var errs []error
	for name, err := range app.Errors() {
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
	}
	return errors.Join(errs...)
}

// cliArgs reports whether args invoke the query CLI and, if so, returns
// the arguments that follow the command name.
func cliArgs(args []string) ([]string, bool) {
	if len(args) > 1 && args[1] == "query" {
		return args[2:], true
	}
	return nil, false
}

func main() {
	if rest, ok := cliArgs(os.Args); ok {
		queryCmd := cmd.NewQueryCmd()
		queryCmd.SetArgs(rest)
		if err := queryCmd.Execute(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(os.Getenv(configPathEnv)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
