// Package main provides the strictfetch CLI.
//
// The CLI supports:
//   - compile: Compile CUE model schemas and print the registry
//   - validate: Check CUE model schemas without touching a database
//   - plan: Show the joins, prefetches and SQL of a query
//   - test: Run YAML strict-mode scenarios, optionally against golden files
//
// Configuration is read from strictfetch.yaml (searched upwards from the
// working directory), STRICTFETCH_* environment variables and flags.
//
// Usage:
//
//	strictfetch [flags] <command>
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/strictfetch/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cli.NewRootCommand().ExecuteContext(ctx)

	// Commands report their own ExitErrors; anything else is a flag or
	// config problem not yet shown to the user.
	var exitErr *cli.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	stop()
	os.Exit(cli.GetExitCode(err))
}
