// Package main is the CLI command itself.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/pam-robotics/vicontransformer/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.RunContext(ctx, os.Args); err != nil {
		//nolint:errcheck
		fmt.Fprintln(app.ErrWriter, err)
		stop()
		os.Exit(1)
	}
}
