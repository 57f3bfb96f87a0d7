// Package main provides a CLI for checking scenario consistency.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/louisbranch/storyweave/internal/platform/config"

	checkcmd "github.com/louisbranch/storyweave/internal/cmd/check"
)

func main() {
	cfg, err := checkcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := checkcmd.Run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, checkcmd.ErrFindings) {
			os.Exit(1)
		}
		config.Exitf("Error: %v", err)
	}
}
