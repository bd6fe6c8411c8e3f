// Package main is the entry point for the reviewchain CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/reviewchain/reviewchain/internal/cli"
)

// Set with -ldflags "-X main.version=... -X main.commit=... -X main.date=...".
//
//nolint:gochecknoglobals // link-time build metadata
var (
	version string
	commit  string
	date    string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cli.SetBuildInfo(cli.BuildInfo{Version: version, Commit: commit, Date: date})
	err := cli.Execute(ctx)
	stop()
	if err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
