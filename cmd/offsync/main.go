package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/iudanet/offsync/internal/client/cli"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	cli.Version, cli.BuildDate, cli.GitCommit = Version, BuildDate, GitCommit

	// Ctrl+C останавливает proxy и run
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
