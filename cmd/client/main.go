package main

import (
	"context"
	"fmt"
	"os"

	"github.com/iudanet/shelfsync/internal/client/cli"
	"github.com/iudanet/shelfsync/internal/client/iocli"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	version := fmt.Sprintf("%s (built %s, commit %s)", Version, BuildDate, GitCommit)

	// Логи по умолчанию в stderr, чтобы не смешивать с выводом команд
	c := cli.New(iocli.NewStdio(), os.Stderr, version)
	if err := c.Execute(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
