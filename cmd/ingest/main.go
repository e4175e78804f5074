package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
)

type cli struct {
	Backend  string `help:"Override the idempotency backend (dynamodb, sql, redis, memory)."`
	Table    string `help:"Override the idempotency table; empty keeps the environment value."`
	LogLevel string `name:"log-level" help:"Override LOG_LEVEL."`

	Invoke   invokeCmd   `cmd:"" help:"Run one event file through the handler."`
	ClaimKey claimKeyCmd `cmd:"" name:"claim-key" help:"Print the claim key for an object."`
	Purge    purgeCmd    `cmd:"" help:"Delete expired claims from the SQL backend."`
}

type globals struct {
	ctx    context.Context
	stdout io.Writer
	stderr io.Writer
	cli    *cli
}

func main() {
	var args cli
	parser := kong.Parse(&args,
		kong.Name("ingest"),
		kong.Description("Local runner for the event ingestion handler."),
		kong.UsageOnError(),
	)
	err := parser.Run(&globals{
		ctx:    context.Background(),
		stdout: os.Stdout,
		stderr: os.Stderr,
		cli:    &args,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ingest: %v\n", err)
		os.Exit(1)
	}
}
