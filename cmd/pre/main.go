// Package main implements the command-line tool of the roles of the threshold
// proxy re-encryption: the administrator of the contract, the owners of data,
// the proxies and the readers.
//
// Every command opens the local ledger described by the configuration, so a
// single command can run at a time on the same database. The owners and the
// readers also open the blob store.
//
// 	pre keys generate --ledger owner.key --encryption owner.enc
// 	pre admin instantiate-contract --config config.yaml --fund
// 	pre owner add-data --config config.yaml data.txt
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.dedis.ch/pre/cli/ucli"
)

var printer io.Writer = os.Stdout

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := run(ctx, os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	builder := ucli.NewBuilder("pre", nil)
	builder.SetUsage("threshold proxy re-encryption of data on a ledger")

	setKeysCommands(builder)
	setAdminCommands(ctx, builder)
	setOwnerCommands(ctx, builder)
	setProxyCommands(ctx, builder)
	setReaderCommands(ctx, builder)

	app := builder.Build()

	err := app.Run(args)
	if err != nil {
		return err
	}

	return nil
}
