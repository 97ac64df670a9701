package main

import (
	"context"
	"fmt"
	"os"

	"go.dedis.ch/pre/agent/delegatee"
	"go.dedis.ch/pre/cli"
	"golang.org/x/xerrors"
)

func setReaderCommands(ctx context.Context, builder cli.Builder) {
	cmd := builder.SetCommand("reader")
	cmd.SetDescription("Read the data shared with the encryption key")

	sub := cmd.SetSubCommand("get-data-status")
	sub.SetDescription("Show whether a data can be decrypted, fails otherwise")
	sub.SetArgsUsage("<data-id>")
	sub.SetFlags(envFlags...)
	sub.SetAction(withEnv(ctx, true, readerAction(ctx, func(env *environment, a *delegatee.Agent, flags cli.Flags) error {
		id, err := argument(flags, 0, "data-id")
		if err != nil {
			return err
		}

		status, err := a.IsDataReady(ctx, id)
		if err != nil {
			return err
		}

		if !status.Ready {
			fmt.Fprintf(printer, "Data %s is NOT ready: request is %s with %d/%d fragments\n",
				id, status.State, len(status.Fragments), status.Threshold)

			return xerrors.Errorf("data %s: %w", id, delegatee.ErrDataNotReady)
		}

		fmt.Fprintf(printer, "Data %s is ready\n", id)

		return nil
	})))

	sub = cmd.SetSubCommand("get-data")
	sub.SetDescription("Decrypt a data granted by its owner")
	sub.SetArgsUsage("<data-id> <owner-public-key> [output-file]")
	sub.SetFlags(envFlags...)
	sub.SetFlags(cli.BoolFlag{
		Name:  "rewrite",
		Usage: "overwrite the output file if it exists",
	})
	sub.SetAction(withEnv(ctx, true, readerAction(ctx, func(env *environment, a *delegatee.Agent, flags cli.Flags) error {
		id, err := argument(flags, 0, "data-id")
		if err != nil {
			return err
		}

		value, err := argument(flags, 1, "owner-public-key")
		if err != nil {
			return err
		}

		owner, err := env.publicKey(value)
		if err != nil {
			return err
		}

		output := id
		if len(flags.Args()) > 2 {
			output = flags.Args()[2]
		}

		_, err = os.Stat(output)
		if err == nil && !flags.Bool("rewrite") {
			return xerrors.Errorf("file %s exists, use --rewrite to overwrite it", output)
		}

		data, err := a.ReadData(ctx, id, owner)
		if err != nil {
			return err
		}

		err = os.WriteFile(output, data, 0600)
		if err != nil {
			return xerrors.Errorf("failed to write data: %v", err)
		}

		fmt.Fprintf(printer, "Data %s decrypted to %s\n", id, output)

		return nil
	})))
}

func readerAction(ctx context.Context,
	fn func(*environment, *delegatee.Agent, cli.Flags) error) func(*environment, cli.Flags) error {

	return func(env *environment, flags cli.Flags) error {
		key, err := env.encryptionKey()
		if err != nil {
			return err
		}

		c, err := env.client(ctx)
		if err != nil {
			return err
		}

		agent, err := delegatee.NewAgent(delegatee.Config{
			Key:      key,
			Contract: c,
			Storage:  env.storage,
			Engine:   env.engine,
		})
		if err != nil {
			return err
		}

		return fn(env, agent, flags)
	}
}
