package main

import (
	"context"
	"fmt"
	"os"

	"go.dedis.ch/pre/agent/delegator"
	"go.dedis.ch/pre/cli"
	"golang.org/x/xerrors"
)

const defaultMaxProxies = 10

func setOwnerCommands(ctx context.Context, builder cli.Builder) {
	cmd := builder.SetCommand("owner")
	cmd.SetDescription("Store data and grant access to readers")

	sub := cmd.SetSubCommand("add-data")
	sub.SetDescription("Encrypt a file and register it in the contract")
	sub.SetArgsUsage("<data-file>")
	sub.SetFlags(envFlags...)
	sub.SetAction(withEnv(ctx, true, ownerAction(ctx, func(env *environment, a *delegator.Agent, flags cli.Flags) error {
		path, err := argument(flags, 0, "data-file")
		if err != nil {
			return err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return xerrors.Errorf("failed to read data: %v", err)
		}

		id, err := a.AddData(ctx, data)
		if err != nil {
			return err
		}

		fmt.Fprintf(printer, "Data id: %s\n", id)

		return nil
	})))

	sub = cmd.SetSubCommand("grant-access")
	sub.SetDescription("Request the re-encryption of a data for a reader")
	sub.SetArgsUsage("<data-id> <reader-public-key>")
	sub.SetFlags(envFlags...)
	sub.SetFlags(
		cli.IntFlag{
			Name:  "max-proxies",
			Usage: "maximum number of proxies involved in the delegation",
			Value: defaultMaxProxies,
		},
		cli.IntFlag{
			Name:  "threshold",
			Usage: "number of fragments, the one of the configuration by default",
		},
	)
	sub.SetAction(withEnv(ctx, true, ownerAction(ctx, func(env *environment, a *delegator.Agent, flags cli.Flags) error {
		id, err := argument(flags, 0, "data-id")
		if err != nil {
			return err
		}

		value, err := argument(flags, 1, "reader-public-key")
		if err != nil {
			return err
		}

		reader, err := env.publicKey(value)
		if err != nil {
			return err
		}

		threshold := flags.Int("threshold")
		if threshold == 0 {
			threshold = int(env.cfg.Threshold)
		}

		err = a.GrantAccess(ctx, id, reader, threshold, flags.Int("max-proxies"))
		if err != nil {
			return err
		}

		fmt.Fprintf(printer, "Access to %s granted to %s\n", id, value)

		return nil
	})))

	sub = cmd.SetSubCommand("remove-data")
	sub.SetDescription("Remove a data from the contract")
	sub.SetArgsUsage("<data-id>")
	sub.SetFlags(envFlags...)
	sub.SetAction(withEnv(ctx, true, ownerAction(ctx, func(env *environment, a *delegator.Agent, flags cli.Flags) error {
		id, err := argument(flags, 0, "data-id")
		if err != nil {
			return err
		}

		err = a.RemoveData(ctx, id)
		if err != nil {
			return err
		}

		fmt.Fprintf(printer, "Data %s removed\n", id)

		return nil
	})))
}

func ownerAction(ctx context.Context,
	fn func(*environment, *delegator.Agent, cli.Flags) error) func(*environment, cli.Flags) error {

	return func(env *environment, flags cli.Flags) error {
		agent, err := newDelegator(ctx, env)
		if err != nil {
			return err
		}

		return fn(env, agent, flags)
	}
}

func newDelegator(ctx context.Context, env *environment) (*delegator.Agent, error) {
	signer, err := env.wallet(ctx)
	if err != nil {
		return nil, err
	}

	key, err := env.encryptionKey()
	if err != nil {
		return nil, err
	}

	c, err := env.client(ctx)
	if err != nil {
		return nil, err
	}

	return delegator.NewAgent(delegator.Config{
		Signer:   signer,
		Key:      key,
		Contract: c,
		Storage:  env.storage,
		Engine:   env.engine,
	})
}
