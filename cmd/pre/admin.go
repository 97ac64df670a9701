package main

import (
	"context"
	"fmt"

	"go.dedis.ch/pre/agent/admin"
	"go.dedis.ch/pre/cli"
	"go.dedis.ch/pre/contract"
	"go.dedis.ch/pre/ledger"
	"golang.org/x/xerrors"
)

func setAdminCommands(ctx context.Context, builder cli.Builder) {
	cmd := builder.SetCommand("admin")
	cmd.SetDescription("Administrate a contract")

	sub := cmd.SetSubCommand("instantiate-contract")
	sub.SetDescription("Deploy a new contract administered by the wallet")
	sub.SetFlags(envFlags...)
	sub.SetFlags(
		cli.StringFlag{
			Name:  "admin-address",
			Usage: "administrator of the contract, the wallet by default",
		},
		cli.IntFlag{
			Name:  "threshold",
			Usage: "number of fragments required to read a data",
			Value: 1,
		},
		cli.StringSliceFlag{
			Name:  "proxies",
			Usage: "addresses of the proxies authorised from the start",
		},
		cli.BoolFlag{
			Name:  "proxy-whitelisting",
			Usage: "only accept the proxies added by the administrator",
		},
		cli.StringFlag{
			Name:  "stake-denom",
			Usage: "denomination of the stakes, the one of the faucet by default",
		},
		cli.Uint64Flag{
			Name:  "minimum-proxy-stake",
			Usage: "stake required to register a proxy",
		},
		cli.Uint64Flag{
			Name:  "per-proxy-task-reward",
			Usage: "reward of a proxy for a fragment",
		},
		cli.Uint64Flag{
			Name:  "per-task-slash-stake",
			Usage: "stake locked per task of a proxy",
		},
		cli.Uint64Flag{
			Name:  "timeout-height",
			Usage: "number of blocks before a request times out",
		},
		cli.Uint64Flag{
			Name:  "withdrawal-period",
			Usage: "number of blocks before a terminated contract can be withdrawn",
		},
	)
	sub.SetAction(withEnv(ctx, false, instantiateContract(ctx)))

	sub = cmd.SetSubCommand("add-proxy")
	sub.SetDescription("Authorise an address to register as a proxy")
	sub.SetArgsUsage("<proxy-address>")
	sub.SetFlags(envFlags...)
	sub.SetAction(withEnv(ctx, false, adminAction(ctx, func(a *admin.Agent, flags cli.Flags) error {
		addr, err := proxyAddress(flags)
		if err != nil {
			return err
		}

		err = a.AddProxy(ctx, addr)
		if err != nil {
			return err
		}

		fmt.Fprintf(printer, "Proxy %s added\n", addr)

		return nil
	})))

	sub = cmd.SetSubCommand("remove-proxy")
	sub.SetDescription("Remove a proxy and send back its stake")
	sub.SetArgsUsage("<proxy-address>")
	sub.SetFlags(envFlags...)
	sub.SetAction(withEnv(ctx, false, adminAction(ctx, func(a *admin.Agent, flags cli.Flags) error {
		addr, err := proxyAddress(flags)
		if err != nil {
			return err
		}

		err = a.RemoveProxy(ctx, addr)
		if err != nil {
			return err
		}

		fmt.Fprintf(printer, "Proxy %s removed\n", addr)

		return nil
	})))

	sub = cmd.SetSubCommand("terminate-contract")
	sub.SetDescription("Stop the contract from accepting new requests")
	sub.SetFlags(envFlags...)
	sub.SetAction(withEnv(ctx, false, adminAction(ctx, func(a *admin.Agent, flags cli.Flags) error {
		err := a.TerminateContract(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintln(printer, "Contract terminated")

		return nil
	})))

	sub = cmd.SetSubCommand("withdraw-contract")
	sub.SetDescription("Withdraw the balance of a terminated contract")
	sub.SetArgsUsage("<recipient-address>")
	sub.SetFlags(envFlags...)
	sub.SetAction(withEnv(ctx, false, adminAction(ctx, func(a *admin.Agent, flags cli.Flags) error {
		recipient, err := argument(flags, 0, "recipient-address")
		if err != nil {
			return err
		}

		err = ledger.ValidateAddress(recipient)
		if err != nil {
			return xerrors.Errorf("invalid recipient address: %v", err)
		}

		err = a.WithdrawContract(ctx, recipient)
		if err != nil {
			return err
		}

		fmt.Fprintf(printer, "Contract withdrawn to %s\n", recipient)

		return nil
	})))
}

func instantiateContract(ctx context.Context) func(*environment, cli.Flags) error {
	return func(env *environment, flags cli.Flags) error {
		threshold := flags.Int("threshold")
		if threshold <= 0 {
			return xerrors.Errorf("threshold must be positive: %d", threshold)
		}

		signer, err := env.wallet(ctx)
		if err != nil {
			return err
		}

		params := contract.InstantiateParams{
			Admin:                    flags.String("admin-address"),
			Threshold:                uint32(threshold),
			ProxyWhitelisting:        flags.Bool("proxy-whitelisting"),
			Proxies:                  flags.StringSlice("proxies"),
			StakeDenom:               flags.String("stake-denom"),
			MinimumProxyStakeAmount:  flags.Uint64("minimum-proxy-stake"),
			PerProxyTaskRewardAmount: flags.Uint64("per-proxy-task-reward"),
			PerTaskSlashStakeAmount:  flags.Uint64("per-task-slash-stake"),
			TimeoutHeight:            flags.Uint64("timeout-height"),
			WithdrawalPeriod:         flags.Uint64("withdrawal-period"),
		}

		if params.StakeDenom == "" {
			params.StakeDenom = env.cfg.Ledger.Faucet.Denom
		}

		if params.Admin != "" {
			err = env.ledger.ValidateAddress(params.Admin)
			if err != nil {
				return xerrors.Errorf("invalid admin address: %v", err)
			}
		}

		_, c, err := admin.InstantiateContract(ctx, env.ledger, signer, params)
		if err != nil {
			return err
		}

		fmt.Fprintf(printer, "Contract address: %s\n", c.Address())

		return nil
	}
}

func adminAction(ctx context.Context, fn func(*admin.Agent, cli.Flags) error) func(*environment, cli.Flags) error {
	return func(env *environment, flags cli.Flags) error {
		signer, err := env.wallet(ctx)
		if err != nil {
			return err
		}

		c, err := env.client(ctx)
		if err != nil {
			return err
		}

		return fn(admin.NewAgent(signer, c), flags)
	}
}

func proxyAddress(flags cli.Flags) (string, error) {
	addr, err := argument(flags, 0, "proxy-address")
	if err != nil {
		return "", err
	}

	err = ledger.ValidateAddress(addr)
	if err != nil {
		return "", xerrors.Errorf("invalid proxy address: %v", err)
	}

	return addr, nil
}
