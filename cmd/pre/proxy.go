package main

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.dedis.ch/pre"
	"go.dedis.ch/pre/agent/proxy"
	"go.dedis.ch/pre/cli"
	"go.dedis.ch/pre/worker"
	"golang.org/x/xerrors"
)

func setProxyCommands(ctx context.Context, builder cli.Builder) {
	cmd := builder.SetCommand("proxy")
	cmd.SetDescription("Run a re-encryption proxy")

	sub := cmd.SetSubCommand("register")
	sub.SetDescription("Register the proxy with the minimum stake")
	sub.SetFlags(envFlags...)
	sub.SetAction(withEnv(ctx, false, proxyAction(ctx, func(a *proxy.Agent, flags cli.Flags) error {
		stake, err := a.Register(ctx)
		if err != nil {
			return err
		}

		if stake == nil {
			fmt.Fprintf(printer, "Proxy %s is registered\n", a.Address())
		} else {
			fmt.Fprintf(printer, "Proxy %s registered with a stake of %s\n", a.Address(), stake)
		}

		return nil
	})))

	sub = cmd.SetSubCommand("unregister")
	sub.SetDescription("Leave the contract and withdraw the stake")
	sub.SetFlags(envFlags...)
	sub.SetFlags(cli.BoolFlag{
		Name:  "deactivate-only",
		Usage: "only stop receiving new tasks and keep the stake in the contract",
	})
	sub.SetAction(withEnv(ctx, false, proxyAction(ctx, func(a *proxy.Agent, flags cli.Flags) error {
		err := a.Unregister(ctx, flags.Bool("deactivate-only"))
		if err != nil {
			return err
		}

		fmt.Fprintf(printer, "Proxy %s unregistered\n", a.Address())

		return nil
	})))

	sub = cmd.SetSubCommand("deactivate")
	sub.SetDescription("Stop receiving new tasks")
	sub.SetFlags(envFlags...)
	sub.SetAction(withEnv(ctx, false, proxyAction(ctx, func(a *proxy.Agent, flags cli.Flags) error {
		err := a.Deactivate(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintf(printer, "Proxy %s deactivated\n", a.Address())

		return nil
	})))

	sub = cmd.SetSubCommand("reactivate")
	sub.SetDescription("Receive new tasks again")
	sub.SetFlags(envFlags...)
	sub.SetAction(withEnv(ctx, false, proxyAction(ctx, func(a *proxy.Agent, flags cli.Flags) error {
		err := a.Reactivate(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintf(printer, "Proxy %s reactivated\n", a.Address())

		return nil
	})))

	sub = cmd.SetSubCommand("withdraw-stake")
	sub.SetDescription("Withdraw the stake above the minimum")
	sub.SetFlags(envFlags...)
	sub.SetFlags(cli.Uint64Flag{
		Name:  "amount",
		Usage: "amount to withdraw, everything available by default",
	})
	sub.SetAction(withEnv(ctx, false, proxyAction(ctx, func(a *proxy.Agent, flags cli.Flags) error {
		var amount *uint64

		value := flags.Uint64("amount")
		if value > 0 {
			amount = &value
		}

		err := a.WithdrawStake(ctx, amount)
		if err != nil {
			return err
		}

		fmt.Fprintf(printer, "Stake of %s withdrawn\n", a.Address())

		return nil
	})))

	sub = cmd.SetSubCommand("add-stake")
	sub.SetDescription("Increase the stake of the proxy")
	sub.SetFlags(envFlags...)
	sub.SetFlags(cli.Uint64Flag{
		Name:     "amount",
		Usage:    "amount to add to the stake",
		Required: true,
	})
	sub.SetAction(withEnv(ctx, false, proxyAction(ctx, func(a *proxy.Agent, flags cli.Flags) error {
		err := a.AddStake(ctx, flags.Uint64("amount"))
		if err != nil {
			return err
		}

		fmt.Fprintf(printer, "Stake of %s increased\n", a.Address())

		return nil
	})))

	sub = cmd.SetSubCommand("status")
	sub.SetDescription("Show the state and the stake of the proxy")
	sub.SetFlags(envFlags...)
	sub.SetAction(withEnv(ctx, false, proxyAction(ctx, func(a *proxy.Agent, flags cli.Flags) error {
		status, err := a.Status(ctx)
		if err != nil {
			return err
		}

		if status == nil {
			fmt.Fprintf(printer, "Proxy %s is unknown\n", a.Address())
			return nil
		}

		fmt.Fprintf(printer, "Proxy %s is %s with a stake of %d (%d withdrawable)\n",
			a.Address(), status.State, status.StakeAmount, status.WithdrawableStakeAmount)

		return nil
	})))

	sub = cmd.SetSubCommand("run")
	sub.SetDescription("Register the proxy and process its tasks until interrupted")
	sub.SetFlags(envFlags...)
	sub.SetFlags(
		cli.BoolFlag{
			Name:  "once",
			Usage: "stop after the first iteration",
		},
		cli.DurationFlag{
			Name:  "poll-interval",
			Usage: "time between two queries of the tasks, the configuration by default",
		},
		cli.BoolFlag{
			Name:  "auto-withdraw",
			Usage: "withdraw the stake above the minimum periodically",
		},
		cli.BoolFlag{
			Name:  "deactivate-only",
			Usage: "keep the proxy and its stake in the contract when stopping",
		},
		cli.StringFlag{
			Name:  "metrics-addr",
			Usage: "address to serve the Prometheus metrics, disabled by default",
		},
	)
	sub.SetAction(withEnv(ctx, false, runProxy(ctx)))
}

func runProxy(ctx context.Context) func(*environment, cli.Flags) error {
	return func(env *environment, flags cli.Flags) error {
		agent, err := newProxy(ctx, env)
		if err != nil {
			return err
		}

		cfg := worker.Config{
			PollInterval:     env.cfg.Proxy.PollInterval,
			WithdrawInterval: env.cfg.Proxy.WithdrawInterval,
			AutoWithdraw:     env.cfg.Proxy.AutoWithdraw || flags.Bool("auto-withdraw"),
			DeactivateOnly:   env.cfg.Proxy.DeactivateOnly || flags.Bool("deactivate-only"),
			RunOnce:          flags.Bool("once"),
		}

		interval := flags.Duration("poll-interval")
		if interval > 0 {
			cfg.PollInterval = interval
		}

		var opts []worker.Option
		if env.cfg.Fund {
			opts = append(opts, worker.WithFunder(func(ctx context.Context) error {
				return env.fund(ctx, agent.Address())
			}))
		}

		addr := flags.String("metrics-addr")
		if addr != "" {
			stop, err := serveMetrics(addr)
			if err != nil {
				return err
			}

			defer stop()
		}

		fmt.Fprintf(printer, "Proxy %s running\n", agent.Address())

		return worker.NewWorker(agent, cfg, opts...).Run(ctx)
	}
}

// serveMetrics exposes the collectors of the module on the address and
// returns the function to stop the server.
func serveMetrics(addr string) (func(), error) {
	reg := prometheus.NewRegistry()

	for _, c := range pre.PromCollectors {
		err := reg.Register(c)
		if err != nil {
			return nil, xerrors.Errorf("failed to register collector: %v", err)
		}
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, xerrors.Errorf("failed to listen on %s: %v", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Handler: mux}

	go func() {
		err := srv.Serve(ln)
		if err != nil && err != http.ErrServerClosed {
			pre.Logger.Warn().Err(err).Msg("metrics server failed")
		}
	}()

	pre.Logger.Info().Str("addr", ln.Addr().String()).Msg("serving metrics")

	return func() { srv.Close() }, nil
}

func proxyAction(ctx context.Context, fn func(*proxy.Agent, cli.Flags) error) func(*environment, cli.Flags) error {
	return func(env *environment, flags cli.Flags) error {
		agent, err := newProxy(ctx, env)
		if err != nil {
			return err
		}

		return fn(agent, flags)
	}
}

func newProxy(ctx context.Context, env *environment) (*proxy.Agent, error) {
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

	return proxy.NewAgent(proxy.Config{
		Signer:   signer,
		Key:      key,
		Contract: c,
		Engine:   env.engine,
	})
}
