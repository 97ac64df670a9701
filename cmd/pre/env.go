package main

import (
	"context"
	"encoding/hex"

	"github.com/hashicorp/go-multierror"
	"go.dedis.ch/pre/cli"
	"go.dedis.ch/pre/config"
	"go.dedis.ch/pre/contract"
	"go.dedis.ch/pre/contract/client"
	"go.dedis.ch/pre/contract/native"
	"go.dedis.ch/pre/core/store/kv"
	"go.dedis.ch/pre/crypto"
	"go.dedis.ch/pre/crypto/loader"
	"go.dedis.ch/pre/crypto/umbral"
	"go.dedis.ch/pre/ledger"
	"go.dedis.ch/pre/ledger/local"
	"go.dedis.ch/pre/storage/blob"
	"golang.org/x/xerrors"
)

// envFlags are the flags accepted by every command that reaches the ledger.
// They override the values of the configuration file.
var envFlags = []cli.Flag{
	cli.StringFlag{
		Name:   "config",
		Usage:  "path to the YAML configuration",
		EnvVar: "PRE_CONFIG",
	},
	cli.StringFlag{
		Name:   "contract-address",
		Usage:  "address of the contract",
		EnvVar: "PRE_CONTRACT_ADDRESS",
	},
	cli.StringFlag{
		Name:  "ledger-private-key",
		Usage: "path to the key of the wallet, created if it does not exist",
	},
	cli.StringFlag{
		Name:  "encryption-private-key",
		Usage: "path to the encryption key",
	},
	cli.BoolFlag{
		Name:  "fund",
		Usage: "top up the wallet from the faucet",
	},
}

func loadConfig(flags cli.Flags) (config.Config, error) {
	cfg := config.Default()

	path := flags.String("config")
	if path != "" {
		var err error

		cfg, err = config.Load(path)
		if err != nil {
			return cfg, err
		}
	}

	override(&cfg.ContractAddress, flags.String("contract-address"))
	override(&cfg.LedgerPrivateKey, flags.String("ledger-private-key"))
	override(&cfg.EncryptionPrivateKey, flags.String("encryption-private-key"))

	if flags.Bool("fund") {
		cfg.Fund = true
	}

	err := cfg.Validate()
	if err != nil {
		return cfg, xerrors.Errorf("invalid configuration: %v", err)
	}

	return cfg, nil
}

func override(value *string, flag string) {
	if flag != "" {
		*value = flag
	}
}

// environment holds the components opened for a command.
type environment struct {
	cfg     config.Config
	db      kv.DB
	ledger  *local.Ledger
	storage *blob.Store
	engine  crypto.Engine
}

// openEnv opens the ledger described by the flags, and the blob store when
// requested.
func openEnv(ctx context.Context, flags cli.Flags, withStorage bool) (*environment, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	db, err := kv.New(cfg.Ledger.Path)
	if err != nil {
		return nil, xerrors.Errorf("failed to open ledger db: %v", err)
	}

	faucet := local.Faucet{
		Denom:   cfg.Ledger.Faucet.Denom,
		Amount:  cfg.Ledger.Faucet.Amount,
		Minimum: cfg.Ledger.Faucet.Minimum,
	}

	l, err := local.NewLedger(db,
		local.WithContract(contract.Code, native.NewContract()),
		local.WithFaucet(faucet))
	if err != nil {
		db.Close()
		return nil, xerrors.Errorf("failed to open ledger: %v", err)
	}

	env := &environment{
		cfg:    cfg,
		db:     db,
		ledger: l,
		engine: umbral.NewEngine(),
	}

	if withStorage {
		err = env.connect(ctx)
		if err != nil {
			env.Close()
			return nil, err
		}
	}

	return env, nil
}

func (env *environment) connect(ctx context.Context) error {
	if env.cfg.Storage.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, env.cfg.Storage.Timeout)
		defer cancel()
	}

	store := blob.NewStore(env.cfg.Storage.Path)

	err := store.Connect(ctx)
	if err != nil {
		return xerrors.Errorf("failed to connect storage: %w", err)
	}

	env.storage = store

	return nil
}

// Close releases the components in the reverse order of their opening.
func (env *environment) Close() error {
	var res error

	if env.storage != nil {
		err := env.storage.Disconnect()
		if err != nil {
			res = multierror.Append(res, err)
		}
	}

	err := env.ledger.Close()
	if err != nil {
		res = multierror.Append(res, err)
	}

	err = env.db.Close()
	if err != nil {
		res = multierror.Append(res, xerrors.Errorf("failed to close ledger db: %v", err))
	}

	return res
}

// client returns the client of the contract of the configuration after
// checking that the contract exists.
func (env *environment) client(ctx context.Context) (*client.Client, error) {
	addr, err := env.cfg.RequireContract()
	if err != nil {
		return nil, err
	}

	c := client.NewClient(env.ledger, addr)

	_, err = c.GetContractState(ctx)
	if err != nil {
		return nil, xerrors.Errorf("contract %s is not available: %w", addr, err)
	}

	return c, nil
}

// wallet loads the wallet of the configuration, creating the key file if it
// does not exist, and funds it when requested.
func (env *environment) wallet(ctx context.Context) (ledger.Crypto, error) {
	path, err := env.cfg.RequireLedgerKey()
	if err != nil {
		return nil, err
	}

	wallet, err := env.ledger.LoadCryptoFromFile(path)
	if err != nil {
		return nil, xerrors.Errorf("failed to load wallet: %v", err)
	}

	if env.cfg.Fund {
		err = env.fund(ctx, wallet.GetAddress())
		if err != nil {
			return nil, err
		}
	}

	return wallet, nil
}

func (env *environment) fund(ctx context.Context, addr string) error {
	err := env.ledger.EnsureFunds(ctx, addr)
	if err != nil {
		return xerrors.Errorf("failed to fund %s: %v", addr, err)
	}

	return nil
}

// encryptionKey loads the encryption key of the configuration.
func (env *environment) encryptionKey() (crypto.PrivateKey, error) {
	path, err := env.cfg.RequireEncryptionKey()
	if err != nil {
		return nil, err
	}

	data, err := loader.NewFileLoader(path, loader.KindEncryption).Load()
	if err != nil {
		return nil, xerrors.Errorf("failed to read encryption key: %v", err)
	}

	key, err := env.engine.LoadKey(data)
	if err != nil {
		return nil, xerrors.Errorf("failed to load encryption key: %v", err)
	}

	return key, nil
}

// publicKey decodes a hexadecimal public key from the command line.
func (env *environment) publicKey(value string) (crypto.PublicKey, error) {
	data, err := hex.DecodeString(value)
	if err != nil {
		return nil, xerrors.Errorf("malformed public key: %v", err)
	}

	key, err := env.engine.LoadPublicKey(data)
	if err != nil {
		return nil, xerrors.Errorf("invalid public key: %v", err)
	}

	return key, nil
}

// withEnv returns an action that opens the environment for the duration of
// the function.
func withEnv(ctx context.Context, withStorage bool,
	fn func(*environment, cli.Flags) error) cli.Action {

	return func(flags cli.Flags) (err error) {
		env, err := openEnv(ctx, flags, withStorage)
		if err != nil {
			return err
		}

		defer func() {
			closeErr := env.Close()
			if closeErr != nil {
				err = multierror.Append(err, closeErr)
			}
		}()

		return fn(env, flags)
	}
}

// argument returns the positional argument at the index, or an error naming
// it when it is missing.
func argument(flags cli.Flags, index int, name string) (string, error) {
	args := flags.Args()
	if len(args) <= index || args[index] == "" {
		return "", xerrors.Errorf("missing argument <%s>", name)
	}

	return args[index], nil
}
