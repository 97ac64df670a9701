// Package config defines the configuration of the command-line tools. The
// configuration is a YAML document whose sections are passed explicitly to the
// components that need them.
//
//	ledger:
//	  path: pre-ledger.db
//	  faucet:
//	    denom: upre
//	    amount: 10000
//	    minimum: 1000
//	storage:
//	  path: pre-blobs.db
//	contract_address: pre1...
//	ledger_private_key: wallet.key
//	encryption_private_key: encryption.key
//	threshold: 2
//	fund: true
//	proxy:
//	  poll_interval: 5s
//	  auto_withdraw: true
//	  deactivate_only: false
package config

import (
	"os"
	"time"

	"go.dedis.ch/pre/ledger"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

const (
	// DefaultLedgerPath is the default path of the database of the ledger.
	DefaultLedgerPath = "pre-ledger.db"

	// DefaultStoragePath is the default path of the blob store.
	DefaultStoragePath = "pre-blobs.db"

	// DefaultDenom is the default denomination of the faucet.
	DefaultDenom = "upre"

	defaultFaucetAmount  = 10000
	defaultFaucetMinimum = 1000
	defaultPollInterval  = 5 * time.Second
)

// Faucet is the configuration of the coins given to the wallets of the local
// ledger.
type Faucet struct {
	Denom   string `yaml:"denom"`
	Amount  uint64 `yaml:"amount"`
	Minimum uint64 `yaml:"minimum"`
}

// Ledger is the configuration of the ledger.
type Ledger struct {
	Path   string `yaml:"path"`
	Faucet Faucet `yaml:"faucet"`
}

// Storage is the configuration of the blob store.
type Storage struct {
	Path    string        `yaml:"path"`
	Timeout time.Duration `yaml:"timeout"`
}

// Proxy is the configuration of the worker of a proxy.
type Proxy struct {
	PollInterval     time.Duration `yaml:"poll_interval"`
	WithdrawInterval time.Duration `yaml:"withdraw_interval"`
	AutoWithdraw     bool          `yaml:"auto_withdraw"`
	DeactivateOnly   bool          `yaml:"deactivate_only"`
}

// Config is the configuration shared by the roles.
type Config struct {
	Ledger  Ledger  `yaml:"ledger"`
	Storage Storage `yaml:"storage"`

	ContractAddress      string `yaml:"contract_address"`
	LedgerPrivateKey     string `yaml:"ledger_private_key"`
	EncryptionPrivateKey string `yaml:"encryption_private_key"`

	// Threshold is the number of fragments requested by an owner, or zero to
	// use the threshold of the contract.
	Threshold uint32 `yaml:"threshold"`

	// Fund tops up the wallet from the faucet before the transactions.
	Fund bool `yaml:"fund"`

	Proxy Proxy `yaml:"proxy"`
}

// Default returns the configuration used when no file is provided.
func Default() Config {
	cfg := Config{}
	cfg.setDefaults()

	return cfg
}

// Load reads the configuration from the YAML file. Missing values take their
// default.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, xerrors.Errorf("failed to read config: %v", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, xerrors.Errorf("config '%s': %v", path, err)
	}

	return cfg, nil
}

// Parse decodes and validates a YAML configuration.
func Parse(data []byte) (Config, error) {
	var cfg Config

	err := yaml.UnmarshalStrict(data, &cfg)
	if err != nil {
		return Config{}, xerrors.Errorf("failed to decode: %v", err)
	}

	cfg.setDefaults()

	err = cfg.Validate()
	if err != nil {
		return Config{}, xerrors.Errorf("invalid configuration: %v", err)
	}

	return cfg, nil
}

// Validate returns an error if a value is inconsistent. Values that are only
// required by some roles are checked with the Require functions.
func (c Config) Validate() error {
	if c.Ledger.Path == "" {
		return xerrors.New("ledger path is missing")
	}

	if c.Storage.Path == "" {
		return xerrors.New("storage path is missing")
	}

	if c.Ledger.Faucet.Amount < c.Ledger.Faucet.Minimum {
		return xerrors.Errorf("faucet amount %d is below the minimum %d",
			c.Ledger.Faucet.Amount, c.Ledger.Faucet.Minimum)
	}

	if c.ContractAddress != "" {
		err := ledger.ValidateAddress(c.ContractAddress)
		if err != nil {
			return xerrors.Errorf("contract address: %v", err)
		}
	}

	if c.Storage.Timeout < 0 {
		return xerrors.New("storage timeout must be positive")
	}

	if c.Proxy.PollInterval < 0 || c.Proxy.WithdrawInterval < 0 {
		return xerrors.New("proxy intervals must be positive")
	}

	return nil
}

// RequireContract returns the address of the contract or an error if it is
// missing.
func (c Config) RequireContract() (string, error) {
	if c.ContractAddress == "" {
		return "", xerrors.New("contract address is missing")
	}

	return c.ContractAddress, nil
}

// RequireLedgerKey returns the path to the key of the wallet or an error if it
// is missing.
func (c Config) RequireLedgerKey() (string, error) {
	if c.LedgerPrivateKey == "" {
		return "", xerrors.New("ledger private key is missing")
	}

	return c.LedgerPrivateKey, nil
}

// RequireEncryptionKey returns the path to the encryption key or an error if
// it is missing or the file does not exist.
func (c Config) RequireEncryptionKey() (string, error) {
	if c.EncryptionPrivateKey == "" {
		return "", xerrors.New("encryption private key is missing")
	}

	_, err := os.Stat(c.EncryptionPrivateKey)
	if err != nil {
		return "", xerrors.Errorf("encryption private key: %v", err)
	}

	return c.EncryptionPrivateKey, nil
}

func (c *Config) setDefaults() {
	if c.Ledger.Path == "" {
		c.Ledger.Path = DefaultLedgerPath
	}

	if c.Ledger.Faucet.Denom == "" {
		c.Ledger.Faucet.Denom = DefaultDenom
	}

	if c.Ledger.Faucet.Amount == 0 {
		c.Ledger.Faucet.Amount = defaultFaucetAmount
	}

	if c.Ledger.Faucet.Minimum == 0 {
		c.Ledger.Faucet.Minimum = defaultFaucetMinimum
	}

	if c.Storage.Path == "" {
		c.Storage.Path = DefaultStoragePath
	}

	if c.Proxy.PollInterval == 0 {
		c.Proxy.PollInterval = defaultPollInterval
	}
}
