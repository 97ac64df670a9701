package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/pre/ledger"
)

const testConfig = `
ledger:
  path: /tmp/ledger.db
  faucet:
    denom: ucoin
    amount: 5000
storage:
  path: /tmp/blobs.db
  timeout: 10s
contract_address: %s
ledger_private_key: wallet.key
threshold: 2
fund: true
proxy:
  poll_interval: 1s
  auto_withdraw: true
  deactivate_only: true
`

func TestParse(t *testing.T) {
	addr := ledger.Address([]byte("contract"))

	cfg, err := Parse([]byte(fmt.Sprintf(testConfig, addr)))
	require.NoError(t, err)

	require.Equal(t, Config{
		Ledger: Ledger{
			Path:   "/tmp/ledger.db",
			Faucet: Faucet{Denom: "ucoin", Amount: 5000, Minimum: 1000},
		},
		Storage:          Storage{Path: "/tmp/blobs.db", Timeout: 10 * time.Second},
		ContractAddress:  addr,
		LedgerPrivateKey: "wallet.key",
		Threshold:        2,
		Fund:             true,
		Proxy: Proxy{
			PollInterval:   time.Second,
			AutoWithdraw:   true,
			DeactivateOnly: true,
		},
	}, cfg)
}

func TestParse_Failures(t *testing.T) {
	_, err := Parse([]byte("unknown: 1"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to decode: ")

	_, err = Parse([]byte("threshold: abc"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to decode: ")

	_, err = Parse([]byte("contract_address: abc"))
	require.EqualError(t, err,
		"invalid configuration: contract address: address 'abc' must start with 'pre1'")

	_, err = Parse([]byte("ledger:\n  faucet:\n    amount: 10"))
	require.EqualError(t, err,
		"invalid configuration: faucet amount 10 is below the minimum 1000")

	_, err = Parse([]byte("proxy:\n  poll_interval: -1s"))
	require.EqualError(t, err, "invalid configuration: proxy intervals must be positive")
}

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	require.Equal(t, DefaultLedgerPath, cfg.Ledger.Path)
	require.Equal(t, DefaultStoragePath, cfg.Storage.Path)
	require.Equal(t, DefaultDenom, cfg.Ledger.Faucet.Denom)
	require.Equal(t, defaultPollInterval, cfg.Proxy.PollInterval)

	cfg.Ledger.Path = ""
	require.EqualError(t, cfg.Validate(), "ledger path is missing")

	cfg = Default()
	cfg.Storage.Path = ""
	require.EqualError(t, cfg.Validate(), "storage path is missing")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to read config: ")

	require.NoError(t, os.WriteFile(path, []byte("threshold: 3\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint32(3), cfg.Threshold)

	require.NoError(t, os.WriteFile(path, []byte("storage:\n  timeout: -1s\n"), 0600))

	_, err = Load(path)
	require.EqualError(t, err,
		"config '"+path+"': invalid configuration: storage timeout must be positive")
}

func TestConfig_Require(t *testing.T) {
	cfg := Default()

	_, err := cfg.RequireContract()
	require.EqualError(t, err, "contract address is missing")

	_, err = cfg.RequireLedgerKey()
	require.EqualError(t, err, "ledger private key is missing")

	_, err = cfg.RequireEncryptionKey()
	require.EqualError(t, err, "encryption private key is missing")

	cfg.ContractAddress = "pre1"
	cfg.LedgerPrivateKey = "wallet.key"
	cfg.EncryptionPrivateKey = filepath.Join(t.TempDir(), "key")

	addr, err := cfg.RequireContract()
	require.NoError(t, err)
	require.Equal(t, "pre1", addr)

	path, err := cfg.RequireLedgerKey()
	require.NoError(t, err)
	require.Equal(t, "wallet.key", path)

	_, err = cfg.RequireEncryptionKey()
	require.Error(t, err)
	require.Contains(t, err.Error(), "encryption private key: ")

	require.NoError(t, os.WriteFile(cfg.EncryptionPrivateKey, []byte("00"), 0600))

	path, err = cfg.RequireEncryptionKey()
	require.NoError(t, err)
	require.Equal(t, cfg.EncryptionPrivateKey, path)
}
