package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/pre/agent/delegatee"
	"go.dedis.ch/pre/contract"
)

func TestRun_Scenario(t *testing.T) {
	dir := t.TempDir()
	path := func(name string) string { return filepath.Join(dir, name) }

	config := path("config.yaml")
	require.NoError(t, os.WriteFile(config, []byte(
		"ledger:\n  path: "+path("ledger.db")+"\nstorage:\n  path: "+path("blobs.db")+"\nfund: true\n",
	), 0600))

	execute(t, "keys", "generate", "--ledger", path("admin.key"))
	proxyAddr := field(execute(t, "keys", "generate", "--ledger", path("proxy.key"),
		"--encryption", path("proxy.enc")), "Ledger address:")
	owner := field(execute(t, "keys", "generate", "--ledger", path("owner.key"),
		"--encryption", path("owner.enc")), "Encryption public key:")
	reader := field(execute(t, "keys", "generate", "--encryption", path("reader.enc")),
		"Encryption public key:")

	addr := field(execute(t, "admin", "instantiate-contract", "--config", config,
		"--ledger-private-key", path("admin.key")), "Contract address:")

	admin := []string{"--config", config, "--contract-address", addr, "--ledger-private-key", path("admin.key")}
	proxyFlags := []string{"--config", config, "--contract-address", addr,
		"--ledger-private-key", path("proxy.key"), "--encryption-private-key", path("proxy.enc")}
	ownerFlags := []string{"--config", config, "--contract-address", addr,
		"--ledger-private-key", path("owner.key"), "--encryption-private-key", path("owner.enc")}
	readerFlags := []string{"--config", config, "--contract-address", addr,
		"--encryption-private-key", path("reader.enc")}

	out := execute(t, join([]string{"admin", "add-proxy"}, admin, proxyAddr)...)
	require.Contains(t, out, "Proxy "+proxyAddr+" added")

	out = execute(t, join([]string{"proxy", "register"}, proxyFlags)...)
	require.Contains(t, out, "registered with a stake of 1000upre")

	out = execute(t, join([]string{"proxy", "status"}, proxyFlags)...)
	require.Contains(t, out, "is registered with a stake of 1000 (0 withdrawable)")

	data := path("data.txt")
	require.NoError(t, os.WriteFile(data, []byte("Valuable text to reencrypt."), 0600))

	id := field(execute(t, join([]string{"owner", "add-data"}, ownerFlags, data)...), "Data id:")

	out = execute(t, join([]string{"owner", "grant-access"}, ownerFlags, id, reader)...)
	require.Contains(t, out, "Access to "+id+" granted")

	err := invoke(join([]string{"reader", "get-data-status"}, readerFlags, id)...)
	require.ErrorIs(t, err, delegatee.ErrDataNotReady)

	out = execute(t, join([]string{"proxy", "run", "--once"}, proxyFlags)...)
	require.Contains(t, out, "Proxy "+proxyAddr+" running")

	out = execute(t, join([]string{"reader", "get-data-status"}, readerFlags, id)...)
	require.Contains(t, out, "Data "+id+" is ready")

	output := path("decrypted.txt")
	execute(t, join([]string{"reader", "get-data"}, readerFlags, id, owner, output)...)

	content, err := os.ReadFile(output)
	require.NoError(t, err)
	require.Equal(t, "Valuable text to reencrypt.", string(content))

	err = invoke(join([]string{"reader", "get-data"}, readerFlags, id, owner, output)...)
	require.EqualError(t, err, "file "+output+" exists, use --rewrite to overwrite it")

	// The worker has unregistered the proxy when it stopped.
	out = execute(t, join([]string{"proxy", "status"}, proxyFlags)...)
	require.Contains(t, out, "is authorised")

	out = execute(t, join([]string{"admin", "terminate-contract"}, admin)...)
	require.Contains(t, out, "Contract terminated")

	err = invoke(join([]string{"owner", "add-data"}, ownerFlags, data)...)
	require.ErrorIs(t, err, contract.ErrContractTerminated)
}

func TestRun_Failures(t *testing.T) {
	dir := t.TempDir()

	err := invoke("keys", "generate")
	require.EqualError(t, err, "one of --ledger or --encryption is required")

	key := filepath.Join(dir, "wallet.key")
	execute(t, "keys", "generate", "--ledger", key)

	err = invoke("keys", "generate", "--ledger", key)
	require.EqualError(t, err, "file "+key+" exists, use --rewrite to overwrite it")

	execute(t, "keys", "generate", "--rewrite", "--ledger", key)

	err = invoke("keys", "show", "--encryption", filepath.Join(dir, "unknown"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to read encryption key: ")

	err = invoke("admin", "add-proxy", "--config", filepath.Join(dir, "unknown.yaml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to read config: ")

	config := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(config, []byte(
		"ledger:\n  path: "+filepath.Join(dir, "ledger.db")+"\n",
	), 0600))

	err = invoke("admin", "add-proxy", "--config", config, "--ledger-private-key", key)
	require.EqualError(t, err, "contract address is missing")

	err = invoke("admin", "instantiate-contract", "--config", config, "--threshold", "0")
	require.EqualError(t, err, "threshold must be positive: 0")

	err = invoke("admin", "instantiate-contract", "--config", config)
	require.EqualError(t, err, "ledger private key is missing")
}

// -----------------------------------------------------------------------------
// Utility functions

func invoke(args ...string) error {
	return run(context.Background(), append([]string{"pre"}, args...))
}

func execute(t *testing.T, args ...string) string {
	buffer := new(bytes.Buffer)
	printer = buffer

	defer func() { printer = os.Stdout }()

	require.NoError(t, invoke(args...))

	return buffer.String()
}

// field returns the value printed after the label.
func field(out, label string) string {
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, label) {
			return strings.TrimSpace(strings.TrimPrefix(line, label))
		}
	}

	return ""
}

func join(cmd []string, flags []string, args ...string) []string {
	res := append(append([]string{}, cmd...), flags...)
	return append(res, args...)
}
