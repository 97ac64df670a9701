package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"go.dedis.ch/pre/cli"
	"go.dedis.ch/pre/crypto/loader"
	"go.dedis.ch/pre/crypto/umbral"
	"go.dedis.ch/pre/ledger"
	"golang.org/x/xerrors"
)

func setKeysCommands(builder cli.Builder) {
	cmd := builder.SetCommand("keys")
	cmd.SetDescription("Manage the keys of the wallets and of the encryption")

	keyFlags := []cli.Flag{
		cli.StringFlag{
			Name:  "ledger",
			Usage: "path to the key of a wallet",
		},
		cli.StringFlag{
			Name:  "encryption",
			Usage: "path to an encryption key",
		},
	}

	sub := cmd.SetSubCommand("generate")
	sub.SetDescription("Generate new keys and show their public part")
	sub.SetFlags(keyFlags...)
	sub.SetFlags(cli.BoolFlag{
		Name:  "rewrite",
		Usage: "overwrite the key files if they exist",
	})
	sub.SetAction(func(flags cli.Flags) error {
		return keysAction(flags, true)
	})

	sub = cmd.SetSubCommand("show")
	sub.SetDescription("Show the address and the public key of existing keys")
	sub.SetFlags(keyFlags...)
	sub.SetAction(func(flags cli.Flags) error {
		return keysAction(flags, false)
	})
}

func keysAction(flags cli.Flags, generate bool) error {
	ledgerPath := flags.String("ledger")
	encryptionPath := flags.String("encryption")

	if ledgerPath == "" && encryptionPath == "" {
		return xerrors.New("one of --ledger or --encryption is required")
	}

	if generate {
		for _, path := range []string{ledgerPath, encryptionPath} {
			err := prepareKeyFile(path, flags.Bool("rewrite"))
			if err != nil {
				return err
			}
		}
	}

	if ledgerPath != "" {
		err := showWallet(ledgerPath, generate)
		if err != nil {
			return err
		}
	}

	if encryptionPath != "" {
		err := showEncryptionKey(encryptionPath, generate)
		if err != nil {
			return err
		}
	}

	return nil
}

// prepareKeyFile makes sure a key can be generated at the path.
func prepareKeyFile(path string, rewrite bool) error {
	if path == "" {
		return nil
	}

	_, err := os.Stat(path)
	if err != nil {
		return nil
	}

	if !rewrite {
		return xerrors.Errorf("file %s exists, use --rewrite to overwrite it", path)
	}

	err = os.Remove(path)
	if err != nil {
		return xerrors.Errorf("failed to remove %s: %v", path, err)
	}

	return nil
}

func showWallet(path string, generate bool) error {
	if !generate {
		_, err := loader.NewFileLoader(path, loader.KindLedger).Load()
		if err != nil {
			return xerrors.Errorf("failed to read wallet: %v", err)
		}
	}

	wallet, err := ledger.LoadWallet(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(printer, "Ledger address: %s\n", wallet.GetAddress())

	return nil
}

func showEncryptionKey(path string, generate bool) error {
	engine := umbral.NewEngine()
	file := loader.NewFileLoader(path, loader.KindEncryption)

	var data []byte
	var err error

	if generate {
		data, err = file.LoadOrCreate(loader.GeneratorFunc(func() ([]byte, error) {
			key, err := engine.MakeNewKey()
			if err != nil {
				return nil, err
			}

			return key.MarshalBinary()
		}))
	} else {
		data, err = file.Load()
	}

	if err != nil {
		return xerrors.Errorf("failed to read encryption key: %v", err)
	}

	key, err := engine.LoadKey(data)
	if err != nil {
		return xerrors.Errorf("failed to load encryption key: %v", err)
	}

	defer key.Zero()

	pubkey, err := key.PublicKey().MarshalBinary()
	if err != nil {
		return xerrors.Errorf("failed to marshal public key: %v", err)
	}

	fmt.Fprintf(printer, "Encryption public key: %s\n", hex.EncodeToString(pubkey))

	return nil
}
