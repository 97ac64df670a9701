package ledger

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"io"

	"go.dedis.ch/pre"
	"go.dedis.ch/pre/crypto"
	"golang.org/x/xerrors"
)

// Transaction is a signed message to a contract. The nonce is the sequence
// number of the sender.
type Transaction struct {
	Sender    string `json:"sender"`
	Nonce     uint64 `json:"nonce"`
	Contract  string `json:"contract"`
	Msg       []byte `json:"msg"`
	Funds     []Coin `json:"funds,omitempty"`
	PublicKey []byte `json:"public_key,omitempty"`
	Signature []byte `json:"signature,omitempty"`
}

// Fingerprint writes a deterministic binary representation of the
// transaction, excluding the signature.
func (t *Transaction) Fingerprint(w io.Writer) error {
	buffer := make([]byte, 8)
	binary.LittleEndian.PutUint64(buffer, t.Nonce)

	_, err := w.Write(buffer)
	if err != nil {
		return xerrors.Errorf("couldn't write nonce: %v", err)
	}

	fields := [][]byte{[]byte(t.Sender), []byte(t.Contract), t.Msg}
	for _, coin := range t.Funds {
		fields = append(fields, []byte(coin.String()))
	}

	fields = append(fields, t.PublicKey)

	for _, field := range fields {
		binary.LittleEndian.PutUint64(buffer, uint64(len(field)))

		_, err = w.Write(append(buffer, field...))
		if err != nil {
			return xerrors.Errorf("couldn't write field: %v", err)
		}
	}

	return nil
}

// Hash returns the digest of the fingerprint.
func (t *Transaction) Hash() ([]byte, error) {
	h := crypto.NewHashFactory(crypto.Sha256).New()

	err := t.Fingerprint(h)
	if err != nil {
		return nil, xerrors.Errorf("couldn't fingerprint tx: %v", err)
	}

	return h.Sum(nil), nil
}

// Sign fills the public key and the signature of the transaction. The signer
// must own the sender address.
func (t *Transaction) Sign(signer Crypto) error {
	if signer.GetAddress() != t.Sender {
		return xerrors.New("mismatch signer and sender")
	}

	t.PublicKey = signer.GetPublicKey()

	digest, err := t.Hash()
	if err != nil {
		return err
	}

	t.Signature, err = signer.Sign(digest)
	if err != nil {
		return xerrors.Errorf("signer: %v", err)
	}

	return nil
}

// TransactionManager creates, signs and broadcasts the transactions of one
// account. It manages the nonce by itself, except if a transaction is refused
// by the ledger. In that case the manager synchronizes before the next one.
type TransactionManager struct {
	ledger Ledger
	signer Crypto
	nonce  uint64
	synced bool
}

// NewManager creates a new transaction manager.
func NewManager(ledger Ledger, signer Crypto) *TransactionManager {
	return &TransactionManager{
		ledger: ledger,
		signer: signer,
	}
}

// Make returns a signed transaction to the contract.
func (mgr *TransactionManager) Make(contract string, msg []byte, funds ...Coin) (*Transaction, error) {
	tx := &Transaction{
		Sender:   mgr.signer.GetAddress(),
		Nonce:    mgr.nonce,
		Contract: contract,
		Msg:      msg,
		Funds:    funds,
	}

	err := mgr.ledger.SignTx(tx, mgr.signer)
	if err != nil {
		return nil, xerrors.Errorf("failed to sign: %v", err)
	}

	mgr.nonce++

	return tx, nil
}

// Sync fetches the latest nonce of the signer.
func (mgr *TransactionManager) Sync(ctx context.Context) error {
	nonce, err := mgr.ledger.GetNonce(ctx, mgr.signer.GetAddress())
	if err != nil {
		return xerrors.Errorf("client: %v", err)
	}

	mgr.nonce = nonce
	mgr.synced = true

	pre.Logger.Debug().
		Str("address", mgr.signer.GetAddress()).
		Uint64("nonce", nonce).
		Msg("manager synchronized")

	return nil
}

// Execute sends a message to the contract and waits for the result. A rejected
// transaction is returned as a *TxError.
func (mgr *TransactionManager) Execute(ctx context.Context, contract string,
	msg []byte, funds ...Coin) (Result, error) {

	if !mgr.synced {
		err := mgr.Sync(ctx)
		if err != nil {
			return Result{}, xerrors.Errorf("failed to sync manager: %v", err)
		}
	}

	tx, err := mgr.Make(contract, msg, funds...)
	if err != nil {
		return Result{}, xerrors.Errorf("failed to make tx: %v", err)
	}

	res, err := mgr.ledger.BroadcastTx(ctx, tx)
	if err != nil {
		mgr.synced = false
		return res, xerrors.Errorf("failed to broadcast: %w", err)
	}

	return res, nil
}

// TxHash returns the hexadecimal digest of the transaction.
func TxHash(tx *Transaction) (string, error) {
	digest, err := tx.Hash()
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(digest), nil
}
