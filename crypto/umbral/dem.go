package umbral

import (
	"crypto/sha256"
	"io"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/pre/crypto"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/xerrors"
)

// deriveKey derives the symmetric key from the encapsulated point.
func deriveKey(shared kyber.Point) ([]byte, error) {
	secret, err := shared.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("couldn't marshal point: %v", err)
	}

	reader := hkdf.New(sha256.New, secret, nil, []byte(tagDEM))

	key := make([]byte, chacha20poly1305.KeySize)
	_, err = io.ReadFull(reader, key)
	if err != nil {
		return nil, xerrors.Errorf("key derivation failed: %v", err)
	}

	return key, nil
}

// seal encrypts and authenticates the plaintext and the additional data. The
// output is nonce || ciphertext.
func seal(key, plaintext, aad []byte, rand io.Reader) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, xerrors.Errorf("couldn't create cipher: %v", err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX, nonceSize+len(plaintext)+aead.Overhead())
	_, err = io.ReadFull(rand, nonce)
	if err != nil {
		return nil, xerrors.Errorf("couldn't read nonce: %v", err)
	}

	return aead.Seal(nonce, nonce, plaintext, aad), nil
}

// open authenticates and decrypts the output of seal. Any failure is a
// decryption error.
func open(key, ciphertext, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, xerrors.Errorf("couldn't create cipher: %v", err)
	}

	if len(ciphertext) < nonceSize+aead.Overhead() {
		return nil, xerrors.Errorf("ciphertext too short: %w", crypto.ErrDecryption)
	}

	plaintext, err := aead.Open(nil, ciphertext[:nonceSize], ciphertext[nonceSize:], aad)
	if err != nil {
		return nil, xerrors.Errorf("%v: %w", err, crypto.ErrDecryption)
	}

	return plaintext, nil
}
