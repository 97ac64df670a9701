// Package umbral implements a threshold proxy re-encryption scheme over the
// Ed25519 group.
//
// The delegator encrypts a message with a random symmetric key encapsulated in
// a capsule for its own public key. To grant access, it splits a
// re-encryption key in key fragments, one per proxy, each of them encrypted
// for the proxy and signed. A proxy turns the capsule in a verifiable capsule
// fragment and any threshold of them lets the delegatee open the capsule.
//
// Every hand-off is verified: the proxy checks the signature of its key
// fragment, and the delegatee checks the signature and the proof of every
// capsule fragment.
package umbral

import (
	"crypto/cipher"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/suites"
	"go.dedis.ch/kyber/v3/util/random"
	"go.dedis.ch/pre/crypto"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/xerrors"
)

const (
	pointSize     = 32
	scalarSize    = 32
	signatureSize = pointSize + scalarSize
	nonceSize     = chacha20poly1305.NonceSizeX
	tagSize       = chacha20poly1305.Overhead

	capsuleSize    = 2*pointSize + scalarSize
	kfragSize      = 12 + scalarSize + 2*pointSize + signatureSize
	delegationSize = capsuleSize + nonceSize + kfragSize + tagSize
	cfragSize      = 2*pointSize + 12 + 2*pointSize + signatureSize + 3*pointSize + scalarSize
)

var suite = suites.MustFind("Ed25519")

// pointU is the second generator used by the commitments of the key
// fragments. Its discrete logarithm is unknown.
var pointU kyber.Point = suite.Point().Pick(suite.XOF([]byte(tagParameter)))

// Engine is the umbral implementation of the re-encryption engine.
//
// - implements crypto.Engine
type Engine struct {
	rand crypto.RandGenerator
}

// EngineOption is the type of options to configure the engine.
type EngineOption func(*Engine)

// WithRandom sets the source of randomness of the engine.
func WithRandom(rand crypto.RandGenerator) EngineOption {
	return func(e *Engine) {
		e.rand = rand
	}
}

// NewEngine returns a new engine.
func NewEngine(opts ...EngineOption) Engine {
	e := Engine{
		rand: crypto.CryptographicRandomGenerator{},
	}

	for _, opt := range opts {
		opt(&e)
	}

	return e
}

// MakeNewKey implements crypto.Engine. It returns a random private key.
func (e Engine) MakeNewKey() (crypto.PrivateKey, error) {
	return GeneratePrivateKey(e.stream()), nil
}

// LoadKey implements crypto.Engine.
func (e Engine) LoadKey(data []byte) (crypto.PrivateKey, error) {
	sk, err := NewPrivateKey(data)
	if err != nil {
		return nil, xerrors.Errorf("failed to load private key: %v", err)
	}

	return sk, nil
}

// LoadPublicKey implements crypto.Engine.
func (e Engine) LoadPublicKey(data []byte) (crypto.PublicKey, error) {
	pk, err := NewPublicKey(data)
	if err != nil {
		return nil, xerrors.Errorf("failed to load public key: %v", err)
	}

	return pk, nil
}

// Encrypt implements crypto.Engine. The capsule is authenticated as the
// additional data of the symmetric encryption.
func (e Engine) Encrypt(data []byte, delegator crypto.PublicKey) (crypto.EncryptedData, error) {
	pk, err := asPublicKey(delegator)
	if err != nil {
		return crypto.EncryptedData{}, err
	}

	capsule, shared := newCapsule(pk.point, e.stream())

	header, err := capsule.MarshalBinary()
	if err != nil {
		return crypto.EncryptedData{}, xerrors.Errorf("couldn't marshal capsule: %v", err)
	}

	key, err := deriveKey(shared)
	if err != nil {
		return crypto.EncryptedData{}, err
	}

	ciphertext, err := seal(key, data, header, e.rand)
	if err != nil {
		return crypto.EncryptedData{}, xerrors.Errorf("failed to encrypt: %v", err)
	}

	return crypto.EncryptedData{Data: ciphertext, Capsule: header}, nil
}

// GenerateDelegations implements crypto.Engine.
func (e Engine) GenerateDelegations(threshold int, delegatee crypto.PublicKey,
	proxies []crypto.PublicKey, delegator crypto.PrivateKey) ([]crypto.Delegation, error) {

	if len(proxies) == 0 {
		return nil, xerrors.Errorf("empty list of proxies: %w", crypto.ErrInvalidThreshold)
	}

	if threshold < 1 || threshold > len(proxies) {
		return nil, xerrors.Errorf("threshold %d for %d proxies: %w",
			threshold, len(proxies), crypto.ErrInvalidThreshold)
	}

	sk, err := asPrivateKey(delegator)
	if err != nil {
		return nil, err
	}

	pkB, err := asPublicKey(delegatee)
	if err != nil {
		return nil, err
	}

	proxyKeys := make([]*PublicKey, len(proxies))
	for i, proxy := range proxies {
		proxyKeys[i], err = asPublicKey(proxy)
		if err != nil {
			return nil, xerrors.Errorf("proxy %d: %v", i, err)
		}
	}

	stream := e.stream()

	kfrags, err := GenerateKeyFrags(sk, pkB, threshold, len(proxies), stream)
	if err != nil {
		return nil, xerrors.Errorf("failed to generate kfrags: %w", err)
	}

	delegations := make([]crypto.Delegation, len(proxies))

	for i, kfrag := range kfrags {
		str, err := sealKeyFrag(kfrag, proxyKeys[i], stream, e.rand)
		if err != nil {
			return nil, xerrors.Errorf("failed to seal kfrag %d: %v", i, err)
		}

		delegations[i] = crypto.Delegation{
			ProxyKey:         proxyKeys[i],
			DelegationString: str,
		}
	}

	return delegations, nil
}

// Reencrypt implements crypto.Engine. A delegation that is not addressed to
// the proxy, or not signed by the delegator for the delegatee, is a decryption
// error.
func (e Engine) Reencrypt(capsule, delegation []byte, proxy crypto.PrivateKey,
	delegator, delegatee crypto.PublicKey) ([]byte, error) {

	sk, err := asPrivateKey(proxy)
	if err != nil {
		return nil, err
	}

	pkA, err := asPublicKey(delegator)
	if err != nil {
		return nil, err
	}

	pkB, err := asPublicKey(delegatee)
	if err != nil {
		return nil, err
	}

	kfrag, err := openKeyFrag(delegation, sk)
	if err != nil {
		return nil, xerrors.Errorf("failed to open delegation: %w", err)
	}

	err = kfrag.Verify(pkA, pkB)
	if err != nil {
		return nil, xerrors.Errorf("kfrag verification failed: %v: %w", err, crypto.ErrDecryption)
	}

	c, err := NewCapsule(capsule)
	if err != nil {
		return nil, xerrors.Errorf("%v: %w", err, crypto.ErrDecryption)
	}

	cfrag := Reencrypt(c, kfrag, e.stream())

	data, err := cfrag.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("couldn't marshal cfrag: %v", err)
	}

	return data, nil
}

// Decrypt implements crypto.Engine. The fragments are verified one by one and
// the first invalid fragment aborts the decryption. Duplicates of the same
// index are counted once.
func (e Engine) Decrypt(data crypto.EncryptedData, fragments [][]byte,
	delegatee crypto.PrivateKey, delegator crypto.PublicKey) ([]byte, error) {

	sk, err := asPrivateKey(delegatee)
	if err != nil {
		return nil, err
	}

	pkA, err := asPublicKey(delegator)
	if err != nil {
		return nil, err
	}

	capsule, err := NewCapsule(data.Capsule)
	if err != nil {
		return nil, xerrors.Errorf("%v: %w", err, crypto.ErrDecryption)
	}

	if len(fragments) == 0 {
		return nil, xerrors.Errorf("no fragment: %w", crypto.ErrNotEnoughFragments)
	}

	pkB := sk.public()
	cfrags := make([]*CapsuleFrag, 0, len(fragments))
	indices := make(map[uint32]struct{})

	for i, raw := range fragments {
		cfrag, err := NewCapsuleFrag(raw)
		if err != nil {
			return nil, xerrors.Errorf("fragment %d: %v: %w", i, err, crypto.ErrDecryption)
		}

		err = cfrag.Verify(capsule, pkA, pkB)
		if err != nil {
			return nil, xerrors.Errorf("fragment %d: %v: %w", i, err, crypto.ErrDecryption)
		}

		if len(cfrags) > 0 && !cfrags[0].sameDelegation(cfrag) {
			return nil, xerrors.Errorf("fragment %d: mismatching delegation: %w",
				i, crypto.ErrDecryption)
		}

		_, found := indices[cfrag.index]
		if found {
			continue
		}

		indices[cfrag.index] = struct{}{}
		cfrags = append(cfrags, cfrag)
	}

	if len(cfrags) < int(cfrags[0].threshold) {
		return nil, xerrors.Errorf("%d < %d: %w", len(cfrags), cfrags[0].threshold,
			crypto.ErrNotEnoughFragments)
	}

	shared, err := openReencrypted(cfrags, sk)
	if err != nil {
		return nil, xerrors.Errorf("%v: %w", err, crypto.ErrDecryption)
	}

	return e.open(shared, data)
}

// DecryptOriginal implements crypto.Engine.
func (e Engine) DecryptOriginal(data crypto.EncryptedData,
	delegator crypto.PrivateKey) ([]byte, error) {

	sk, err := asPrivateKey(delegator)
	if err != nil {
		return nil, err
	}

	capsule, err := NewCapsule(data.Capsule)
	if err != nil {
		return nil, xerrors.Errorf("%v: %w", err, crypto.ErrDecryption)
	}

	return e.open(capsule.open(sk.scalar), data)
}

func (e Engine) open(shared kyber.Point, data crypto.EncryptedData) ([]byte, error) {
	key, err := deriveKey(shared)
	if err != nil {
		return nil, err
	}

	plaintext, err := open(key, data.Data, data.Capsule)
	if err != nil {
		return nil, xerrors.Errorf("failed to decrypt: %w", err)
	}

	if len(plaintext) == 0 {
		return nil, nil
	}

	return plaintext, nil
}

func (e Engine) stream() cipher.Stream {
	return random.New(e.rand)
}
