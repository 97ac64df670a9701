package umbral

import (
	"crypto/cipher"
	"io"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/share"
	"go.dedis.ch/kyber/v3/sign/schnorr"
	"go.dedis.ch/pre/crypto"
	"golang.org/x/xerrors"
)

// KeyFrag is one share of the re-encryption key from a delegator to a
// delegatee. The share rk is the evaluation of a polynomial of degree
// threshold-1 whose constant term is a/d, where d is derived from a
// Diffie-Hellman between the precursor and the delegatee key.
//
// The delegator signs the public parts of the fragment so that a proxy and a
// reader can detect forged or retargeted fragments.
type KeyFrag struct {
	index     uint32
	threshold uint32
	shares    uint32
	rk        kyber.Scalar
	// commitment is rk*U
	commitment kyber.Point
	// precursor is the ephemeral point X_A shared by the fragments of a
	// delegation.
	precursor kyber.Point
	signature []byte
}

// GenerateKeyFrags splits the re-encryption key from the delegator to the
// delegatee in the given number of shares.
func GenerateKeyFrags(delegator *PrivateKey, delegatee *PublicKey,
	threshold, shares int, stream cipher.Stream) ([]*KeyFrag, error) {

	if threshold < 1 || shares < threshold {
		return nil, xerrors.Errorf("threshold %d for %d shares: %w",
			threshold, shares, crypto.ErrInvalidThreshold)
	}

	xa := suite.Scalar().Pick(stream)
	precursor := suite.Point().Mul(xa, nil)
	dh := suite.Point().Mul(xa, delegatee.point)

	d := newTranscript(tagPrecursor).points(precursor, delegatee.point, dh).scalar()

	secret := suite.Scalar().Mul(delegator.scalar, suite.Scalar().Inv(d))
	poly := share.NewPriPoly(suite, threshold, secret, stream)

	pk := delegator.public()
	kfrags := make([]*KeyFrag, shares)

	for i, priShare := range poly.Shares(shares) {
		kfrag := &KeyFrag{
			index:      uint32(priShare.I),
			threshold:  uint32(threshold),
			shares:     uint32(shares),
			rk:         priShare.V,
			commitment: suite.Point().Mul(priShare.V, pointU),
			precursor:  precursor,
		}

		msg, err := kfrag.message(pk.point, delegatee.point)
		if err != nil {
			return nil, err
		}

		kfrag.signature, err = schnorr.Sign(suite, delegator.scalar, msg)
		if err != nil {
			return nil, xerrors.Errorf("couldn't sign kfrag: %v", err)
		}

		kfrags[i] = kfrag
	}

	return kfrags, nil
}

// NewKeyFrag returns the key fragment marshaled in the data.
func NewKeyFrag(data []byte) (*KeyFrag, error) {
	dec := decoder{buffer: data}

	kfrag := &KeyFrag{
		index:      dec.uint32(),
		threshold:  dec.uint32(),
		shares:     dec.uint32(),
		rk:         dec.scalar(),
		commitment: dec.point(),
		precursor:  dec.point(),
		signature:  dec.bytes(signatureSize),
	}

	err := dec.done()
	if err != nil {
		return nil, xerrors.Errorf("malformed kfrag: %v", err)
	}

	return kfrag, nil
}

// Index returns the index of the share.
func (k *KeyFrag) Index() int {
	return int(k.index)
}

// Verify returns nil if the key fragment was signed by the delegator for the
// delegatee and if the commitment matches the share.
func (k *KeyFrag) Verify(delegator, delegatee *PublicKey) error {
	err := verifyMeta(k.index, k.threshold, k.shares)
	if err != nil {
		return err
	}

	if !suite.Point().Mul(k.rk, pointU).Equal(k.commitment) {
		return xerrors.New("invalid commitment")
	}

	msg, err := k.message(delegator.point, delegatee.point)
	if err != nil {
		return err
	}

	err = schnorr.Verify(suite, delegator.point, msg, k.signature)
	if err != nil {
		return xerrors.Errorf("invalid signature: %v", err)
	}

	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (k *KeyFrag) MarshalBinary() ([]byte, error) {
	enc := encoder{buffer: make([]byte, 0, kfragSize)}
	enc.uint32(k.index)
	enc.uint32(k.threshold)
	enc.uint32(k.shares)
	enc.scalar(k.rk)
	enc.point(k.commitment)
	enc.point(k.precursor)
	enc.bytes(k.signature)

	return enc.result()
}

// message returns the bytes signed by the delegator.
func (k *KeyFrag) message(delegator, delegatee kyber.Point) ([]byte, error) {
	return signedMessage(k.index, k.threshold, k.shares, delegator, delegatee,
		k.commitment, k.precursor)
}

func signedMessage(index, threshold, shares uint32, points ...kyber.Point) ([]byte, error) {
	enc := encoder{buffer: []byte(tagKeyFrag)}
	enc.uint32(index)
	enc.uint32(threshold)
	enc.uint32(shares)

	for _, p := range points {
		enc.point(p)
	}

	return enc.result()
}

func verifyMeta(index, threshold, shares uint32) error {
	if threshold < 1 || shares < threshold {
		return xerrors.Errorf("invalid threshold %d for %d shares", threshold, shares)
	}

	if index >= shares {
		return xerrors.Errorf("index %d out of range", index)
	}

	return nil
}

// sealKeyFrag encrypts the key fragment for the proxy. The delegation string is
// capsule || nonce || ciphertext.
func sealKeyFrag(kfrag *KeyFrag, proxy *PublicKey, stream cipher.Stream,
	rand io.Reader) ([]byte, error) {

	plaintext, err := kfrag.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("couldn't marshal kfrag: %v", err)
	}

	capsule, shared := newCapsule(proxy.point, stream)

	header, err := capsule.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("couldn't marshal capsule: %v", err)
	}

	key, err := deriveKey(shared)
	if err != nil {
		return nil, err
	}

	ciphertext, err := seal(key, plaintext, header, rand)
	if err != nil {
		return nil, xerrors.Errorf("couldn't seal kfrag: %v", err)
	}

	return append(header, ciphertext...), nil
}

// openKeyFrag decrypts the delegation string with the key of the proxy.
func openKeyFrag(delegation []byte, proxy *PrivateKey) (*KeyFrag, error) {
	if len(delegation) != delegationSize {
		return nil, xerrors.Errorf("invalid length %d: %w",
			len(delegation), crypto.ErrIncorrectFormatOfDelegationString)
	}

	header := delegation[:capsuleSize]

	capsule, err := NewCapsule(header)
	if err != nil {
		return nil, xerrors.Errorf("%v: %w", err, crypto.ErrIncorrectFormatOfDelegationString)
	}

	key, err := deriveKey(capsule.open(proxy.scalar))
	if err != nil {
		return nil, err
	}

	plaintext, err := open(key, delegation[capsuleSize:], header)
	if err != nil {
		return nil, xerrors.Errorf("couldn't open kfrag: %w", err)
	}

	kfrag, err := NewKeyFrag(plaintext)
	if err != nil {
		return nil, xerrors.Errorf("%v: %w", err, crypto.ErrIncorrectFormatOfDelegationString)
	}

	return kfrag, nil
}
