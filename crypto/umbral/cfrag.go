package umbral

import (
	"crypto/cipher"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/share"
	"go.dedis.ch/kyber/v3/sign/schnorr"
	"golang.org/x/xerrors"
)

// CapsuleFrag is the re-encryption of a capsule by one proxy. It carries the
// public metadata of the key fragment and a proof that the same share was
// applied to E, V and U:
//
//	log_E(E1) == log_V(V1) == log_U(U1)
type CapsuleFrag struct {
	e1 kyber.Point
	v1 kyber.Point

	index      uint32
	threshold  uint32
	shares     uint32
	commitment kyber.Point
	precursor  kyber.Point
	signature  []byte

	e2 kyber.Point
	v2 kyber.Point
	u2 kyber.Point
	z3 kyber.Scalar
}

// Reencrypt applies the key fragment to the capsule. The key fragment must be
// verified beforehand.
func Reencrypt(capsule *Capsule, kfrag *KeyFrag, stream cipher.Stream) *CapsuleFrag {
	t := suite.Scalar().Pick(stream)

	cfrag := &CapsuleFrag{
		e1:         suite.Point().Mul(kfrag.rk, capsule.e),
		v1:         suite.Point().Mul(kfrag.rk, capsule.v),
		index:      kfrag.index,
		threshold:  kfrag.threshold,
		shares:     kfrag.shares,
		commitment: kfrag.commitment,
		precursor:  kfrag.precursor,
		signature:  kfrag.signature,
		e2:         suite.Point().Mul(t, capsule.e),
		v2:         suite.Point().Mul(t, capsule.v),
		u2:         suite.Point().Mul(t, pointU),
	}

	h := cfrag.challenge(capsule)
	cfrag.z3 = suite.Scalar().Add(t, suite.Scalar().Mul(h, kfrag.rk))

	return cfrag
}

// NewCapsuleFrag returns the capsule fragment marshaled in the data.
func NewCapsuleFrag(data []byte) (*CapsuleFrag, error) {
	dec := decoder{buffer: data}

	cfrag := &CapsuleFrag{
		e1:         dec.point(),
		v1:         dec.point(),
		index:      dec.uint32(),
		threshold:  dec.uint32(),
		shares:     dec.uint32(),
		commitment: dec.point(),
		precursor:  dec.point(),
		signature:  dec.bytes(signatureSize),
		e2:         dec.point(),
		v2:         dec.point(),
		u2:         dec.point(),
		z3:         dec.scalar(),
	}

	err := dec.done()
	if err != nil {
		return nil, xerrors.Errorf("malformed cfrag: %v", err)
	}

	return cfrag, nil
}

// Verify returns nil if the fragment was produced from a key fragment signed by
// the delegator for the delegatee, and applied to the capsule.
func (c *CapsuleFrag) Verify(capsule *Capsule, delegator, delegatee *PublicKey) error {
	err := verifyMeta(c.index, c.threshold, c.shares)
	if err != nil {
		return err
	}

	msg, err := signedMessage(c.index, c.threshold, c.shares, delegator.point,
		delegatee.point, c.commitment, c.precursor)
	if err != nil {
		return err
	}

	err = schnorr.Verify(suite, delegator.point, msg, c.signature)
	if err != nil {
		return xerrors.Errorf("invalid kfrag signature: %v", err)
	}

	h := c.challenge(capsule)

	checks := [][4]kyber.Point{
		{capsule.e, c.e2, c.e1},
		{capsule.v, c.v2, c.v1},
		{pointU, c.u2, c.commitment},
	}

	for _, check := range checks {
		// z3*base == proof + h*value
		left := suite.Point().Mul(c.z3, check[0])
		right := suite.Point().Add(check[1], suite.Point().Mul(h, check[2]))

		if !left.Equal(right) {
			return xerrors.New("invalid proof of re-encryption")
		}
	}

	return nil
}

// Index returns the index of the key fragment used by the proxy.
func (c *CapsuleFrag) Index() int {
	return int(c.index)
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (c *CapsuleFrag) MarshalBinary() ([]byte, error) {
	enc := encoder{buffer: make([]byte, 0, cfragSize)}
	enc.point(c.e1)
	enc.point(c.v1)
	enc.uint32(c.index)
	enc.uint32(c.threshold)
	enc.uint32(c.shares)
	enc.point(c.commitment)
	enc.point(c.precursor)
	enc.bytes(c.signature)
	enc.point(c.e2)
	enc.point(c.v2)
	enc.point(c.u2)
	enc.scalar(c.z3)

	return enc.result()
}

// sameDelegation returns true if both fragments come from the same split of
// the re-encryption key.
func (c *CapsuleFrag) sameDelegation(other *CapsuleFrag) bool {
	return c.threshold == other.threshold && c.shares == other.shares &&
		c.precursor.Equal(other.precursor)
}

func (c *CapsuleFrag) challenge(capsule *Capsule) kyber.Scalar {
	return newTranscript(tagProof).
		points(capsule.e, c.e1, c.e2, capsule.v, c.v1, c.v2, pointU, c.commitment, c.u2).
		scalar()
}

// openReencrypted combines at least threshold verified fragments of the same
// delegation and returns the encapsulated point.
func openReencrypted(cfrags []*CapsuleFrag, delegatee *PrivateKey) (kyber.Point, error) {
	first := cfrags[0]
	t := int(first.threshold)
	n := int(first.shares)

	es := make([]*share.PubShare, len(cfrags))
	vs := make([]*share.PubShare, len(cfrags))

	for i, cfrag := range cfrags {
		es[i] = &share.PubShare{I: cfrag.Index(), V: cfrag.e1}
		vs[i] = &share.PubShare{I: cfrag.Index(), V: cfrag.v1}
	}

	e, err := share.RecoverCommit(suite, es, t, n)
	if err != nil {
		return nil, xerrors.Errorf("couldn't recover E: %v", err)
	}

	v, err := share.RecoverCommit(suite, vs, t, n)
	if err != nil {
		return nil, xerrors.Errorf("couldn't recover V: %v", err)
	}

	b := delegatee.public()
	dh := suite.Point().Mul(delegatee.scalar, first.precursor)
	d := newTranscript(tagPrecursor).points(first.precursor, b.point, dh).scalar()

	return suite.Point().Mul(d, suite.Point().Add(e, v)), nil
}

// VerifyFragment verifies the marshaled fragment of the capsule against the
// marshaled keys of the delegation.
func VerifyFragment(capsule, fragment, delegator, delegatee []byte) error {
	c, err := NewCapsule(capsule)
	if err != nil {
		return err
	}

	cfrag, err := NewCapsuleFrag(fragment)
	if err != nil {
		return err
	}

	pkA, err := NewPublicKey(delegator)
	if err != nil {
		return xerrors.Errorf("delegator: %v", err)
	}

	pkB, err := NewPublicKey(delegatee)
	if err != nil {
		return xerrors.Errorf("delegatee: %v", err)
	}

	return cfrag.Verify(c, pkA, pkB)
}
