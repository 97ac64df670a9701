package umbral

import (
	"crypto/cipher"

	"go.dedis.ch/kyber/v3"
	"golang.org/x/xerrors"
)

// Capsule encapsulates the symmetric key of one encryption. It is made of two
// ephemeral points and a scalar that proves they were built honestly:
//
//	E = r*G, V = u*G, s = u + r*H(E, V)
//
// The encapsulated point is (r + u)*A where A is the public key of the
// recipient.
type Capsule struct {
	e kyber.Point
	v kyber.Point
	s kyber.Scalar
}

// newCapsule returns a capsule for the public key and the shared point it
// encapsulates.
func newCapsule(pk kyber.Point, stream cipher.Stream) (*Capsule, kyber.Point) {
	r := suite.Scalar().Pick(stream)
	u := suite.Scalar().Pick(stream)

	capsule := &Capsule{
		e: suite.Point().Mul(r, nil),
		v: suite.Point().Mul(u, nil),
	}

	h := capsule.challenge()
	capsule.s = suite.Scalar().Add(u, suite.Scalar().Mul(r, h))

	shared := suite.Point().Mul(suite.Scalar().Add(r, u), pk)

	return capsule, shared
}

// NewCapsule returns the capsule marshaled in the data. The capsule is verified
// before being returned.
func NewCapsule(data []byte) (*Capsule, error) {
	dec := decoder{buffer: data}

	capsule := &Capsule{
		e: dec.point(),
		v: dec.point(),
		s: dec.scalar(),
	}

	err := dec.done()
	if err != nil {
		return nil, xerrors.Errorf("malformed capsule: %v", err)
	}

	err = capsule.Verify()
	if err != nil {
		return nil, err
	}

	return capsule, nil
}

// Verify returns nil if s*G == V + H(E, V)*E.
func (c *Capsule) Verify() error {
	left := suite.Point().Mul(c.s, nil)
	right := suite.Point().Add(c.v, suite.Point().Mul(c.challenge(), c.e))

	if !left.Equal(right) {
		return xerrors.New("capsule verification failed")
	}

	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler. It returns E || V || s.
func (c *Capsule) MarshalBinary() ([]byte, error) {
	enc := encoder{buffer: make([]byte, 0, capsuleSize)}
	enc.point(c.e)
	enc.point(c.v)
	enc.scalar(c.s)

	return enc.result()
}

// Equal returns true when both capsules are the same.
func (c *Capsule) Equal(other *Capsule) bool {
	return c.e.Equal(other.e) && c.v.Equal(other.v) && c.s.Equal(other.s)
}

// open returns the encapsulated point using the secret of the recipient.
func (c *Capsule) open(sk kyber.Scalar) kyber.Point {
	return suite.Point().Mul(sk, suite.Point().Add(c.e, c.v))
}

func (c *Capsule) challenge() kyber.Scalar {
	return newTranscript(tagCapsule).points(c.e, c.v).scalar()
}
