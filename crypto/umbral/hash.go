package umbral

import (
	"encoding/binary"
	"hash"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/pre/crypto"
)

// Domain separation tags of the hash functions.
const (
	tagCapsule   = "PRE-CAPSULE"
	tagPrecursor = "PRE-PRECURSOR"
	tagProof     = "PRE-CFRAG-PROOF"
	tagKeyFrag   = "PRE-KFRAG"
	tagParameter = "PRE-PARAMETER-U"
	tagDEM       = "PRE-DEM"
)

// transcript hashes a sequence of elements into a scalar.
type transcript struct {
	h hash.Hash
}

func newTranscript(tag string) *transcript {
	t := &transcript{h: crypto.NewHashFactory(crypto.Sha256).New()}
	t.bytes([]byte(tag))

	return t
}

func (t *transcript) bytes(data []byte) *transcript {
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	t.h.Write(length)
	t.h.Write(data)

	return t
}

func (t *transcript) points(points ...kyber.Point) *transcript {
	for _, p := range points {
		// A hash never fails to write.
		_, _ = p.MarshalTo(t.h)
	}

	return t
}

func (t *transcript) scalar() kyber.Scalar {
	return suite.Scalar().SetBytes(t.h.Sum(nil))
}
