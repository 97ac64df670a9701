package umbral

import (
	"encoding/binary"

	"go.dedis.ch/kyber/v3"
	"golang.org/x/xerrors"
)

// encoder appends the fixed-size elements of the wire formats to a buffer.
type encoder struct {
	buffer []byte
	err    error
}

func (e *encoder) point(p kyber.Point) {
	if e.err != nil {
		return
	}

	data, err := p.MarshalBinary()
	if err != nil {
		e.err = xerrors.Errorf("couldn't marshal point: %v", err)
		return
	}

	e.buffer = append(e.buffer, data...)
}

func (e *encoder) scalar(s kyber.Scalar) {
	if e.err != nil {
		return
	}

	data, err := s.MarshalBinary()
	if err != nil {
		e.err = xerrors.Errorf("couldn't marshal scalar: %v", err)
		return
	}

	e.buffer = append(e.buffer, data...)
}

func (e *encoder) uint32(v uint32) {
	e.buffer = binary.BigEndian.AppendUint32(e.buffer, v)
}

func (e *encoder) bytes(data []byte) {
	e.buffer = append(e.buffer, data...)
}

func (e *encoder) result() ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}

	return e.buffer, nil
}

// decoder reads the fixed-size elements of the wire formats. The first failure
// is kept and every following read is a no-op.
type decoder struct {
	buffer []byte
	err    error
}

func (d *decoder) next(size int) []byte {
	if d.err != nil {
		return nil
	}

	if len(d.buffer) < size {
		d.err = xerrors.Errorf("buffer too short: %d < %d", len(d.buffer), size)
		return nil
	}

	data := d.buffer[:size]
	d.buffer = d.buffer[size:]

	return data
}

func (d *decoder) point() kyber.Point {
	data := d.next(pointSize)
	if data == nil {
		return nil
	}

	p := suite.Point()
	err := p.UnmarshalBinary(data)
	if err != nil {
		d.err = xerrors.Errorf("couldn't unmarshal point: %v", err)
		return nil
	}

	return p
}

func (d *decoder) scalar() kyber.Scalar {
	data := d.next(scalarSize)
	if data == nil {
		return nil
	}

	s := suite.Scalar()
	err := s.UnmarshalBinary(data)
	if err != nil {
		d.err = xerrors.Errorf("couldn't unmarshal scalar: %v", err)
		return nil
	}

	return s
}

func (d *decoder) uint32() uint32 {
	data := d.next(4)
	if data == nil {
		return 0
	}

	return binary.BigEndian.Uint32(data)
}

func (d *decoder) bytes(size int) []byte {
	data := d.next(size)
	if data == nil {
		return nil
	}

	return append([]byte{}, data...)
}

// done returns the first error, or an error if trailing bytes are left.
func (d *decoder) done() error {
	if d.err != nil {
		return d.err
	}

	if len(d.buffer) > 0 {
		return xerrors.Errorf("%d trailing bytes", len(d.buffer))
	}

	return nil
}
