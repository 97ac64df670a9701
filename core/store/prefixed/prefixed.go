// Package prefixed implements a bucket view that isolates a namespace of keys
// inside a parent bucket. Namespaces can be nested to build multi-level maps
// that can still be iterated in order.
package prefixed

import (
	"encoding/binary"

	"go.dedis.ch/pre/core/store/kv"
)

// bucket is a view of a parent bucket where every key is prefixed by the
// encoded namespaces.
//
// - implements kv.Bucket
type bucket struct {
	parent kv.Bucket
	prefix []byte
}

// NewBucket creates a view of the parent bucket in the namespaces. The keys are
// transparently prefixed on writes and stripped on reads.
func NewBucket(parent kv.Bucket, namespaces ...[]byte) kv.Bucket {
	return bucket{
		parent: parent,
		prefix: NewPrefix(namespaces...),
	}
}

// Get implements kv.Bucket.
func (b bucket) Get(key []byte) []byte {
	return b.parent.Get(b.key(key))
}

// Set implements kv.Bucket.
func (b bucket) Set(key, value []byte) error {
	return b.parent.Set(b.key(key), value)
}

// Delete implements kv.Bucket.
func (b bucket) Delete(key []byte) error {
	return b.parent.Delete(b.key(key))
}

// ForEach implements kv.Bucket. It iterates over the keys of the namespace
// only.
func (b bucket) ForEach(fn func(k, v []byte) error) error {
	return b.Scan(nil, fn)
}

// Scan implements kv.Bucket. The keys provided to the callback are stripped of
// the namespaces.
func (b bucket) Scan(prefix []byte, fn func(k, v []byte) error) error {
	return b.parent.Scan(b.key(prefix), func(k, v []byte) error {
		return fn(k[len(b.prefix):], v)
	})
}

func (b bucket) key(key []byte) []byte {
	buffer := make([]byte, 0, len(b.prefix)+len(key))
	buffer = append(buffer, b.prefix...)

	return append(buffer, key...)
}

// NewPrefix returns the encoding of the namespaces where each of them is
// length-prefixed, so that no namespace can collide with another one.
func NewPrefix(namespaces ...[]byte) []byte {
	var prefix []byte

	for _, ns := range namespaces {
		length := []byte{0, 0}
		binary.BigEndian.PutUint16(length, uint16(len(ns)))

		prefix = append(prefix, length...)
		prefix = append(prefix, ns...)
	}

	return prefix
}
