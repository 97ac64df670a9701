package fake

import (
	"bytes"
	"sort"
	"strings"

	"go.dedis.ch/pre/core/store/kv"
)

// InMemoryBucket is a fake implementation of a database bucket that keeps the
// values in a map.
//
// - implements kv.Bucket
type InMemoryBucket struct {
	values   map[string][]byte
	ErrWrite error
}

// NewBucket creates a new empty bucket.
func NewBucket() *InMemoryBucket {
	return &InMemoryBucket{
		values: make(map[string][]byte),
	}
}

// NewBadBucket creates a new empty bucket that fails on every write.
func NewBadBucket() *InMemoryBucket {
	return &InMemoryBucket{
		values:   make(map[string][]byte),
		ErrWrite: fakeErr,
	}
}

// Get implements kv.Bucket.
func (b *InMemoryBucket) Get(key []byte) []byte {
	return b.values[string(key)]
}

// Set implements kv.Bucket.
func (b *InMemoryBucket) Set(key, value []byte) error {
	if b.ErrWrite != nil {
		return b.ErrWrite
	}

	b.values[string(key)] = append([]byte{}, value...)

	return nil
}

// Delete implements kv.Bucket.
func (b *InMemoryBucket) Delete(key []byte) error {
	if b.ErrWrite != nil {
		return b.ErrWrite
	}

	delete(b.values, string(key))

	return nil
}

// ForEach implements kv.Bucket.
func (b *InMemoryBucket) ForEach(fn func(k, v []byte) error) error {
	return b.Scan(nil, fn)
}

// Scan implements kv.Bucket. The keys are iterated in lexicographic order.
func (b *InMemoryBucket) Scan(prefix []byte, fn func(k, v []byte) error) error {
	keys := make([]string, 0, len(b.values))
	for key := range b.values {
		if strings.HasPrefix(key, string(prefix)) {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)

	for _, key := range keys {
		err := fn([]byte(key), b.values[key])
		if err != nil {
			return err
		}
	}

	return nil
}

// InMemoryDB is a fake implementation of a key/value database. Updates are
// applied to a copy of the buckets so that a failing transaction leaves the
// database untouched.
//
// - implements kv.DB
type InMemoryDB struct {
	buckets  map[string]*InMemoryBucket
	ErrView  error
	ErrClose error
}

// NewInMemoryDB returns a new empty database.
func NewInMemoryDB() *InMemoryDB {
	return &InMemoryDB{
		buckets: make(map[string]*InMemoryBucket),
	}
}

// NewBadDB returns a database that fails on every transaction.
func NewBadDB() *InMemoryDB {
	db := NewInMemoryDB()
	db.ErrView = fakeErr
	db.ErrClose = fakeErr

	return db
}

// View implements kv.DB.
func (db *InMemoryDB) View(fn func(kv.ReadableTx) error) error {
	if db.ErrView != nil {
		return db.ErrView
	}

	return fn(&inMemoryTx{buckets: db.buckets})
}

// Update implements kv.DB.
func (db *InMemoryDB) Update(fn func(kv.WritableTx) error) error {
	if db.ErrView != nil {
		return db.ErrView
	}

	tx := &inMemoryTx{buckets: make(map[string]*InMemoryBucket)}
	for name, bucket := range db.buckets {
		clone := NewBucket()
		for k, v := range bucket.values {
			clone.values[k] = v
		}

		tx.buckets[name] = clone
	}

	err := fn(tx)
	if err != nil {
		return err
	}

	db.buckets = tx.buckets

	for _, fn := range tx.onCommit {
		fn()
	}

	return nil
}

// Close implements kv.DB.
func (db *InMemoryDB) Close() error {
	return db.ErrClose
}

type inMemoryTx struct {
	buckets  map[string]*InMemoryBucket
	onCommit []func()
}

func (tx *inMemoryTx) GetBucket(name []byte) kv.Bucket {
	bucket, found := tx.buckets[string(name)]
	if !found {
		return nil
	}

	return bucket
}

func (tx *inMemoryTx) GetBucketOrCreate(name []byte) (kv.Bucket, error) {
	if len(bytes.TrimSpace(name)) == 0 {
		return nil, fakeErr
	}

	bucket, found := tx.buckets[string(name)]
	if !found {
		bucket = NewBucket()
		tx.buckets[string(name)] = bucket
	}

	return bucket, nil
}

func (tx *inMemoryTx) OnCommit(fn func()) {
	tx.onCommit = append(tx.onCommit, fn)
}
