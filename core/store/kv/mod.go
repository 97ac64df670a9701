// Package kv defines the key/value database that persists the state of the
// local ledger and the blobs of the storage.
//
// The default implementation is a bbolt file (https://github.com/etcd-io/bbolt)
// that a single process can open at a time.
package kv

// Bucket is a namespace of keys inside a transaction. The slices it returns
// are only valid during the transaction.
type Bucket interface {
	// Get returns the value of the key, or nil when it is absent.
	Get(key []byte) []byte

	// Set writes the value of the key.
	Set(key, value []byte) error

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(key []byte) error

	// ForEach calls the function for every key until it returns an error.
	ForEach(fn func(k, v []byte) error) error

	// Scan calls the function for every key with the prefix, in lexicographic
	// order, until it returns an error.
	Scan(prefix []byte, fn func(k, v []byte) error) error
}

// ReadableTx is a read-only view of the database.
type ReadableTx interface {
	// GetBucket returns the bucket, or nil when it was never created.
	GetBucket(name []byte) Bucket
}

// WritableTx is an atomic update of the database.
type WritableTx interface {
	ReadableTx

	// GetBucketOrCreate returns the bucket and creates it if necessary.
	GetBucketOrCreate(name []byte) (Bucket, error)

	// OnCommit registers a callback executed after the transaction commits.
	// Nothing is called when the transaction is rolled back.
	OnCommit(fn func())
}

// DB is a key/value database where every access happens in a transaction.
type DB interface {
	// View runs the function in a read-only transaction.
	View(fn func(ReadableTx) error) error

	// Update runs the function in a writable transaction, which is rolled back
	// when the function returns an error.
	Update(fn func(WritableTx) error) error

	// Close releases the file. No transaction can start afterwards.
	Close() error
}
