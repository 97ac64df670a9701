// Package blob implements a content-addressed storage on top of a local
// key/value database.
//
// Every object is identified by a CIDv1 over its SHA2-256 digest. An encrypted
// data is stored as two raw objects, the ciphertext and the capsule, linked by
// a JSON container whose identifier is the identifier of the data. The content
// is verified against its identifier on every read.
package blob

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"go.dedis.ch/pre"
	"go.dedis.ch/pre/core/store/kv"
	"go.dedis.ch/pre/crypto"
	"go.dedis.ch/pre/storage"
	"golang.org/x/xerrors"
)

var bucketName = []byte("blobs")

// container is the document that links the parts of an encrypted data.
type container struct {
	Data    string `json:"data"`
	Capsule string `json:"capsule"`
}

// Store is a content-addressed storage persisted in a database file.
//
// - implements storage.Storage
type Store struct {
	sync.Mutex

	path string
	db   kv.DB
	open func(path string, opts ...kv.Option) (kv.DB, error)
}

// NewStore returns a store that will open the database at the path when it is
// connected.
func NewStore(path string) *Store {
	return &Store{
		path: path,
		open: kv.New,
	}
}

// Connect implements storage.Storage. It opens the database and waits for its
// lock until the deadline of the context, if any.
func (s *Store) Connect(ctx context.Context) error {
	err := storage.FromContext(ctx)
	if err != nil {
		return err
	}

	s.Lock()
	defer s.Unlock()

	if s.db != nil {
		return storage.ErrAlreadyConnected
	}

	var opts []kv.Option

	deadline, ok := ctx.Deadline()
	if ok {
		opts = append(opts, kv.WithOpenTimeout(time.Until(deadline)))
	}

	db, err := s.open(s.path, opts...)
	if err != nil {
		return xerrors.Errorf("failed to open %s: %v: %w", s.path, err, storage.ErrNotAvailable)
	}

	s.db = db

	pre.Logger.Debug().Str("path", s.path).Msg("blob store connected")

	return nil
}

// Disconnect implements storage.Storage. It closes the database.
func (s *Store) Disconnect() error {
	s.Lock()
	defer s.Unlock()

	if s.db == nil {
		return storage.ErrNotConnected
	}

	db := s.db
	s.db = nil

	err := db.Close()
	if err != nil {
		return xerrors.Errorf("failed to close db: %v", err)
	}

	return nil
}

// StoreEncryptedData implements storage.Storage.
func (s *Store) StoreEncryptedData(ctx context.Context, data crypto.EncryptedData) (string, error) {
	dataID, err := s.put(ctx, cid.Raw, data.Data)
	if err != nil {
		return "", xerrors.Errorf("failed to store data: %w", err)
	}

	capsuleID, err := s.put(ctx, cid.Raw, data.Capsule)
	if err != nil {
		return "", xerrors.Errorf("failed to store capsule: %w", err)
	}

	doc, err := json.Marshal(container{Data: dataID, Capsule: capsuleID})
	if err != nil {
		return "", xerrors.Errorf("failed to encode container: %v", err)
	}

	id, err := s.put(ctx, cid.DagJSON, doc)
	if err != nil {
		return "", xerrors.Errorf("failed to store container: %w", err)
	}

	return id, nil
}

// GetEncryptedData implements storage.Storage.
func (s *Store) GetEncryptedData(ctx context.Context, id string) (crypto.EncryptedData, error) {
	links, err := s.container(ctx, id)
	if err != nil {
		return crypto.EncryptedData{}, err
	}

	data, err := s.get(ctx, cid.Raw, links.Data)
	if err != nil {
		return crypto.EncryptedData{}, xerrors.Errorf("failed to read data: %w", err)
	}

	capsule, err := s.get(ctx, cid.Raw, links.Capsule)
	if err != nil {
		return crypto.EncryptedData{}, xerrors.Errorf("failed to read capsule: %w", err)
	}

	return crypto.EncryptedData{Data: data, Capsule: capsule}, nil
}

// GetCapsule implements storage.Storage.
func (s *Store) GetCapsule(ctx context.Context, id string) ([]byte, error) {
	links, err := s.container(ctx, id)
	if err != nil {
		return nil, err
	}

	capsule, err := s.get(ctx, cid.Raw, links.Capsule)
	if err != nil {
		return nil, xerrors.Errorf("failed to read capsule: %w", err)
	}

	return capsule, nil
}

// StoreEncryptedPart implements storage.Storage.
func (s *Store) StoreEncryptedPart(ctx context.Context, part []byte) (string, error) {
	return s.put(ctx, cid.Raw, part)
}

// GetEncryptedPart implements storage.Storage.
func (s *Store) GetEncryptedPart(ctx context.Context, id string) ([]byte, error) {
	return s.get(ctx, cid.Raw, id)
}

func (s *Store) container(ctx context.Context, id string) (container, error) {
	var links container

	doc, err := s.get(ctx, cid.DagJSON, id)
	if err != nil {
		return links, xerrors.Errorf("failed to read container: %w", err)
	}

	err = json.Unmarshal(doc, &links)
	if err != nil {
		return links, xerrors.Errorf("failed to decode container: %v: %w", err, storage.ErrNotAvailable)
	}

	return links, nil
}

func (s *Store) conn(ctx context.Context) (kv.DB, error) {
	err := storage.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	s.Lock()
	defer s.Unlock()

	if s.db == nil {
		return nil, storage.ErrNotConnected
	}

	return s.db, nil
}

func (s *Store) put(ctx context.Context, codec uint64, value []byte) (string, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return "", err
	}

	id, err := makeID(codec, value)
	if err != nil {
		return "", err
	}

	err = db.Update(func(txn kv.WritableTx) error {
		bucket, err := txn.GetBucketOrCreate(bucketName)
		if err != nil {
			return err
		}

		return bucket.Set([]byte(id.String()), value)
	})
	if err != nil {
		return "", xerrors.Errorf("failed to write %s: %v: %w", id, err, storage.ErrNetwork)
	}

	return id.String(), nil
}

func (s *Store) get(ctx context.Context, codec uint64, key string) ([]byte, error) {
	id, err := cid.Decode(key)
	if err != nil {
		return nil, xerrors.Errorf("invalid identifier '%s': %v: %w", key, err, storage.ErrNotAvailable)
	}

	if id.Type() != codec {
		return nil, xerrors.Errorf("unexpected codec %#x for %s: %w", id.Type(), key, storage.ErrNotAvailable)
	}

	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var value []byte

	err = db.View(func(txn kv.ReadableTx) error {
		bucket := txn.GetBucket(bucketName)
		if bucket == nil {
			return nil
		}

		raw := bucket.Get([]byte(id.String()))
		if raw != nil {
			value = append([]byte{}, raw...)
		}

		return nil
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to read %s: %v: %w", key, err, storage.ErrNetwork)
	}

	if value == nil {
		return nil, xerrors.Errorf("%s not found: %w", key, storage.ErrNotAvailable)
	}

	sum, err := id.Prefix().Sum(value)
	if err != nil || !sum.Equals(id) {
		return nil, xerrors.Errorf("content of %s does not match: %w", key, storage.ErrNotAvailable)
	}

	return value, nil
}

func makeID(codec uint64, value []byte) (cid.Cid, error) {
	digest, err := multihash.Sum(value, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, xerrors.Errorf("failed to hash content: %v", err)
	}

	return cid.NewCidV1(codec, digest), nil
}
