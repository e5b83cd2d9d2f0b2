package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/bitfsorg/libwallet-go/wallet"
)

var (
	bucketWallet = []byte("wallet")
	bucketMeta   = []byte("meta")

	keyState     = []byte("state")
	keyPrevious  = []byte("previous")
	keyVersion   = []byte("version")
	keySavedAt   = []byte("saved_at")
	keyRevisions = []byte("revisions")
)

// boltSchemaVersion is bumped when the stored encoding changes.
const boltSchemaVersion = 1

// BoltStore keeps the wallet snapshot in a bbolt database. The current
// snapshot and the one it replaced are kept side by side.
type BoltStore struct {
	db *bbolt.DB
}

var _ Persister = (*BoltStore)(nil)

// OpenBoltStore opens or creates the database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, persistError("create directory", err)
	}
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		if errors.Is(err, bbolt.ErrTimeout) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, dbPath)
		}
		return nil, persistError("open bolt db", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketWallet, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %q: %w", name, err)
			}
		}
		meta := tx.Bucket(bucketMeta)
		if meta.Get(keyVersion) == nil {
			return meta.Put(keyVersion, uint64Bytes(boltSchemaVersion))
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, persistError("create buckets", err)
	}
	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error { return s.db.Close() }

// Persist writes state in a single transaction.
func (s *BoltStore) Persist(ctx context.Context, state *wallet.WalletState) error {
	if state == nil {
		return persistError("persist", fmt.Errorf("nil state"))
	}
	if err := ctx.Err(); err != nil {
		return persistError("persist", err)
	}
	data, err := encodeGob(state)
	if err != nil {
		return persistError("encode state", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		wb := tx.Bucket(bucketWallet)
		if prev := wb.Get(keyState); prev != nil {
			if err := wb.Put(keyPrevious, append([]byte(nil), prev...)); err != nil {
				return err
			}
		}
		if err := wb.Put(keyState, data); err != nil {
			return err
		}

		meta := tx.Bucket(bucketMeta)
		if err := meta.Put(keySavedAt, uint64Bytes(uint64(time.Now().Unix()))); err != nil {
			return err
		}
		return meta.Put(keyRevisions, uint64Bytes(bytesUint64(meta.Get(keyRevisions))+1))
	})
	if err != nil {
		return persistError("write state", err)
	}
	return nil
}

// Load returns the current snapshot, or ErrNotFound.
func (s *BoltStore) Load(ctx context.Context) (*wallet.WalletState, error) {
	return s.load(ctx, keyState)
}

// LoadPrevious returns the snapshot replaced by the last Persist.
func (s *BoltStore) LoadPrevious(ctx context.Context) (*wallet.WalletState, error) {
	return s.load(ctx, keyPrevious)
}

// Revisions returns how many snapshots have been persisted.
func (s *BoltStore) Revisions() (uint64, error) {
	var n uint64
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = bytesUint64(tx.Bucket(bucketMeta).Get(keyRevisions))
		return nil
	})
	return n, err
}

func (s *BoltStore) load(ctx context.Context, key []byte) (*wallet.WalletState, error) {
	if err := ctx.Err(); err != nil {
		return nil, persistError("load", err)
	}

	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketWallet).Get(key); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, persistError("read state", err)
	}
	if data == nil {
		return nil, ErrNotFound
	}

	var state wallet.WalletState
	if err := decodeGob(data, &state); err != nil {
		return nil, persistError("decode state", err)
	}
	if err := state.Validate(); err != nil {
		return nil, persistError("validate state", err)
	}
	return &state, nil
}

func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func uint64Bytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func bytesUint64(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}
