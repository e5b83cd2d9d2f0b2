package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bitfsorg/libwallet-go/wallet"
)

// FileStore keeps the wallet snapshot as a JSON file. Writes go to a
// temporary file in the same directory which is synced and renamed over
// the target, under an exclusive lock on {path}.lock.
type FileStore struct {
	path string
	mu   sync.Mutex
}

var _ Persister = (*FileStore)(nil)

// NewFileStore creates a store for path. The parent directory is created if
// it does not exist.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, ErrInvalidBaseDir
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, persistError("create directory", err)
	}
	return &FileStore{path: path}, nil
}

// Path returns the wallet file path.
func (fs *FileStore) Path() string { return fs.path }

// Close is a no-op; FileStore holds no open handles between calls.
func (fs *FileStore) Close() error { return nil }

// Persist atomically replaces the wallet file with state.
func (fs *FileStore) Persist(ctx context.Context, state *wallet.WalletState) error {
	if state == nil {
		return persistError("persist", fmt.Errorf("nil state"))
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return persistError("marshal state", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	lock, err := tryLock(fs.path + ".lock")
	if err != nil {
		return persistError("lock", err)
	}
	defer releaseLock(lock)

	if err := ctx.Err(); err != nil {
		return persistError("persist", err)
	}

	dir := filepath.Dir(fs.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(fs.path)+".tmp-*")
	if err != nil {
		return persistError("create temp file", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return persistError("write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return persistError("sync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return persistError("close temp file", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		return persistError("chmod temp file", err)
	}

	// Last chance to abandon the write; after the rename the new state is durable.
	if err := ctx.Err(); err != nil {
		return persistError("persist", err)
	}
	if err := os.Rename(tmpName, fs.path); err != nil {
		return persistError("rename", err)
	}
	committed = true
	syncDir(dir)
	return nil
}

// Load reads the wallet file, or returns ErrNotFound.
func (fs *FileStore) Load(ctx context.Context) (*wallet.WalletState, error) {
	if err := ctx.Err(); err != nil {
		return nil, persistError("load", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, persistError("read state", err)
	}

	var state wallet.WalletState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, persistError("decode state", err)
	}
	if err := state.Validate(); err != nil {
		return nil, persistError("validate state", err)
	}
	return &state, nil
}

// syncDir flushes the directory entry after a rename. Errors are ignored:
// not every platform supports syncing a directory.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
