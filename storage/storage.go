// Package storage persists wallet state to local disk.
package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/bitfsorg/libwallet-go/wallet"
)

// Persister stores whole wallet snapshots. Persist replaces the previous
// snapshot atomically: a reader sees either the old or the new state.
type Persister interface {
	Persist(ctx context.Context, state *wallet.WalletState) error
	Load(ctx context.Context) (*wallet.WalletState, error)
	Close() error
}

// Backend names accepted by Open.
const (
	BackendBolt = "bolt"
	BackendFile = "file"
)

// File names under the data directory.
const (
	BoltFileName = "wallet.db"
	JSONFileName = "wallet.json"
)

// Open returns the persister for backend rooted at dataDir.
func Open(backend, dataDir string) (Persister, error) {
	if dataDir == "" {
		return nil, ErrInvalidBaseDir
	}
	switch backend {
	case BackendBolt, "":
		return OpenBoltStore(filepath.Join(dataDir, BoltFileName))
	case BackendFile:
		return NewFileStore(filepath.Join(dataDir, JSONFileName))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

func persistError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
