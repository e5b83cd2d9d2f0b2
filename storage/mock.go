package storage

import (
	"context"
	"sync"

	"github.com/bitfsorg/libwallet-go/wallet"
)

// MockPersister is an in-memory Persister for tests. PersistFn and LoadFn
// are optional; without them the last persisted state is kept and returned.
type MockPersister struct {
	PersistFn func(ctx context.Context, state *wallet.WalletState) error
	LoadFn    func(ctx context.Context) (*wallet.WalletState, error)

	mu       sync.Mutex
	persists int
	last     *wallet.WalletState
	closed   bool
}

var _ Persister = (*MockPersister)(nil)

func (m *MockPersister) Persist(ctx context.Context, state *wallet.WalletState) error {
	m.mu.Lock()
	m.persists++
	m.mu.Unlock()

	if m.PersistFn != nil {
		if err := m.PersistFn(ctx, state); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.last = state
	m.mu.Unlock()
	return nil
}

func (m *MockPersister) Load(ctx context.Context) (*wallet.WalletState, error) {
	if m.LoadFn != nil {
		return m.LoadFn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return nil, ErrNotFound
	}
	return m.last, nil
}

func (m *MockPersister) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// PersistCalls returns how many times Persist was called.
func (m *MockPersister) PersistCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.persists
}

// Last returns the last successfully persisted state.
func (m *MockPersister) Last() *wallet.WalletState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Closed reports whether Close was called.
func (m *MockPersister) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
