package network

import (
	"context"
	"sync"

	"github.com/bitfsorg/libwallet-go/wallet"
)

// MockSyncClient is a test double for SyncClient. FetchMultiAddressFn must be
// set before FetchMultiAddress is called. Calls are recorded.
type MockSyncClient struct {
	FetchMultiAddressFn func(ctx context.Context, addrs []string, limit, offset int) (*wallet.MultiAddressState, error)

	mu    sync.Mutex
	calls []MockSyncCall
}

// MockSyncCall records the arguments of one FetchMultiAddress call.
type MockSyncCall struct {
	Addrs  []string
	Limit  int
	Offset int
}

func (m *MockSyncClient) FetchMultiAddress(ctx context.Context, addrs []string, limit, offset int) (*wallet.MultiAddressState, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockSyncCall{Addrs: append([]string(nil), addrs...), Limit: limit, Offset: offset})
	m.mu.Unlock()
	return m.FetchMultiAddressFn(ctx, addrs, limit, offset)
}

// Calls returns the recorded calls.
func (m *MockSyncClient) Calls() []MockSyncCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockSyncCall(nil), m.calls...)
}
