package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libwallet-go/wallet"
)

func testState(t *testing.T, label string) *wallet.WalletState {
	t.Helper()
	store := wallet.NewStore(wallet.StoreOptions{KDF: wallet.LightKDF})

	_, err := store.AddAccount(label, wallet.NoPassword)
	require.NoError(t, err)

	raw := make([]byte, 32)
	raw[31] = 7
	kp, err := wallet.KeyPairFromBytes(raw, true)
	require.NoError(t, err)
	_, err = store.AssociateKey(kp, "", wallet.NewPassword("pw"))
	require.NoError(t, err)

	store.ReplaceMultiAddress(&wallet.MultiAddressState{
		FinalBalance: 12345,
		Limit:        50,
		FetchedAt:    time.Unix(1700000000, 0).UTC(),
	})

	state, err := store.Snapshot()
	require.NoError(t, err)
	return state
}

func assertSameState(t *testing.T, want, got *wallet.WalletState) {
	t.Helper()
	assert.Equal(t, want.GUID, got.GUID)
	assert.Equal(t, want.NextAccountIndex, got.NextAccountIndex)
	require.Len(t, got.Accounts, len(want.Accounts))
	assert.Equal(t, want.Accounts[0].Label, got.Accounts[0].Label)
	require.Len(t, got.LegacyAddresses, len(want.LegacyAddresses))
	assert.Equal(t, want.LegacyAddresses[0].Address, got.LegacyAddresses[0].Address)
	assert.Equal(t, want.LegacyAddresses[0].PrivateKey, got.LegacyAddresses[0].PrivateKey)
	require.NotNil(t, got.MultiAddress)
	assert.Equal(t, want.MultiAddress.FinalBalance, got.MultiAddress.FinalBalance)
	assert.True(t, want.MultiAddress.FetchedAt.Equal(got.MultiAddress.FetchedAt))
}

func openBackends(t *testing.T) map[string]Persister {
	t.Helper()
	out := make(map[string]Persister)
	for _, backend := range []string{BackendBolt, BackendFile} {
		p, err := Open(backend, t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { _ = p.Close() })
		out[backend] = p
	}
	return out
}

func TestPersister_RoundTrip(t *testing.T) {
	for name, p := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := p.Load(ctx)
			assert.ErrorIs(t, err, ErrNotFound)

			first := testState(t, "Savings")
			require.NoError(t, p.Persist(ctx, first))
			got, err := p.Load(ctx)
			require.NoError(t, err)
			assertSameState(t, first, got)

			second := testState(t, "Spending")
			require.NoError(t, p.Persist(ctx, second))
			got, err = p.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, second.GUID, got.GUID, "second persist replaces the first")
			assert.Equal(t, "Spending", got.Accounts[0].Label)
		})
	}
}

func TestPersister_CancelledContext(t *testing.T) {
	for name, p := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			err := p.Persist(ctx, testState(t, "Savings"))
			assert.ErrorIs(t, err, ErrPersistence)
			assert.ErrorIs(t, err, context.Canceled)

			_, err = p.Load(context.Background())
			assert.ErrorIs(t, err, ErrNotFound, "cancelled persist must not write")
		})
	}
}

func TestPersister_NilState(t *testing.T) {
	for name, p := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, p.Persist(context.Background(), nil), ErrPersistence)
		})
	}
}

func TestBoltStore_PreviousAndRevisions(t *testing.T) {
	s, err := OpenBoltStore(filepath.Join(t.TempDir(), "nested", BoltFileName))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	_, err = s.LoadPrevious(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	first := testState(t, "one")
	second := testState(t, "two")
	require.NoError(t, s.Persist(ctx, first))
	require.NoError(t, s.Persist(ctx, second))

	prev, err := s.LoadPrevious(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.GUID, prev.GUID)

	n, err := s.Revisions()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
}

func TestBoltStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), BoltFileName)
	state := testState(t, "Savings")

	s, err := OpenBoltStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Persist(context.Background(), state))
	require.NoError(t, s.Close())

	s, err = OpenBoltStore(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assertSameState(t, state, got)
}

func TestFileStore_AtomicWrite(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(filepath.Join(dir, JSONFileName))
	require.NoError(t, err)

	require.NoError(t, fs.Persist(context.Background(), testState(t, "Savings")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-", "temp files must be cleaned up")
	}

	info, err := os.Stat(fs.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), JSONFileName)
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0600))

	fs, err := NewFileStore(path)
	require.NoError(t, err)
	_, err = fs.Load(context.Background())
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestFileStore_InvalidState(t *testing.T) {
	path := filepath.Join(t.TempDir(), JSONFileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"guid":"not-a-uuid"}`), 0600))

	fs, err := NewFileStore(path)
	require.NoError(t, err)
	_, err = fs.Load(context.Background())
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, wallet.ErrInvalidState)
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(BackendBolt, "")
	assert.ErrorIs(t, err, ErrInvalidBaseDir)

	_, err = Open("sqlite", t.TempDir())
	assert.ErrorIs(t, err, ErrUnknownBackend)
}
