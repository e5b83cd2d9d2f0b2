// Package walletcore is the entry point of the wallet library. A Manager
// composes the account store with key import, multi-address sync and
// persistence.
package walletcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/bitfsorg/libwallet-go/keycodec"
	"github.com/bitfsorg/libwallet-go/network"
	"github.com/bitfsorg/libwallet-go/storage"
	"github.com/bitfsorg/libwallet-go/wallet"
)

// DefaultSyncTimeout bounds one UpdateMultiAddress call.
const DefaultSyncTimeout = 30 * time.Second

// Manager serves the wallet operations. It is safe for concurrent use; the
// store serializes mutations.
type Manager struct {
	store     *wallet.Store
	sync      network.SyncClient
	persister storage.Persister

	log         *log.Entry
	metrics     *Metrics
	limit       int
	offset      int
	syncTimeout time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. The default is the logrus standard logger.
func WithLogger(logger log.FieldLogger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.log = logger.WithField("component", "walletcore")
		}
	}
}

// WithMetrics records operation outcomes in metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// WithPaging sets the default transaction page used by UpdateMultiAddress.
func WithPaging(limit, offset int) Option {
	return func(m *Manager) {
		m.limit = limit
		m.offset = offset
	}
}

// WithSyncTimeout bounds each UpdateMultiAddress call. Zero disables the
// bound.
func WithSyncTimeout(d time.Duration) Option {
	return func(m *Manager) { m.syncTimeout = d }
}

// New creates a Manager over store. sync and persister may be nil, in which
// case UpdateMultiAddress and Save/Load fail with ErrNoSyncClient and
// ErrNoPersister.
func New(store *wallet.Store, sync network.SyncClient, persister storage.Persister, opts ...Option) *Manager {
	m := &Manager{
		store:       store,
		sync:        sync,
		persister:   persister,
		log:         log.StandardLogger().WithField("component", "walletcore"),
		limit:       network.DefaultPageSize,
		offset:      network.DefaultOffset,
		syncTimeout: DefaultSyncTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the underlying account store.
func (m *Manager) Store() *wallet.Store { return m.store }

// Close releases the persister.
func (m *Manager) Close() error {
	if m.persister == nil {
		return nil
	}
	return m.persister.Close()
}

// CreateNewAccount adds an account labelled label.
func (m *Manager) CreateNewAccount(ctx context.Context, label string, pw wallet.Password) (*wallet.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	account, err := m.store.AddAccount(label, pw)
	m.metrics.observe("create_account", err)
	if err != nil {
		m.log.WithField("op", "create_account").WithError(err).Warn("account not created")
		return nil, err
	}
	m.log.WithFields(log.Fields{
		"op":      "create_account",
		"account": account.ID,
		"index":   account.Index,
	}).Info("account created")
	return account, nil
}

// SetPrivateKey stores kp under the address derived from it.
func (m *Manager) SetPrivateKey(ctx context.Context, kp *wallet.KeyPair, pw wallet.Password) (*wallet.LegacyAddress, error) {
	return m.setKey(ctx, "set_private_key", kp, "", pw)
}

// SetKeyForLegacyAddress stores kp for address, which must be the address
// kp derives to.
func (m *Manager) SetKeyForLegacyAddress(ctx context.Context, kp *wallet.KeyPair, address string, pw wallet.Password) (*wallet.LegacyAddress, error) {
	return m.setKey(ctx, "set_legacy_key", kp, address, pw)
}

func (m *Manager) setKey(ctx context.Context, op string, kp *wallet.KeyPair, address string, pw wallet.Password) (*wallet.LegacyAddress, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if kp == nil {
		return nil, wallet.ErrNilKey
	}
	entry, err := m.store.AssociateKey(kp, address, pw)
	m.metrics.observe(op, err)
	logger := m.log.WithField("op", op)
	if address != "" {
		logger = logger.WithField("address", address)
	}
	if err != nil {
		logger.WithError(err).Warn("key not stored")
		return nil, err
	}
	logger.WithField("address", entry.Address).Info("key stored")
	return entry, nil
}

// GetKeyFromImportedData decodes data in format. The store's network is used
// unless opts override it.
func (m *Manager) GetKeyFromImportedData(ctx context.Context, format keycodec.Format, data string, opts ...keycodec.Option) (*wallet.KeyPair, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts = append([]keycodec.Option{keycodec.WithNetwork(m.store.Network())}, opts...)
	kp, err := keycodec.Decode(format, data, opts...)
	m.metrics.observe("import_key", err)
	if err != nil {
		m.log.WithFields(log.Fields{"op": "import_key", "format": format.String()}).
			WithError(err).Warn("key import failed")
		return nil, err
	}
	return kp, nil
}

// UpdateLegacyAddress records addr's label and tag. Key material is not
// touched.
func (m *Manager) UpdateLegacyAddress(ctx context.Context, addr wallet.LegacyAddress) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := m.store.RecordLegacyAddress(addr)
	m.metrics.observe("update_legacy_address", err)
	logger := m.log.WithFields(log.Fields{"op": "update_legacy_address", "address": addr.Address})
	if err != nil {
		logger.WithError(err).Warn("legacy address not recorded")
		return err
	}
	logger.Debug("legacy address recorded")
	return nil
}

// SyncOption adjusts one UpdateMultiAddress call.
type SyncOption func(*syncRequest)

type syncRequest struct {
	addrs  []string
	limit  int
	offset int
}

// WithAddresses restricts the sync to addrs instead of the store's active
// addresses. An empty list syncs no addresses.
func WithAddresses(addrs ...string) SyncOption {
	return func(r *syncRequest) { r.addrs = append([]string{}, addrs...) }
}

// WithLimit sets the transaction page size.
func WithLimit(limit int) SyncOption {
	return func(r *syncRequest) { r.limit = limit }
}

// WithOffset sets the transaction page offset.
func WithOffset(offset int) SyncOption {
	return func(r *syncRequest) { r.offset = offset }
}

// UpdateMultiAddress fetches remote state for the wallet's addresses and
// replaces the stored multi-address snapshot. On failure or cancellation the
// store is left as it was and the error wraps ErrSyncUnavailable.
func (m *Manager) UpdateMultiAddress(ctx context.Context, opts ...SyncOption) (*wallet.MultiAddressState, error) {
	if m.sync == nil {
		return nil, ErrNoSyncClient
	}
	req := syncRequest{limit: m.limit, offset: m.offset}
	for _, opt := range opts {
		opt(&req)
	}
	if req.limit <= 0 || req.offset < 0 {
		return nil, fmt.Errorf("%w: limit %d, offset %d", ErrInvalidSyncRange, req.limit, req.offset)
	}
	if req.addrs == nil {
		req.addrs = m.store.ActiveAddresses()
	}

	logger := m.log.WithFields(log.Fields{
		"op":        "update_multi_address",
		"addresses": len(req.addrs),
		"limit":     req.limit,
		"offset":    req.offset,
	})

	if m.syncTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.syncTimeout)
		defer cancel()
	}

	started := time.Now()
	state, err := m.sync.FetchMultiAddress(ctx, req.addrs, req.limit, req.offset)
	if err == nil && state == nil {
		err = errors.New("empty response")
	}
	if err == nil {
		// A result that arrives after cancellation is discarded.
		err = ctx.Err()
	}
	if err != nil && !errors.Is(err, ErrSyncUnavailable) {
		err = fmt.Errorf("%w: %w", ErrSyncUnavailable, err)
	}

	var balance uint64
	if state != nil {
		balance = state.FinalBalance
	}
	m.metrics.observe("update_multi_address", err)
	m.metrics.observeSync(started, balance, err)
	if err != nil {
		logger.WithError(err).Warn("multi-address sync failed")
		return nil, err
	}

	m.store.ReplaceMultiAddress(state)
	logger.WithFields(log.Fields{
		"txs":     len(state.Txs),
		"balance": state.BalanceBTC().String(),
	}).Info("multi-address synced")
	return m.store.MultiAddress(), nil
}

// Save persists a snapshot of the wallet with a single Persist call.
func (m *Manager) Save(ctx context.Context) error {
	if m.persister == nil {
		return ErrNoPersister
	}
	state, err := m.store.Snapshot()
	if err != nil {
		err = fmt.Errorf("%w: snapshot: %w", ErrPersistence, err)
		m.metrics.observe("save", err)
		return err
	}
	err = m.persister.Persist(ctx, state)
	if err != nil && !errors.Is(err, ErrPersistence) {
		err = fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	m.metrics.observe("save", err)
	if err != nil {
		m.log.WithField("op", "save").WithError(err).Error("wallet not saved")
		return err
	}
	m.log.WithFields(log.Fields{"op": "save", "guid": state.GUID}).Debug("wallet saved")
	return nil
}

// Load replaces the store's contents with the persisted wallet. It returns
// ErrNotFound when nothing has been saved yet.
func (m *Manager) Load(ctx context.Context) error {
	if m.persister == nil {
		return ErrNoPersister
	}
	state, err := m.persister.Load(ctx)
	if err == nil {
		err = m.store.Restore(state)
	}
	m.metrics.observe("load", err)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.log.WithField("op", "load").WithError(err).Error("wallet not loaded")
		}
		return err
	}
	m.log.WithFields(log.Fields{"op": "load", "guid": state.GUID}).Info("wallet loaded")
	return nil
}
