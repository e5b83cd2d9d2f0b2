package wallet

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StoreOptions configures a Store.
type StoreOptions struct {
	Network      *NetworkConfig
	KDF          KDFParams
	UniqueLabels bool   // reject duplicate labels among active accounts
	DeviceName   string // recorded on new legacy addresses
	Now          func() time.Time
}

// Store owns the accounts and legacy addresses of one wallet.
// Mutations hold the write lock for their whole duration; reads share the
// read lock.
type Store struct {
	mu    sync.RWMutex
	state *WalletState

	net          *NetworkConfig
	kdf          KDFParams
	uniqueLabels bool
	deviceName   string
	now          func() time.Time
}

// NewStore creates a Store over an empty WalletState.
func NewStore(opts StoreOptions) *Store {
	s := newStore(opts)
	s.state = NewWalletState(s.net)
	return s
}

// NewStoreFromState creates a Store over a previously persisted state.
func NewStoreFromState(state *WalletState, opts StoreOptions) (*Store, error) {
	if state == nil {
		return nil, fmt.Errorf("%w: nil state", ErrInvalidState)
	}
	if err := state.Validate(); err != nil {
		return nil, err
	}
	s := newStore(opts)
	if err := s.checkNetwork(state); err != nil {
		return nil, err
	}
	cp, err := cloneState(state)
	if err != nil {
		return nil, err
	}
	s.state = cp
	return s, nil
}

func newStore(opts StoreOptions) *Store {
	if opts.Network == nil {
		opts.Network = &MainNet
	}
	if opts.KDF == (KDFParams{}) {
		opts.KDF = DefaultKDF
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		net:          opts.Network,
		kdf:          opts.KDF,
		uniqueLabels: opts.UniqueLabels,
		deviceName:   opts.DeviceName,
		now:          opts.Now,
	}
}

// Network returns the store's network configuration.
func (s *Store) Network() *NetworkConfig {
	return s.net
}

// GUID returns the wallet identifier.
func (s *Store) GUID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.GUID
}

// DoubleEncrypted reports whether keys are protected by a second password.
func (s *Store) DoubleEncrypted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.DoubleEncryption
}

// ValidatePassword checks pw against the double-encryption password.
// It is a no-op when double encryption is off.
func (s *Store) ValidatePassword(pw Password) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkPasswordLocked(pw)
}

func (s *Store) checkPasswordLocked(pw Password) error {
	if !s.state.DoubleEncryption {
		return nil
	}
	if !pw.IsSet() {
		return fmt.Errorf("%w: second password required", ErrWrongPassword)
	}
	got, err := Open(s.state.PasswordCheck, pw)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(got, []byte(s.state.GUID)) != 1 {
		return ErrWrongPassword
	}
	return nil
}

// SetSeed installs the HD seed used to derive account keys. Under double
// encryption pw must be the second password and the seed is sealed with it.
func (s *Store) SetSeed(seed []byte, pw Password) error {
	if len(seed) == 0 {
		return ErrInvalidSeed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkPasswordLocked(pw); err != nil {
		return err
	}
	sealPW := NoPassword
	if s.state.DoubleEncryption {
		sealPW = pw
	}
	env, err := Seal(seed, sealPW, s.kdf)
	if err != nil {
		return err
	}
	s.state.Seed = env
	return nil
}

// AddAccount creates an account with the next available index. When pw is
// set the account is marked encrypted and its private material is sealed
// with pw. If the store holds an HD seed, the account's extended keys are
// derived from it.
func (s *Store) AddAccount(label string, pw Password) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.uniqueLabels {
		for _, a := range s.state.Accounts {
			if a.Label == label && !a.Archived {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateLabel, label)
			}
		}
	}

	// Guard: next account index must stay below Hardened boundary.
	if s.state.NextAccountIndex > MaxAccountIndex {
		return nil, fmt.Errorf("%w: account limit reached", ErrDerivationFailed)
	}

	if err := s.checkPasswordLocked(pw); err != nil {
		return nil, err
	}

	account := Account{
		ID:             uuid.New().String(),
		Label:          label,
		Index:          s.state.NextAccountIndex,
		ReceiveIndices: []uint32{},
		Encrypted:      pw.IsSet(),
	}

	if len(s.state.Seed) > 0 {
		seed, err := Open(s.state.Seed, pw)
		if err != nil {
			return nil, err
		}
		keys, err := DeriveAccountKeys(seed, s.net, account.Index)
		if err != nil {
			return nil, err
		}
		xpriv, err := Seal([]byte(keys.XPriv), pw, s.kdf)
		if err != nil {
			return nil, err
		}
		account.XPub = keys.XPub
		account.XPriv = xpriv
	}

	s.state.Accounts = append(s.state.Accounts, account)
	s.state.NextAccountIndex++

	out := cloneAccount(account)
	return &out, nil
}

// Account returns a copy of the account with the given ID.
func (s *Store) Account(id string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.accountIndexLocked(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	out := cloneAccount(s.state.Accounts[i])
	return &out, nil
}

// Accounts returns copies of all accounts, archived included, in creation order.
func (s *Store) Accounts() []Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Account, len(s.state.Accounts))
	for i, a := range s.state.Accounts {
		out[i] = cloneAccount(a)
	}
	return out
}

// RenameAccount changes an account label.
func (s *Store) RenameAccount(id, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.accountIndexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	if s.uniqueLabels {
		for j, a := range s.state.Accounts {
			if j != i && a.Label == label && !a.Archived {
				return fmt.Errorf("%w: %q", ErrDuplicateLabel, label)
			}
		}
	}
	s.state.Accounts[i].Label = label
	return nil
}

// ArchiveAccount deactivates or reactivates an account. The account index is
// never reused.
func (s *Store) ArchiveAccount(id string, archived bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.accountIndexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	s.state.Accounts[i].Archived = archived
	return nil
}

// NextReceiveAddressIndex hands out the account's next receive index and
// records it.
func (s *Store) NextReceiveAddressIndex(id string) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.accountIndexLocked(id)
	if i < 0 {
		return 0, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	a := &s.state.Accounts[i]
	idx := a.NextReceiveIndex
	a.ReceiveIndices = append(a.ReceiveIndices, idx)
	a.NextReceiveIndex++
	return idx, nil
}

func (s *Store) accountIndexLocked(id string) int {
	for i := range s.state.Accounts {
		if s.state.Accounts[i].ID == id {
			return i
		}
	}
	return -1
}

// AssociateKey binds kp to its legacy address, creating the entry when the
// address is unknown. address may be empty, in which case it is derived from
// kp; otherwise it must match kp.
//
// The key is sealed with pw. Under double encryption pw must be the second
// password. An existing encrypted key is only replaced when pw opens it.
// On any error the store is unchanged.
func (s *Store) AssociateKey(kp *KeyPair, address string, pw Password) (*LegacyAddress, error) {
	derived, err := kp.Address(s.net)
	if err != nil {
		return nil, err
	}
	if address != "" && address != derived {
		return nil, fmt.Errorf("%w: %s != %s", ErrKeyMismatch, derived, address)
	}

	env, err := Protect(kp, pw, s.kdf)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkPasswordLocked(pw); err != nil {
		return nil, err
	}

	i := s.legacyIndexLocked(derived)
	var entry LegacyAddress
	if i >= 0 {
		entry = s.state.LegacyAddresses[i]
		if entry.PrivateKey.Encrypted() {
			if _, err := Open(entry.PrivateKey, pw); err != nil {
				return nil, err
			}
		}
	} else {
		entry = LegacyAddress{
			Address:           derived,
			Tag:               TagActive,
			CreatedAt:         s.now().Unix(),
			CreatedDeviceName: s.deviceName,
		}
	}

	entry.PublicKey = kp.publicKeyHex()
	entry.Compressed = kp.Compressed
	entry.PrivateKey = env

	if i >= 0 {
		s.state.LegacyAddresses[i] = entry
	} else {
		s.state.LegacyAddresses = append(s.state.LegacyAddresses, entry)
	}

	out := cloneLegacy(entry)
	return &out, nil
}

// RecordLegacyAddress upserts an address entry for bookkeeping. Label and tag
// are updated on existing entries; key material, both in addr and in the
// stored entry, is never touched.
func (s *Store) RecordLegacyAddress(addr LegacyAddress) error {
	if err := ValidateAddress(addr.Address, s.net); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.legacyIndexLocked(addr.Address); i >= 0 {
		s.state.LegacyAddresses[i].Label = addr.Label
		s.state.LegacyAddresses[i].Tag = addr.Tag
		return nil
	}

	entry := LegacyAddress{
		Address:           addr.Address,
		Label:             addr.Label,
		Tag:               addr.Tag,
		CreatedAt:         addr.CreatedAt,
		CreatedDeviceName: addr.CreatedDeviceName,
	}
	if entry.CreatedAt == 0 {
		entry.CreatedAt = s.now().Unix()
	}
	if entry.CreatedDeviceName == "" {
		entry.CreatedDeviceName = s.deviceName
	}
	s.state.LegacyAddresses = append(s.state.LegacyAddresses, entry)
	return nil
}

// LegacyAddress returns a copy of the entry for addr.
func (s *Store) LegacyAddress(addr string) (*LegacyAddress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.legacyIndexLocked(addr)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrAddressNotFound, addr)
	}
	out := cloneLegacy(s.state.LegacyAddresses[i])
	return &out, nil
}

// LegacyAddresses returns copies of all legacy addresses.
func (s *Store) LegacyAddresses() []LegacyAddress {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]LegacyAddress, len(s.state.LegacyAddresses))
	for i, l := range s.state.LegacyAddresses {
		out[i] = cloneLegacy(l)
	}
	return out
}

// RevealLegacyKey decrypts the private key held for addr.
func (s *Store) RevealLegacyKey(addr string, pw Password) (*KeyPair, error) {
	s.mu.RLock()
	env := Envelope(nil)
	i := s.legacyIndexLocked(addr)
	if i >= 0 {
		env = append(env, s.state.LegacyAddresses[i].PrivateKey...)
	}
	s.mu.RUnlock()

	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrAddressNotFound, addr)
	}
	if len(env) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrWatchOnly, addr)
	}
	return Reveal(env, pw)
}

func (s *Store) legacyIndexLocked(addr string) int {
	for i := range s.state.LegacyAddresses {
		if s.state.LegacyAddresses[i].Address == addr {
			return i
		}
	}
	return -1
}

// ActiveAddresses lists what a multi-address sync should cover: the xpubs of
// active accounts followed by unarchived legacy addresses.
func (s *Store) ActiveAddresses() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for _, a := range s.state.Accounts {
		if !a.Archived && a.XPub != "" {
			out = append(out, a.XPub)
		}
	}
	for _, l := range s.state.LegacyAddresses {
		if !l.Archived() {
			out = append(out, l.Address)
		}
	}
	return out
}

// MultiAddress returns a copy of the last synced state, or nil.
func (s *Store) MultiAddress() *MultiAddressState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMultiAddress(s.state.MultiAddress)
}

// ReplaceMultiAddress overwrites the synced state.
func (s *Store) ReplaceMultiAddress(m *MultiAddressState) {
	cp := cloneMultiAddress(m)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.MultiAddress = cp
}

// EnableDoubleEncryption seals every private secret in the wallet with pw.
// Keys already encrypted must open with pw. Either every secret is
// re-sealed or the store is left unchanged.
func (s *Store) EnableDoubleEncryption(pw Password) error {
	if !pw.IsSet() {
		return fmt.Errorf("%w: second password required", ErrWrongPassword)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.DoubleEncryption {
		return ErrAlreadyEncrypted
	}

	reseal := func(env Envelope) (Envelope, error) {
		if len(env) == 0 {
			return env, nil
		}
		secret, err := Open(env, pw)
		if err != nil {
			return nil, err
		}
		return Seal(secret, pw, s.kdf)
	}

	legacy := make([]Envelope, len(s.state.LegacyAddresses))
	for i, l := range s.state.LegacyAddresses {
		env, err := reseal(l.PrivateKey)
		if err != nil {
			return fmt.Errorf("wallet: re-encrypt %s: %w", l.Address, err)
		}
		legacy[i] = env
	}
	xprivs := make([]Envelope, len(s.state.Accounts))
	for i, a := range s.state.Accounts {
		env, err := reseal(a.XPriv)
		if err != nil {
			return fmt.Errorf("wallet: re-encrypt account %q: %w", a.Label, err)
		}
		xprivs[i] = env
	}
	seed, err := reseal(s.state.Seed)
	if err != nil {
		return fmt.Errorf("wallet: re-encrypt seed: %w", err)
	}
	check, err := Seal([]byte(s.state.GUID), pw, s.kdf)
	if err != nil {
		return err
	}

	for i := range s.state.LegacyAddresses {
		s.state.LegacyAddresses[i].PrivateKey = legacy[i]
	}
	for i := range s.state.Accounts {
		s.state.Accounts[i].XPriv = xprivs[i]
		s.state.Accounts[i].Encrypted = true
	}
	s.state.Seed = seed
	s.state.PasswordCheck = check
	s.state.DoubleEncryption = true
	return nil
}

// Snapshot returns a deep copy of the wallet state. The copy is serialized
// under the read lock, so no mutation can interleave.
func (s *Store) Snapshot() (*WalletState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneState(s.state)
}

// Restore replaces the whole wallet state.
func (s *Store) Restore(state *WalletState) error {
	if state == nil {
		return fmt.Errorf("%w: nil state", ErrInvalidState)
	}
	if err := state.Validate(); err != nil {
		return err
	}
	if err := s.checkNetwork(state); err != nil {
		return err
	}
	cp, err := cloneState(state)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = cp
	return nil
}

func (s *Store) checkNetwork(state *WalletState) error {
	if state.Network != s.net.Name {
		return fmt.Errorf("%w: wallet is %q, store is %q", ErrNetworkMismatch, state.Network, s.net.Name)
	}
	return nil
}

func cloneState(state *WalletState) (*WalletState, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("wallet: marshal state: %w", err)
	}
	var out WalletState
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("wallet: unmarshal state: %w", err)
	}
	if out.Accounts == nil {
		out.Accounts = []Account{}
	}
	if out.LegacyAddresses == nil {
		out.LegacyAddresses = []LegacyAddress{}
	}
	return &out, nil
}

func cloneAccount(a Account) Account {
	a.ReceiveIndices = append([]uint32{}, a.ReceiveIndices...)
	a.XPriv = append(Envelope(nil), a.XPriv...)
	return a
}

func cloneLegacy(l LegacyAddress) LegacyAddress {
	l.PrivateKey = append(Envelope(nil), l.PrivateKey...)
	return l
}

func cloneMultiAddress(m *MultiAddressState) *MultiAddressState {
	if m == nil {
		return nil
	}
	cp := *m
	cp.Addresses = append([]AddressSummary(nil), m.Addresses...)
	cp.Txs = append([]TxSummary(nil), m.Txs...)
	return &cp
}
