package wallet

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Legacy address tags.
const (
	TagActive   = 0
	TagArchived = 2
)

// Account is one BIP44 account. Accounts are never deleted, only archived.
type Account struct {
	ID               string   `json:"id"`
	Label            string   `json:"label"`
	Index            uint32   `json:"index"`             // BIP44 account index
	ReceiveIndices   []uint32 `json:"receive_indices"`   // handed-out receive indices, in order
	NextReceiveIndex uint32   `json:"next_receive_index"`
	Encrypted        bool     `json:"encrypted"`
	Archived         bool     `json:"archived"`
	XPub             string   `json:"xpub,omitempty"`
	XPriv            Envelope `json:"xpriv,omitempty"`
}

// LegacyAddress is a single-key address outside the HD hierarchy.
// PrivateKey is nil for watch-only entries.
type LegacyAddress struct {
	Address           string   `json:"addr"`
	PublicKey         string   `json:"pub,omitempty"` // hex SEC1
	Compressed        bool     `json:"compressed"`
	PrivateKey        Envelope `json:"priv,omitempty"`
	Label             string   `json:"label,omitempty"`
	Tag               int      `json:"tag"`
	CreatedAt         int64    `json:"created_time"` // unix seconds
	CreatedDeviceName string   `json:"created_device_name,omitempty"`
}

// WatchOnly reports whether the address holds no private key.
func (l *LegacyAddress) WatchOnly() bool { return len(l.PrivateKey) == 0 }

// Archived reports whether the address is archived.
func (l *LegacyAddress) Archived() bool { return l.Tag == TagArchived }

// AddressSummary is the remote view of one address.
type AddressSummary struct {
	Address       string `json:"address"`
	FinalBalance  uint64 `json:"final_balance"`
	TotalReceived uint64 `json:"total_received"`
	TotalSent     uint64 `json:"total_sent"`
	NTx           uint64 `json:"n_tx"`
}

// TxSummary is one transaction in a multi-address page.
type TxSummary struct {
	Hash        string `json:"hash"`
	Time        int64  `json:"time"`
	Result      int64  `json:"result"` // net satoshi change for the wallet
	BlockHeight uint64 `json:"block_height,omitempty"`
}

// MultiAddressState is a snapshot of remote balance and transaction data.
// It is replaced wholesale on every sync.
type MultiAddressState struct {
	Addresses     []AddressSummary `json:"addresses"`
	FinalBalance  uint64           `json:"final_balance"`
	TotalReceived uint64           `json:"total_received"`
	TotalSent     uint64           `json:"total_sent"`
	NTx           uint64           `json:"n_tx"`
	Txs           []TxSummary      `json:"txs"`
	Limit         int              `json:"limit"`
	Offset        int              `json:"offset"`
	FetchedAt     time.Time        `json:"fetched_at"`
}

// Summary returns the entry for addr, or nil.
func (m *MultiAddressState) Summary(addr string) *AddressSummary {
	for i := range m.Addresses {
		if m.Addresses[i].Address == addr {
			return &m.Addresses[i]
		}
	}
	return nil
}

// BalanceBTC returns the wallet final balance in whole coins.
func (m *MultiAddressState) BalanceBTC() decimal.Decimal {
	return decimal.New(int64(m.FinalBalance), -8)
}

// WalletState holds persisted wallet metadata.
type WalletState struct {
	GUID             string             `json:"guid"`
	Network          string             `json:"network"`
	DoubleEncryption bool               `json:"double_encryption"`
	PasswordCheck    Envelope           `json:"password_check,omitempty"`
	Seed             Envelope           `json:"seed,omitempty"`
	Accounts         []Account          `json:"accounts"`
	NextAccountIndex uint32             `json:"next_account_index"`
	LegacyAddresses  []LegacyAddress    `json:"legacy_addresses"`
	MultiAddress     *MultiAddressState `json:"multi_address,omitempty"`
}

// NewWalletState creates a new empty WalletState.
func NewWalletState(network *NetworkConfig) *WalletState {
	if network == nil {
		network = &MainNet
	}
	return &WalletState{
		GUID:            uuid.New().String(),
		Network:         network.Name,
		Accounts:        []Account{},
		LegacyAddresses: []LegacyAddress{},
	}
}

// Validate checks the integrity of a deserialized WalletState.
func (ws *WalletState) Validate() error {
	if _, err := uuid.Parse(ws.GUID); err != nil {
		return fmt.Errorf("%w: guid %q: %w", ErrInvalidState, ws.GUID, err)
	}
	if ws.DoubleEncryption && len(ws.PasswordCheck) == 0 {
		return fmt.Errorf("%w: double encryption without password check", ErrInvalidState)
	}

	ids := make(map[string]bool)
	indices := make(map[uint32]string)
	var maxIdx uint32
	for _, a := range ws.Accounts {
		if ids[a.ID] {
			return fmt.Errorf("%w: duplicate account id %s", ErrInvalidState, a.ID)
		}
		ids[a.ID] = true

		if a.Index > MaxAccountIndex {
			return fmt.Errorf("%w: account %q: index %d exceeds BIP32 hardened boundary", ErrInvalidState, a.Label, a.Index)
		}
		if prev, ok := indices[a.Index]; ok {
			return fmt.Errorf("%w: duplicate account index %d: accounts %q and %q", ErrInvalidState, a.Index, prev, a.Label)
		}
		indices[a.Index] = a.Label
		if a.Index+1 > maxIdx {
			maxIdx = a.Index + 1
		}
	}

	// NextAccountIndex must be >= max seen index + 1 (to avoid reuse).
	if ws.NextAccountIndex < maxIdx {
		return fmt.Errorf("%w: NextAccountIndex (%d) is less than max account index + 1 (%d)", ErrInvalidState, ws.NextAccountIndex, maxIdx)
	}

	seen := make(map[string]bool)
	for _, l := range ws.LegacyAddresses {
		if seen[l.Address] {
			return fmt.Errorf("%w: duplicate legacy address %s", ErrInvalidState, l.Address)
		}
		seen[l.Address] = true
	}
	return nil
}
