// Package network fetches remote balance and transaction state for wallet
// addresses.
package network

import (
	"context"
	"fmt"

	"github.com/bitfsorg/libwallet-go/wallet"
)

// DefaultPageSize and DefaultOffset are the multi-address paging defaults.
const (
	DefaultPageSize = 50
	DefaultOffset   = 0
)

// SyncClient fetches multi-address state from a remote service.
// Implementations must honour ctx cancellation and must not return a
// partially filled state together with a nil error.
type SyncClient interface {
	// FetchMultiAddress returns balances and the transaction page
	// [offset, offset+limit) for addrs. addrs may mix plain addresses and
	// account xpubs.
	FetchMultiAddress(ctx context.Context, addrs []string, limit, offset int) (*wallet.MultiAddressState, error)
}

// UTXO represents an unspent transaction output.
type UTXO struct {
	TxID          string `json:"txid"`
	Vout          uint32 `json:"vout"`
	Amount        uint64 `json:"amount"`
	ScriptPubKey  string `json:"script_pubkey"`
	Address       string `json:"address"`
	Confirmations int64  `json:"confirmations"`
}

func checkPage(limit, offset int) error {
	if limit <= 0 {
		return fmt.Errorf("%w: limit %d must be positive", ErrInvalidRequest, limit)
	}
	if offset < 0 {
		return fmt.Errorf("%w: offset %d must not be negative", ErrInvalidRequest, offset)
	}
	return nil
}

// syncError marks err as a sync failure.
func syncError(err error) error {
	return fmt.Errorf("%w: %w", ErrSyncUnavailable, err)
}
