package wallet

import (
	"fmt"

	bip32 "github.com/bsv-blockchain/go-sdk/compat/bip32"
)

const (
	// PurposeBIP44 is the BIP44 purpose level.
	PurposeBIP44 = 44

	// Chain indices.
	ExternalChain = 0 // Receive addresses
	InternalChain = 1 // Change addresses

	// Hardened is the BIP32 hardened offset.
	Hardened = 0x80000000

	// MaxAccountIndex is the largest hardened account index.
	MaxAccountIndex = Hardened - 1
)

// AccountKeys holds the serialized extended keys of one BIP44 account.
type AccountKeys struct {
	XPub  string
	XPriv string
	Path  string
}

// DeriveAccountKeys derives the account-level extended keys
// m/44'/coin'/account' from a BIP39 seed.
func DeriveAccountKeys(seed []byte, network *NetworkConfig, account uint32) (*AccountKeys, error) {
	if len(seed) == 0 {
		return nil, ErrInvalidSeed
	}
	if network == nil {
		network = &MainNet
	}
	if account > MaxAccountIndex {
		return nil, fmt.Errorf("%w: account index %d exceeds BIP32 hardened boundary", ErrDerivationFailed, account)
	}

	masterKey, err := bip32.NewMaster(seed, network.chainParams())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailed, err)
	}

	// m/44'
	purpose, err := masterKey.Child(PurposeBIP44 + Hardened)
	if err != nil {
		return nil, fmt.Errorf("%w: purpose derivation: %w", ErrDerivationFailed, err)
	}

	// m/44'/coin'
	coinType, err := purpose.Child(network.CoinType + Hardened)
	if err != nil {
		return nil, fmt.Errorf("%w: coin type derivation: %w", ErrDerivationFailed, err)
	}

	// m/44'/coin'/account'
	accountKey, err := coinType.Child(account + Hardened)
	if err != nil {
		return nil, fmt.Errorf("%w: account derivation: %w", ErrDerivationFailed, err)
	}

	pub, err := accountKey.Neuter()
	if err != nil {
		return nil, fmt.Errorf("%w: neuter account key: %w", ErrDerivationFailed, err)
	}

	return &AccountKeys{
		XPub:  pub.String(),
		XPriv: accountKey.String(),
		Path:  fmt.Sprintf("m/44'/%d'/%d'", network.CoinType, account),
	}, nil
}
