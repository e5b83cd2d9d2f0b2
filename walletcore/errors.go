package walletcore

import (
	"errors"

	"github.com/bitfsorg/libwallet-go/keycodec"
	"github.com/bitfsorg/libwallet-go/network"
	"github.com/bitfsorg/libwallet-go/storage"
	"github.com/bitfsorg/libwallet-go/wallet"
)

// Errors surfaced by Manager. They alias the sentinels of the package that
// produces them, so errors.Is works against either name.
var (
	ErrMalformedKey     = keycodec.ErrMalformedKey
	ErrWrongPassword    = wallet.ErrWrongPassword
	ErrCorruptEnvelope  = wallet.ErrCorruptEnvelope
	ErrDuplicateLabel   = wallet.ErrDuplicateLabel
	ErrKeyMismatch      = wallet.ErrKeyMismatch
	ErrInvalidAddress   = wallet.ErrInvalidAddress
	ErrNetworkMismatch  = wallet.ErrNetworkMismatch
	ErrSyncUnavailable  = network.ErrSyncUnavailable
	ErrPersistence      = storage.ErrPersistence
	ErrNotFound         = storage.ErrNotFound
	ErrNoSyncClient     = errors.New("walletcore: no sync client configured")
	ErrNoPersister      = errors.New("walletcore: no persister configured")
	ErrInvalidSyncRange = errors.New("walletcore: invalid sync limit or offset")
)
