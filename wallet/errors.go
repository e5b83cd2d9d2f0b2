package wallet

import "errors"

var (
	// ErrInvalidMnemonic indicates the mnemonic fails BIP39 validation.
	ErrInvalidMnemonic = errors.New("wallet: invalid BIP39 mnemonic")

	// ErrInvalidEntropy indicates entropy bits is not 128 or 256.
	ErrInvalidEntropy = errors.New("wallet: entropy bits must be 128 or 256")

	// ErrInvalidSeed indicates the seed is empty or invalid.
	ErrInvalidSeed = errors.New("wallet: invalid seed")

	// ErrDerivationFailed indicates BIP32 key derivation failed.
	ErrDerivationFailed = errors.New("wallet: key derivation failed")

	// ErrInvalidNetwork indicates unknown network name with no custom config.
	ErrInvalidNetwork = errors.New("wallet: invalid network name")

	// ErrWrongPassword indicates an envelope failed authentication, or a
	// password was required and not supplied.
	ErrWrongPassword = errors.New("wallet: wrong password")

	// ErrCorruptEnvelope indicates an envelope is structurally invalid.
	ErrCorruptEnvelope = errors.New("wallet: corrupt envelope")

	// ErrDuplicateLabel indicates an active account already uses the label
	// and the store enforces unique labels.
	ErrDuplicateLabel = errors.New("wallet: duplicate account label")

	// ErrAccountNotFound indicates no account has the given ID.
	ErrAccountNotFound = errors.New("wallet: account not found")

	// ErrAddressNotFound indicates the legacy address is not tracked.
	ErrAddressNotFound = errors.New("wallet: legacy address not found")

	// ErrInvalidAddress indicates an address fails Base58Check validation.
	ErrInvalidAddress = errors.New("wallet: invalid address")

	// ErrKeyMismatch indicates a key does not hash to the target address.
	ErrKeyMismatch = errors.New("wallet: key does not match address")

	// ErrNilKey indicates a nil or incomplete key pair.
	ErrNilKey = errors.New("wallet: key pair is nil")

	// ErrWatchOnly indicates the legacy address holds no private key.
	ErrWatchOnly = errors.New("wallet: address is watch-only")

	// ErrAlreadyEncrypted indicates double encryption is already enabled.
	ErrAlreadyEncrypted = errors.New("wallet: double encryption already enabled")

	// ErrInvalidState indicates a deserialized WalletState fails validation.
	ErrInvalidState = errors.New("wallet: invalid wallet state")

	// ErrNetworkMismatch indicates a persisted wallet belongs to a different
	// network than the store.
	ErrNetworkMismatch = errors.New("wallet: wallet network does not match store")
)
