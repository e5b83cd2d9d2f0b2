package keycodec

import "errors"

var (
	// ErrMalformedKey indicates the serialized key fails checksum or structural validation.
	ErrMalformedKey = errors.New("keycodec: malformed key")

	// ErrUnsupportedFormat indicates the format is unknown or not implemented
	// (e.g. EC-multiplied BIP38).
	ErrUnsupportedFormat = errors.New("keycodec: unsupported format")

	// ErrUnknownFormat indicates DetectFormat could not classify the input.
	ErrUnknownFormat = errors.New("keycodec: cannot detect key format")

	// ErrPassphraseRequired indicates a BIP38 operation was attempted without a passphrase.
	ErrPassphraseRequired = errors.New("keycodec: BIP38 passphrase required")

	// ErrBadPassphrase indicates the BIP38 passphrase does not decrypt the key.
	ErrBadPassphrase = errors.New("keycodec: BIP38 passphrase incorrect")

	// ErrNotEncodable indicates the format is one-way and cannot be produced from a key.
	ErrNotEncodable = errors.New("keycodec: format cannot be encoded")
)
