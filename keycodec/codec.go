// Package keycodec decodes and encodes externally supplied private keys.
//
// Supported formats: WIF (compressed and uncompressed), raw Base58, hex,
// Base64, Casascius mini private keys and non-EC-multiplied BIP38.
package keycodec

import (
	"crypto/sha256"
	"errors"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"

	"github.com/bitfsorg/libwallet-go/wallet"
)

// Format identifies a private key serialization.
type Format int

const (
	FormatWIFCompressed Format = iota + 1
	FormatWIFUncompressed
	FormatBase58
	FormatHex
	FormatBase64
	FormatMini
	FormatBIP38
)

var formatNames = map[Format]string{
	FormatWIFCompressed:   "wif_c",
	FormatWIFUncompressed: "wif_u",
	FormatBase58:          "base58",
	FormatHex:             "hex",
	FormatBase64:          "base64",
	FormatMini:            "mini",
	FormatBIP38:           "bip38",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ParseFormat maps a format name ("wif_c", "bip38", ...) to a Format.
func ParseFormat(name string) (Format, error) {
	for f, n := range formatNames {
		if strings.EqualFold(n, name) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

type options struct {
	passphrase string
	network    *wallet.NetworkConfig
}

// Option configures Decode and Encode.
type Option func(*options)

// WithPassphrase supplies the BIP38 passphrase.
func WithPassphrase(passphrase string) Option {
	return func(o *options) { o.passphrase = passphrase }
}

// WithNetwork selects the WIF and address version bytes. Default mainnet.
func WithNetwork(net *wallet.NetworkConfig) Option {
	return func(o *options) { o.network = net }
}

func buildOptions(opts []Option) options {
	o := options{network: &wallet.MainNet}
	for _, fn := range opts {
		fn(&o)
	}
	if o.network == nil {
		o.network = &wallet.MainNet
	}
	return o
}

// Decode parses data in the given format into a key pair.
// Raw formats (Base58, hex, Base64) yield compressed keys; mini keys are
// uncompressed. Only canonical text is accepted (lowercase hex, strict
// padded Base64), so every decodable input except a mini key re-encodes to
// itself.
func Decode(format Format, data string, opts ...Option) (*wallet.KeyPair, error) {
	o := buildOptions(opts)
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedKey)
	}

	switch format {
	case FormatWIFCompressed:
		return decodeWIF(data, true, o.network)
	case FormatWIFUncompressed:
		return decodeWIF(data, false, o.network)
	case FormatBase58:
		raw := base58.Decode(data)
		return rawKey(raw, "base58")
	case FormatHex:
		raw, err := decodeHex(data)
		if err != nil {
			return nil, fmt.Errorf("%w: hex: %w", ErrMalformedKey, err)
		}
		return rawKey(raw, "hex")
	case FormatBase64:
		raw, err := base64.StdEncoding.Strict().DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("%w: base64: %w", ErrMalformedKey, err)
		}
		return rawKey(raw, "base64")
	case FormatMini:
		return decodeMini(data)
	case FormatBIP38:
		return decodeBIP38(data, o)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// Encode serializes kp in the given format. FormatMini is hash-derived and
// returns ErrNotEncodable.
func Encode(format Format, kp *wallet.KeyPair, opts ...Option) (string, error) {
	if kp == nil || kp.PrivateKey == nil {
		return "", wallet.ErrNilKey
	}
	o := buildOptions(opts)
	raw := kp.PrivateKeyBytes()

	switch format {
	case FormatWIFCompressed:
		return encodeWIF(raw, true, o.network), nil
	case FormatWIFUncompressed:
		return encodeWIF(raw, false, o.network), nil
	case FormatBase58:
		return base58.Encode(raw), nil
	case FormatHex:
		return hex.EncodeToString(raw), nil
	case FormatBase64:
		return base64.StdEncoding.EncodeToString(raw), nil
	case FormatMini:
		return "", fmt.Errorf("%w: %s", ErrNotEncodable, format)
	case FormatBIP38:
		return encodeBIP38(kp, o)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// DetectFormat guesses the format of a serialized key.
func DetectFormat(data string) (Format, error) {
	data = strings.TrimSpace(data)

	if payload, version, err := base58.CheckDecode(data); err == nil {
		switch {
		case version == 0x01 && len(payload) == bip38PayloadLen-1 && (payload[0] == bip38NonEC || payload[0] == bip38EC):
			return FormatBIP38, nil
		case isWIFVersion(version) && len(payload) == wallet.PrivateKeyLen:
			return FormatWIFUncompressed, nil
		case isWIFVersion(version) && len(payload) == wallet.PrivateKeyLen+1 && payload[wallet.PrivateKeyLen] == 0x01:
			return FormatWIFCompressed, nil
		}
	}

	if len(data) == 2*wallet.PrivateKeyLen {
		if _, err := decodeHex(data); err == nil {
			return FormatHex, nil
		}
	}

	if validMini(data) {
		return FormatMini, nil
	}

	if strings.HasSuffix(data, "=") {
		if raw, err := base64.StdEncoding.Strict().DecodeString(data); err == nil && len(raw) == wallet.PrivateKeyLen {
			return FormatBase64, nil
		}
	}

	if raw := base58.Decode(data); len(raw) == wallet.PrivateKeyLen {
		return FormatBase58, nil
	}

	return 0, ErrUnknownFormat
}

// decodeHex accepts lowercase hex only.
func decodeHex(data string) ([]byte, error) {
	if data != strings.ToLower(data) {
		return nil, errors.New("not lowercase")
	}
	return hex.DecodeString(data)
}

func isWIFVersion(v byte) bool {
	return v == wallet.MainNet.WIFVersion || v == wallet.TestNet.WIFVersion
}

func rawKey(raw []byte, name string) (*wallet.KeyPair, error) {
	if len(raw) != wallet.PrivateKeyLen {
		return nil, fmt.Errorf("%w: %s key is %d bytes", ErrMalformedKey, name, len(raw))
	}
	kp, err := wallet.KeyPairFromBytes(raw, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedKey, err)
	}
	return kp, nil
}

// decodeWIF parses version(1) || key(32) [|| 0x01] with a Base58Check checksum.
func decodeWIF(data string, compressed bool, net *wallet.NetworkConfig) (*wallet.KeyPair, error) {
	payload, version, err := base58.CheckDecode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: wif: %w", ErrMalformedKey, err)
	}
	if version != net.WIFVersion {
		return nil, fmt.Errorf("%w: wif version 0x%02x, want 0x%02x", ErrMalformedKey, version, net.WIFVersion)
	}

	want := wallet.PrivateKeyLen
	if compressed {
		want++
	}
	if len(payload) != want {
		return nil, fmt.Errorf("%w: wif payload is %d bytes, want %d", ErrMalformedKey, len(payload), want)
	}
	if compressed && payload[wallet.PrivateKeyLen] != 0x01 {
		return nil, fmt.Errorf("%w: wif compression flag 0x%02x", ErrMalformedKey, payload[wallet.PrivateKeyLen])
	}

	kp, err := wallet.KeyPairFromBytes(payload[:wallet.PrivateKeyLen], compressed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedKey, err)
	}
	return kp, nil
}

func encodeWIF(raw []byte, compressed bool, net *wallet.NetworkConfig) string {
	payload := make([]byte, 0, wallet.PrivateKeyLen+1)
	payload = append(payload, raw...)
	if compressed {
		payload = append(payload, 0x01)
	}
	return base58.CheckEncode(payload, net.WIFVersion)
}

// validMini checks the Casascius mini key rule: SHA256(key + "?")[0] == 0.
func validMini(data string) bool {
	if len(data) != 22 && len(data) != 26 && len(data) != 30 {
		return false
	}
	if data[0] != 'S' {
		return false
	}
	for _, c := range data {
		if !strings.ContainsRune(base58Alphabet, c) {
			return false
		}
	}
	check := sha256.Sum256([]byte(data + "?"))
	return check[0] == 0
}

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

func decodeMini(data string) (*wallet.KeyPair, error) {
	if !validMini(data) {
		return nil, fmt.Errorf("%w: mini key fails check", ErrMalformedKey)
	}
	key := sha256.Sum256([]byte(data))
	kp, err := wallet.KeyPairFromBytes(key[:], false)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedKey, err)
	}
	return kp, nil
}
