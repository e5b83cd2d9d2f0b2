package keycodec

import (
	"crypto/aes"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
	"golang.org/x/crypto/scrypt"
	"golang.org/x/text/unicode/norm"

	"github.com/bitfsorg/libwallet-go/wallet"
)

// BIP38 layout: 0x01 || 0x42 || flag || addresshash(4) || encrypted(32).
// base58.CheckEncode carries the leading 0x01 as the version byte.
const (
	bip38Version    = 0x01
	bip38NonEC      = 0x42
	bip38EC         = 0x43
	bip38PayloadLen = 39

	bip38FlagUncompressed = 0xc0
	bip38FlagCompressed   = 0xe0

	bip38ScryptN      = 16384
	bip38ScryptR      = 8
	bip38ScryptP      = 8
	bip38DerivedLen   = 64
	bip38AddrHashLen  = 4
	bip38PayloadStart = 2 + bip38AddrHashLen
)

func decodeBIP38(data string, o options) (*wallet.KeyPair, error) {
	payload, version, err := base58.CheckDecode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: bip38: %w", ErrMalformedKey, err)
	}
	if version != bip38Version || len(payload) != bip38PayloadLen-1 {
		return nil, fmt.Errorf("%w: bip38: bad prefix or length", ErrMalformedKey)
	}
	switch payload[0] {
	case bip38NonEC:
	case bip38EC:
		return nil, fmt.Errorf("%w: EC-multiplied bip38", ErrUnsupportedFormat)
	default:
		return nil, fmt.Errorf("%w: bip38 type 0x%02x", ErrMalformedKey, payload[0])
	}

	var compressed bool
	switch payload[1] {
	case bip38FlagCompressed:
		compressed = true
	case bip38FlagUncompressed:
	default:
		return nil, fmt.Errorf("%w: bip38 flag 0x%02x", ErrMalformedKey, payload[1])
	}
	if o.passphrase == "" {
		return nil, ErrPassphraseRequired
	}

	addrHash := payload[2:bip38PayloadStart]
	encrypted := payload[bip38PayloadStart:]

	half1, half2, err := bip38Derive(o.passphrase, addrHash)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(half2)
	if err != nil {
		return nil, fmt.Errorf("keycodec: bip38 cipher: %w", err)
	}

	raw := make([]byte, wallet.PrivateKeyLen)
	for off := 0; off < wallet.PrivateKeyLen; off += aes.BlockSize {
		block.Decrypt(raw[off:off+aes.BlockSize], encrypted[off:off+aes.BlockSize])
	}
	subtle.XORBytes(raw, raw, half1)

	kp, err := wallet.KeyPairFromBytes(raw, compressed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadPassphrase, err)
	}
	got, err := bip38AddressHash(kp, o.network)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare(got, addrHash) != 1 {
		return nil, ErrBadPassphrase
	}
	return kp, nil
}

func encodeBIP38(kp *wallet.KeyPair, o options) (string, error) {
	if o.passphrase == "" {
		return "", ErrPassphraseRequired
	}
	addrHash, err := bip38AddressHash(kp, o.network)
	if err != nil {
		return "", err
	}
	half1, half2, err := bip38Derive(o.passphrase, addrHash)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(half2)
	if err != nil {
		return "", fmt.Errorf("keycodec: bip38 cipher: %w", err)
	}

	xored := make([]byte, wallet.PrivateKeyLen)
	subtle.XORBytes(xored, kp.PrivateKeyBytes(), half1)

	flag := byte(bip38FlagUncompressed)
	if kp.Compressed {
		flag = bip38FlagCompressed
	}
	payload := make([]byte, bip38PayloadLen-1)
	payload[0] = bip38NonEC
	payload[1] = flag
	copy(payload[2:], addrHash)
	for off := 0; off < wallet.PrivateKeyLen; off += aes.BlockSize {
		block.Encrypt(payload[bip38PayloadStart+off:], xored[off:off+aes.BlockSize])
	}
	return base58.CheckEncode(payload, bip38Version), nil
}

// bip38Derive returns the XOR mask and AES key for a passphrase.
// Passphrases are NFC-normalized before hashing.
func bip38Derive(passphrase string, salt []byte) (half1, half2 []byte, err error) {
	pass := norm.NFC.Bytes([]byte(passphrase))
	derived, err := scrypt.Key(pass, salt, bip38ScryptN, bip38ScryptR, bip38ScryptP, bip38DerivedLen)
	if err != nil {
		return nil, nil, fmt.Errorf("keycodec: bip38 scrypt: %w", err)
	}
	return derived[:32], derived[32:], nil
}

// bip38AddressHash is the first four bytes of SHA256d(address).
func bip38AddressHash(kp *wallet.KeyPair, net *wallet.NetworkConfig) ([]byte, error) {
	addr, err := kp.Address(net)
	if err != nil {
		return nil, err
	}
	first := sha256.Sum256([]byte(addr))
	second := sha256.Sum256(first[:])
	return second[:bip38AddrHashLen], nil
}
