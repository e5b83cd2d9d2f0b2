package wallet

import (
	"encoding/hex"
	"fmt"
	"math/big"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	bsvhash "github.com/bsv-blockchain/go-sdk/primitives/hash"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/base58"
)

// PrivateKeyLen is the length of a serialized secp256k1 private key.
const PrivateKeyLen = 32

// KeyPair holds a public/private key pair.
// Compressed selects the public key encoding used for the address.
type KeyPair struct {
	PrivateKey *ec.PrivateKey `json:"-"`
	PublicKey  *ec.PublicKey  `json:"public_key"`
	Compressed bool           `json:"compressed"`
	Path       string         `json:"path,omitempty"` // derivation path, empty for imported keys
}

// NewKeyPair builds a KeyPair from a private key.
func NewKeyPair(priv *ec.PrivateKey, compressed bool) *KeyPair {
	return &KeyPair{
		PrivateKey: priv,
		PublicKey:  priv.PubKey(),
		Compressed: compressed,
	}
}

// KeyPairFromBytes builds a KeyPair from a raw 32-byte private key.
func KeyPairFromBytes(raw []byte, compressed bool) (*KeyPair, error) {
	if len(raw) != PrivateKeyLen {
		return nil, fmt.Errorf("%w: private key must be %d bytes, got %d", ErrNilKey, PrivateKeyLen, len(raw))
	}
	k := new(big.Int).SetBytes(raw)
	if k.Sign() == 0 || k.Cmp(btcec.S256().Params().N) >= 0 {
		return nil, fmt.Errorf("%w: private key out of range", ErrNilKey)
	}
	priv, pub := ec.PrivateKeyFromBytes(raw)
	if priv == nil || pub == nil {
		return nil, ErrNilKey
	}
	return &KeyPair{PrivateKey: priv, PublicKey: pub, Compressed: compressed}, nil
}

// PrivateKeyBytes returns the 32-byte big-endian private scalar.
func (kp *KeyPair) PrivateKeyBytes() []byte {
	b := kp.PrivateKey.Serialize()
	if len(b) == PrivateKeyLen {
		return b
	}
	// Left-pad short scalars.
	out := make([]byte, PrivateKeyLen)
	copy(out[PrivateKeyLen-len(b):], b)
	return out
}

// PublicKeyBytes returns the SEC1 public key in the encoding selected by
// Compressed.
func (kp *KeyPair) PublicKeyBytes() ([]byte, error) {
	compressed := kp.PublicKey.Compressed()
	if kp.Compressed {
		return compressed, nil
	}
	pub, err := btcec.ParsePubKey(compressed)
	if err != nil {
		return nil, fmt.Errorf("wallet: parse public key: %w", err)
	}
	return pub.SerializeUncompressed(), nil
}

// Address returns the Base58Check P2PKH address for the key on net.
func (kp *KeyPair) Address(net *NetworkConfig) (string, error) {
	if err := kp.validate(); err != nil {
		return "", err
	}
	if net == nil {
		net = &MainNet
	}
	pub, err := kp.PublicKeyBytes()
	if err != nil {
		return "", err
	}
	return base58.CheckEncode(bsvhash.Hash160(pub), net.AddressVersion), nil
}

func (kp *KeyPair) validate() error {
	if kp == nil || kp.PrivateKey == nil || kp.PublicKey == nil {
		return ErrNilKey
	}
	return nil
}

func (kp *KeyPair) publicKeyHex() string {
	pub, err := kp.PublicKeyBytes()
	if err != nil {
		return ""
	}
	return hex.EncodeToString(pub)
}

// ValidateAddress checks that addr is a Base58Check P2PKH or P2SH address
// for net.
func ValidateAddress(addr string, net *NetworkConfig) error {
	if net == nil {
		net = &MainNet
	}
	payload, version, err := base58.CheckDecode(addr)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidAddress, addr, err)
	}
	if len(payload) != 20 {
		return fmt.Errorf("%w: %q: payload is %d bytes", ErrInvalidAddress, addr, len(payload))
	}
	if version != net.AddressVersion && version != net.P2SHVersion {
		return fmt.Errorf("%w: %q: version 0x%02x not valid on %s", ErrInvalidAddress, addr, version, net.Name)
	}
	return nil
}
