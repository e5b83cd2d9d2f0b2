package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	// Argon2id defaults for envelope encryption.
	Argon2Time        = 3
	Argon2Memory      = 64 * 1024 // 64 MB
	Argon2Parallelism = 4
	Argon2KeyLen      = 32

	// Encryption format sizes.
	SaltLen     = 16
	NonceLen    = 12
	ChecksumLen = 4

	// Envelope versions.
	EnvelopePlain     byte = 0x00
	EnvelopeArgon2GCM byte = 0x01

	// version(1) || time(4) || memory(4) || threads(1)
	envelopeHeaderLen = 1 + 4 + 4 + 1

	// Upper bounds on KDF parameters accepted from an envelope header.
	MaxKDFTime        = 16
	MaxKDFMemory      = 1 << 20 // 1 GiB
	MaxKDFParallelism = 16
)

// Password is an optional secret. The zero value is NoPassword, which
// disables encryption.
type Password struct {
	value string
	set   bool
}

// NoPassword means "no encryption".
var NoPassword = Password{}

// NewPassword wraps s. An empty s yields NoPassword.
func NewPassword(s string) Password {
	if s == "" {
		return NoPassword
	}
	return Password{value: s, set: true}
}

// IsSet reports whether a password was supplied.
func (p Password) IsSet() bool { return p.set }

// String never reveals the secret.
func (p Password) String() string {
	if p.set {
		return "Password(***)"
	}
	return "Password(none)"
}

// KDFParams tunes Argon2id for envelope encryption.
type KDFParams struct {
	Time        uint32 `json:"time"`
	Memory      uint32 `json:"memory"` // KiB
	Parallelism uint8  `json:"parallelism"`
}

// DefaultKDF matches the parameters used for wallet seed encryption.
var DefaultKDF = KDFParams{Time: Argon2Time, Memory: Argon2Memory, Parallelism: Argon2Parallelism}

// LightKDF is cheap enough for tests and low-power devices.
var LightKDF = KDFParams{Time: 1, Memory: 1024, Parallelism: 1}

// valid reports whether every parameter is non-zero and within the maximums.
func (p KDFParams) valid() bool {
	return p.Time > 0 && p.Time <= MaxKDFTime &&
		p.Memory > 0 && p.Memory <= MaxKDFMemory &&
		p.Parallelism > 0 && p.Parallelism <= MaxKDFParallelism
}

func (p KDFParams) normalize() KDFParams {
	if p.Time == 0 {
		p.Time = 1
	}
	if p.Memory == 0 {
		p.Memory = 8
	}
	if p.Parallelism == 0 {
		p.Parallelism = 1
	}
	return p
}

// Envelope is a versioned container for secret bytes.
//
// Plain:     0x00 || secret
// Encrypted: 0x01 || time(4) || memory(4) || threads(1) || salt(16) || nonce(12) || AES-GCM(secret||checksum)
//
// The checksum is SHA256(secret)[:4].
type Envelope []byte

// Encrypted reports whether the envelope carries a password layer.
func (e Envelope) Encrypted() bool {
	return len(e) > 0 && e[0] == EnvelopeArgon2GCM
}

// Seal wraps secret in an envelope. With NoPassword the envelope is plain.
func Seal(secret []byte, pw Password, params KDFParams) (Envelope, error) {
	if !pw.IsSet() {
		out := make(Envelope, 1+len(secret))
		out[0] = EnvelopePlain
		copy(out[1:], secret)
		return out, nil
	}

	params = params.normalize()
	if !params.valid() {
		return nil, fmt.Errorf("wallet: KDF parameters out of range: %+v", params)
	}

	salt := make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("wallet: failed to generate salt: %w", err)
	}

	gcm, err := newGCM(pw, salt, params)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("wallet: failed to generate nonce: %w", err)
	}

	sum := sha256.Sum256(secret)
	plaintext := make([]byte, 0, len(secret)+ChecksumLen)
	plaintext = append(plaintext, secret...)
	plaintext = append(plaintext, sum[:ChecksumLen]...)

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	out := make(Envelope, envelopeHeaderLen, envelopeHeaderLen+SaltLen+NonceLen+len(ciphertext))
	out[0] = EnvelopeArgon2GCM
	binary.BigEndian.PutUint32(out[1:5], params.Time)
	binary.BigEndian.PutUint32(out[5:9], params.Memory)
	out[9] = params.Parallelism
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return out, nil
}

// Open recovers the secret from an envelope. A plain envelope opens with
// any password. An encrypted envelope returns ErrWrongPassword when pw is
// absent or fails authentication.
func Open(env Envelope, pw Password) ([]byte, error) {
	if len(env) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrCorruptEnvelope)
	}

	switch env[0] {
	case EnvelopePlain:
		out := make([]byte, len(env)-1)
		copy(out, env[1:])
		return out, nil
	case EnvelopeArgon2GCM:
	default:
		return nil, fmt.Errorf("%w: unknown version 0x%02x", ErrCorruptEnvelope, env[0])
	}

	if len(env) < envelopeHeaderLen+SaltLen+NonceLen+ChecksumLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorruptEnvelope, len(env))
	}
	if !pw.IsSet() {
		return nil, fmt.Errorf("%w: password required", ErrWrongPassword)
	}

	params := KDFParams{
		Time:        binary.BigEndian.Uint32(env[1:5]),
		Memory:      binary.BigEndian.Uint32(env[5:9]),
		Parallelism: env[9],
	}
	if !params.valid() {
		return nil, fmt.Errorf("%w: KDF parameters out of range", ErrCorruptEnvelope)
	}

	body := env[envelopeHeaderLen:]
	salt := body[:SaltLen]
	nonce := body[SaltLen : SaltLen+NonceLen]
	ciphertext := body[SaltLen+NonceLen:]

	gcm, err := newGCM(pw, salt, params)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrWrongPassword
	}
	if len(plaintext) < ChecksumLen {
		return nil, fmt.Errorf("%w: short plaintext", ErrCorruptEnvelope)
	}

	secret := plaintext[:len(plaintext)-ChecksumLen]
	sum := sha256.Sum256(secret)
	if subtle.ConstantTimeCompare(sum[:ChecksumLen], plaintext[len(plaintext)-ChecksumLen:]) != 1 {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptEnvelope)
	}
	return secret, nil
}

func newGCM(pw Password, salt []byte, params KDFParams) (cipher.AEAD, error) {
	derivedKey := argon2.IDKey([]byte(pw.value), salt, params.Time, params.Memory, params.Parallelism, Argon2KeyLen)

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, fmt.Errorf("wallet: AES cipher creation failed: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("wallet: GCM creation failed: %w", err)
	}
	return gcm, nil
}

// Protect wraps a key pair's private key in an envelope.
func Protect(kp *KeyPair, pw Password, params KDFParams) (Envelope, error) {
	if err := kp.validate(); err != nil {
		return nil, err
	}
	secret := make([]byte, 0, PrivateKeyLen+1)
	secret = append(secret, kp.PrivateKeyBytes()...)
	if kp.Compressed {
		secret = append(secret, 1)
	} else {
		secret = append(secret, 0)
	}
	return Seal(secret, pw, params)
}

// Reveal recovers a key pair from an envelope produced by Protect.
func Reveal(env Envelope, pw Password) (*KeyPair, error) {
	secret, err := Open(env, pw)
	if err != nil {
		return nil, err
	}
	if len(secret) != PrivateKeyLen+1 || secret[PrivateKeyLen] > 1 {
		return nil, fmt.Errorf("%w: key payload is %d bytes", ErrCorruptEnvelope, len(secret))
	}
	kp, err := KeyPairFromBytes(secret[:PrivateKeyLen], secret[PrivateKeyLen] == 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptEnvelope, err)
	}
	return kp, nil
}
