package keys

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

var log = logging.Logger("sdn-keys")

// Errors
var (
	ErrInvalidKey   = errors.New("invalid key data")
	ErrEmptyKey     = errors.New("empty key")
	ErrSealTooShort = errors.New("sealed message too short")
	ErrOpenFailed   = errors.New("failed to open sealed message")
)

const (
	// Key sizes
	Ed25519PublicKeySize = ed25519.PublicKeySize
	Ed25519SeedSize      = ed25519.SeedSize
	X25519KeySize        = curve25519.ScalarSize

	// NonceSize is the size of the random nonce prefixed to sealed messages.
	NonceSize = 24
)

// Key kinds reported by MalformedKeyError.
const (
	KindVerify  = "verify"
	KindPublic  = "public"
	KindSign    = "sign"
	KindPrivate = "private"
)

// MalformedKeyError reports key material that could not be decoded.
type MalformedKeyError struct {
	Kind string
	Hex  string
	Err  error
}

func (e *MalformedKeyError) Error() string {
	return fmt.Sprintf("malformed %s key %q: %v", e.Kind, abbreviate(e.Hex), e.Err)
}

func (e *MalformedKeyError) Unwrap() error {
	return e.Err
}

// NormalizeHex lower-cases and trims a hex key so that equal keys compare equal.
func NormalizeHex(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func decodeHex(kind, s string) ([]byte, error) {
	s = NormalizeHex(s)
	if s == "" {
		return nil, &MalformedKeyError{Kind: kind, Hex: s, Err: ErrEmptyKey}
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, &MalformedKeyError{Kind: kind, Hex: s, Err: err}
	}
	return b, nil
}

func fingerprint(key []byte) string {
	hash := sha256.Sum256(key)
	return hex.EncodeToString(hash[:8])
}

func abbreviate(s string) string {
	if len(s) > 16 {
		return s[:16] + "..."
	}
	return s
}

// Verifier is a peer's public signature verification key.
type Verifier struct {
	key []byte
}

// NewVerifier builds a Verifier from hex.
func NewVerifier(keyHex string) (*Verifier, error) {
	b, err := decodeHex(KindVerify, keyHex)
	if err != nil {
		return nil, err
	}
	return &Verifier{key: b}, nil
}

// Hex returns the lower-case hex encoding of the key.
func (v *Verifier) Hex() string {
	if v == nil {
		return ""
	}
	return hex.EncodeToString(v.key)
}

// Bytes returns a copy of the raw key.
func (v *Verifier) Bytes() []byte {
	return append([]byte(nil), v.key...)
}

// Equal reports whether both verifiers hold the same key.
func (v *Verifier) Equal(o *Verifier) bool {
	if v == nil || o == nil {
		return v == o
	}
	return bytes.Equal(v.key, o.key)
}

// Verify verifies an Ed25519 signature over msg.
func (v *Verifier) Verify(msg, sig []byte) bool {
	if v == nil || len(v.key) != Ed25519PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(v.key), msg, sig)
}

// Fingerprint returns a short printable digest of the key.
func (v *Verifier) Fingerprint() string {
	if v == nil {
		return ""
	}
	return fingerprint(v.key)
}

// Publican is a peer's public encryption key.
type Publican struct {
	key []byte
}

// NewPublican builds a Publican from hex.
func NewPublican(keyHex string) (*Publican, error) {
	b, err := decodeHex(KindPublic, keyHex)
	if err != nil {
		return nil, err
	}
	return &Publican{key: b}, nil
}

// Hex returns the lower-case hex encoding of the key.
func (p *Publican) Hex() string {
	if p == nil {
		return ""
	}
	return hex.EncodeToString(p.key)
}

// Bytes returns a copy of the raw key.
func (p *Publican) Bytes() []byte {
	return append([]byte(nil), p.key...)
}

// Equal reports whether both publicans hold the same key.
func (p *Publican) Equal(o *Publican) bool {
	if p == nil || o == nil {
		return p == o
	}
	return bytes.Equal(p.key, o.key)
}

// Fingerprint returns a short printable digest of the key.
func (p *Publican) Fingerprint() string {
	if p == nil {
		return ""
	}
	return fingerprint(p.key)
}

func (p *Publican) array() (*[X25519KeySize]byte, error) {
	if p == nil || len(p.key) != X25519KeySize {
		return nil, ErrInvalidKey
	}
	var out [X25519KeySize]byte
	copy(out[:], p.key)
	return &out, nil
}

// Signer is the local Ed25519 signing key.
type Signer struct {
	priv ed25519.PrivateKey
}

// GenerateSigner creates a new random signing key.
func GenerateSigner() (*Signer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	return &Signer{priv: priv}, nil
}

// NewSigner restores a signing key from its hex encoded seed.
func NewSigner(seedHex string) (*Signer, error) {
	seed, err := decodeHex(KindSign, seedHex)
	if err != nil {
		return nil, err
	}
	if len(seed) != Ed25519SeedSize {
		return nil, &MalformedKeyError{Kind: KindSign, Hex: seedHex, Err: ErrInvalidKey}
	}
	return &Signer{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// Hex returns the hex encoded seed. It is private key material.
func (s *Signer) Hex() string {
	return hex.EncodeToString(s.priv.Seed())
}

// Sign signs msg.
func (s *Signer) Sign(msg []byte) []byte {
	return ed25519.Sign(s.priv, msg)
}

// Verifier returns the public half of the signing key.
func (s *Signer) Verifier() *Verifier {
	pub := s.priv.Public().(ed25519.PublicKey)
	return &Verifier{key: append([]byte(nil), pub...)}
}

// Privateer is the local X25519 encryption key.
type Privateer struct {
	priv [X25519KeySize]byte
	pub  [X25519KeySize]byte
}

// GeneratePrivateer creates a new random encryption key.
func GeneratePrivateer() (*Privateer, error) {
	var priv [X25519KeySize]byte
	if _, err := rand.Read(priv[:]); err != nil {
		return nil, fmt.Errorf("failed to generate encryption key: %w", err)
	}
	// Clamp the private key per RFC 7748
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64

	return newPrivateer(priv)
}

// NewPrivateer restores an encryption key from hex.
func NewPrivateer(privHex string) (*Privateer, error) {
	b, err := decodeHex(KindPrivate, privHex)
	if err != nil {
		return nil, err
	}
	if len(b) != X25519KeySize {
		return nil, &MalformedKeyError{Kind: KindPrivate, Hex: privHex, Err: ErrInvalidKey}
	}
	var priv [X25519KeySize]byte
	copy(priv[:], b)
	return newPrivateer(priv)
}

func newPrivateer(priv [X25519KeySize]byte) (*Privateer, error) {
	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive encryption public key: %w", err)
	}
	p := &Privateer{priv: priv}
	copy(p.pub[:], pub)
	return p, nil
}

// Hex returns the hex encoded private key.
func (p *Privateer) Hex() string {
	return hex.EncodeToString(p.priv[:])
}

// Publican returns the public half of the encryption key.
func (p *Privateer) Publican() *Publican {
	return &Publican{key: append([]byte(nil), p.pub[:]...)}
}

// Seal encrypts msg for the holder of to. The random nonce is prefixed to
// the returned box.
func (p *Privateer) Seal(msg []byte, to *Publican) ([]byte, error) {
	peerKey, err := to.array()
	if err != nil {
		return nil, err
	}

	var nonce [NonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return box.Seal(nonce[:], msg, &nonce, peerKey, &p.priv), nil
}

// Open decrypts a box produced by from's Seal.
func (p *Privateer) Open(sealed []byte, from *Publican) ([]byte, error) {
	peerKey, err := from.array()
	if err != nil {
		return nil, err
	}
	if len(sealed) < NonceSize+box.Overhead {
		return nil, ErrSealTooShort
	}

	var nonce [NonceSize]byte
	copy(nonce[:], sealed[:NonceSize])

	msg, ok := box.Open(nil, sealed[NonceSize:], &nonce, peerKey, &p.priv)
	if !ok {
		log.Debugf("Failed to open box from %s", from.Fingerprint())
		return nil, ErrOpenFailed
	}
	return msg, nil
}
