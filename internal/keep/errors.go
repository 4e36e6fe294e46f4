package keep

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/spacedatanetwork/sdn-keep/internal/keys"
)

// Errors
var (
	ErrUnknownPeer = errors.New("unknown peer")
	ErrIntegrity   = errors.New("record failed integrity check")
	ErrKeyNotFound = errors.New("local keys not found")
	ErrNoKeys      = errors.New("no keys presented or on record")
)

// UnknownPeerError is returned by overrides for a peer with no record.
type UnknownPeerError struct {
	UID string
}

func (e *UnknownPeerError) Error() string {
	return fmt.Sprintf("unknown peer %s", e.UID)
}

// Is makes errors.Is(err, ErrUnknownPeer) match.
func (e *UnknownPeerError) Is(target error) bool {
	return target == ErrUnknownPeer
}

// IntegrityError is returned when a record is refused by the integrity check.
type IntegrityError struct {
	UID    string
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("record %s failed integrity check: %s", e.UID, e.Reason)
}

// Is makes errors.Is(err, ErrIntegrity) match.
func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}

// IntegrityCheck inspects a remote record before it is written. A non-nil
// error aborts the write.
type IntegrityCheck func(rec SafeRemoteRecord) error

// StrictKeyLengths requires full size Ed25519 and X25519 public keys and an
// acceptance from the known set.
func StrictKeyLengths(rec SafeRemoteRecord) error {
	if !rec.Acceptance.Valid() {
		return &IntegrityError{UID: rec.UID, Reason: fmt.Sprintf("acceptance %d out of range", int(rec.Acceptance))}
	}
	if err := checkKeyLength(rec.VerifyKeyHex, keys.Ed25519PublicKeySize); err != nil {
		return &IntegrityError{UID: rec.UID, Reason: "verify key " + err.Error()}
	}
	if err := checkKeyLength(rec.PublicKeyHex, keys.X25519KeySize); err != nil {
		return &IntegrityError{UID: rec.UID, Reason: "public key " + err.Error()}
	}
	return nil
}

func checkKeyLength(keyHex string, size int) error {
	// No key on record yet.
	if keyHex == "" {
		return nil
	}
	b, err := hex.DecodeString(keyHex)
	if err != nil {
		return errors.New("is not hex")
	}
	if len(b) != size {
		return fmt.Errorf("is %d bytes, want %d", len(b), size)
	}
	return nil
}
