// Package crypto provides the encryption primitives used to protect
// persisted provider connections: a 256-bit key type with HKDF-based
// per-workspace derivation, and an XChaCha20-Poly1305 sealed-blob cipher.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

// KeySize is the size of an XChaCha20-Poly1305 key in bytes.
const KeySize = 32

// workspaceKeyInfo is the domain separation string for workspace key
// derivation. Changing it invalidates every previously derived key.
var workspaceKeyInfo = []byte("millflow-workspace-encryption-key-v1")

// ErrInvalidKeyLength is returned when key material is not exactly 32 bytes.
var ErrInvalidKeyLength = errors.New("encryption key must be 32 bytes")

// EncryptionKey is a 256-bit key for XChaCha20-Poly1305.
//
// Keys are held in memory only. The String and GoString forms are redacted
// so keys do not leak through logging.
type EncryptionKey struct {
	bytes [KeySize]byte
}

// KeyFromBytes builds a key from raw material.
func KeyFromBytes(b []byte) (EncryptionKey, error) {
	if len(b) != KeySize {
		return EncryptionKey{}, ErrInvalidKeyLength
	}
	var k EncryptionKey
	copy(k.bytes[:], b)
	return k, nil
}

// GenerateKey creates a new random key from the platform CSPRNG.
func GenerateKey() (EncryptionKey, error) {
	var k EncryptionKey
	if _, err := io.ReadFull(rand.Reader, k.bytes[:]); err != nil {
		return EncryptionKey{}, err
	}
	return k, nil
}

// Bytes returns the raw key material.
func (k EncryptionKey) Bytes() []byte {
	out := make([]byte, KeySize)
	copy(out, k.bytes[:])
	return out
}

// DeriveWorkspaceKey derives a workspace-specific key from this master key
// using HKDF-SHA256 with the workspace UUID as salt. Derivation is
// deterministic: the same (master, workspace) pair always yields the same
// key, so previously encrypted rows stay decryptable.
func (k EncryptionKey) DeriveWorkspaceKey(workspaceID uuid.UUID) EncryptionKey {
	r := hkdf.New(sha256.New, k.bytes[:], workspaceID[:], workspaceKeyInfo)

	var derived EncryptionKey
	if _, err := io.ReadFull(r, derived.bytes[:]); err != nil {
		// HKDF cannot fail for a 32-byte read.
		panic("crypto: hkdf expand failed: " + err.Error())
	}
	return derived
}

// String returns a redacted representation.
func (k EncryptionKey) String() string {
	return "EncryptionKey([REDACTED])"
}

// GoString returns a redacted representation for %#v.
func (k EncryptionKey) GoString() string {
	return k.String()
}
