package crypto

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// Sealed blob layout: nonce (24 bytes) || ciphertext || tag (16 bytes).
const (
	NonceSize = chacha20poly1305.NonceSizeX
	tagSize   = chacha20poly1305.Overhead

	// MinCiphertextSize is the smallest valid sealed blob: a nonce and a
	// tag with an empty plaintext.
	MinCiphertextSize = NonceSize + tagSize
)

var (
	// ErrCiphertextTooShort is returned when a sealed blob is shorter than
	// a nonce plus an authentication tag.
	ErrCiphertextTooShort = errors.New("ciphertext too short")

	// ErrDecryptionFailed is returned when authentication fails, either
	// because the key is wrong or the blob was tampered with.
	ErrDecryptionFailed = errors.New("decryption failed")
)

// Encrypt seals plaintext under key with XChaCha20-Poly1305 using a fresh
// random nonce. The nonce is prepended to the returned blob.
func Encrypt(key EncryptionKey, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key.bytes[:])
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	nonce := make([]byte, NonceSize, NonceSize+len(plaintext)+tagSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a sealed blob produced by Encrypt. It returns
// ErrDecryptionFailed when the key does not match or the blob has been
// modified.
func Decrypt(key EncryptionKey, sealed []byte) ([]byte, error) {
	if len(sealed) < MinCiphertextSize {
		return nil, ErrCiphertextTooShort
	}

	aead, err := chacha20poly1305.NewX(key.bytes[:])
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	nonce, ciphertext := sealed[:NonceSize], sealed[NonceSize:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// EncryptJSON marshals v and seals the result.
func EncryptJSON(key EncryptionKey, v any) ([]byte, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal plaintext: %w", err)
	}
	return Encrypt(key, plaintext)
}

// DecryptJSON opens a sealed blob and unmarshals the plaintext into v.
func DecryptJSON(key EncryptionKey, sealed []byte, v any) error {
	plaintext, err := Decrypt(key, sealed)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("unmarshal plaintext: %w", err)
	}
	return nil
}
