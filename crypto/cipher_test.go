package crypto

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func mustUUID(t *testing.T, s string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(s)
	if err != nil {
		t.Fatalf("parse uuid %q: %v", s, err)
	}
	return id
}

func testKey(t *testing.T, fill byte) EncryptionKey {
	t.Helper()
	key, err := KeyFromBytes(bytes.Repeat([]byte{fill}, KeySize))
	if err != nil {
		t.Fatalf("KeyFromBytes: %v", err)
	}
	return key
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := testKey(t, 0x07)
	plaintext := []byte("workspace credentials payload")

	sealed, err := Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	got, err := Decrypt(key, sealed)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("got %q, want %q", got, plaintext)
	}
}

func TestEncryptEmptyPlaintext(t *testing.T) {
	key := testKey(t, 0x07)

	sealed, err := Encrypt(key, nil)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if len(sealed) != MinCiphertextSize {
		t.Errorf("sealed length = %d, want %d", len(sealed), MinCiphertextSize)
	}
	got, err := Decrypt(key, sealed)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d bytes, want empty", len(got))
	}
}

func TestEncryptFreshNonce(t *testing.T) {
	key := testKey(t, 0x07)
	plaintext := []byte("same input")

	a, _ := Encrypt(key, plaintext)
	b, _ := Encrypt(key, plaintext)
	if bytes.Equal(a, b) {
		t.Error("two encryptions produced identical blobs")
	}
}

func TestDecryptWrongKey(t *testing.T) {
	sealed, err := Encrypt(testKey(t, 0x01), []byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	_, err = Decrypt(testKey(t, 0x02), sealed)
	if !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("got %v, want ErrDecryptionFailed", err)
	}
}

func TestDecryptCorrupted(t *testing.T) {
	key := testKey(t, 0x07)
	sealed, err := Encrypt(key, []byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	// Flip one bit in the ciphertext body.
	sealed[NonceSize] ^= 0x01
	if _, err := Decrypt(key, sealed); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("got %v, want ErrDecryptionFailed", err)
	}
}

func TestDecryptTruncated(t *testing.T) {
	key := testKey(t, 0x07)
	for _, n := range []int{0, 1, NonceSize, MinCiphertextSize - 1} {
		_, err := Decrypt(key, make([]byte, n))
		if !errors.Is(err, ErrCiphertextTooShort) {
			t.Errorf("len %d: got %v, want ErrCiphertextTooShort", n, err)
		}
	}
}

func TestDecryptWithDerivedKeys(t *testing.T) {
	master := testKey(t, 0x09)
	wsA := master.DeriveWorkspaceKey(mustUUID(t, "11111111-1111-4111-8111-111111111111"))
	wsB := master.DeriveWorkspaceKey(mustUUID(t, "22222222-2222-4222-8222-222222222222"))

	sealed, err := Encrypt(wsA, []byte("workspace A data"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := Decrypt(wsA, sealed); err != nil {
		t.Errorf("own workspace key failed: %v", err)
	}
	if _, err := Decrypt(wsB, sealed); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("sibling workspace key: got %v, want ErrDecryptionFailed", err)
	}
}

func TestEncryptJSONRoundTrip(t *testing.T) {
	key := testKey(t, 0x03)
	in := map[string]string{"api_key": "sk-test", "region": "us-east-1"}

	sealed, err := EncryptJSON(key, in)
	if err != nil {
		t.Fatalf("EncryptJSON: %v", err)
	}

	var out map[string]string
	if err := DecryptJSON(key, sealed, &out); err != nil {
		t.Fatalf("DecryptJSON: %v", err)
	}
	if out["api_key"] != in["api_key"] || out["region"] != in["region"] {
		t.Errorf("got %v, want %v", out, in)
	}
}
