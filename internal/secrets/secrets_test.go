package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"testing"
)

const testSecret = "unit-test-shared-secret"

// encryptRaw produces iv and ciphertext without any encoding applied, so
// tests can re-encode them in each historical layout.
func encryptRaw(t *testing.T, sharedSecret, plaintext string) (iv, ct []byte) {
	t.Helper()

	sum := sha256.Sum256([]byte(sharedSecret))
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		t.Fatalf("failed to create cipher: %v", err)
	}

	iv = make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		t.Fatalf("failed to generate iv: %v", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ct = make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)
	return iv, ct
}

func TestDecryptAllLayouts(t *testing.T) {
	const plaintext = "app-password-123"
	iv, ct := encryptRaw(t, testSecret, plaintext)

	tests := []struct {
		name    string
		encoded string
	}{
		{
			name:    "hex pair",
			encoded: hex.EncodeToString(iv) + ":" + hex.EncodeToString(ct),
		},
		{
			name:    "base64 pair",
			encoded: base64.StdEncoding.EncodeToString(iv) + ":" + base64.StdEncoding.EncodeToString(ct),
		},
		{
			name:    "base64 blob",
			encoded: base64.StdEncoding.EncodeToString(append(append([]byte{}, iv...), ct...)),
		},
		{
			name:    "hex blob",
			encoded: hex.EncodeToString(append(append([]byte{}, iv...), ct...)),
		},
	}

	codec := NewCodec(testSecret)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := codec.Decrypt(tt.encoded)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if got != plaintext {
				t.Errorf("Decrypt() = %q, want %q", got, plaintext)
			}
		})
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	codec := NewCodec(testSecret)

	for _, plaintext := range []string{"p", "sixteen-byte-pw!", "a much longer application password with spaces"} {
		encoded, err := codec.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt(%q) error = %v", plaintext, err)
		}
		got, err := codec.Decrypt(encoded)
		if err != nil {
			t.Fatalf("Decrypt(%q) error = %v", encoded, err)
		}
		if got != plaintext {
			t.Errorf("round trip = %q, want %q", got, plaintext)
		}
	}
}

func TestDecryptFailures(t *testing.T) {
	codec := NewCodec(testSecret)

	tests := []struct {
		name    string
		encoded string
	}{
		{name: "empty", encoded: ""},
		{name: "garbage", encoded: "not-a-ciphertext"},
		{name: "hex pair short iv", encoded: "abcd:" + hex.EncodeToString(make([]byte, 32))},
		{name: "blob too short", encoded: base64.StdEncoding.EncodeToString(make([]byte, 8))},
		{name: "unaligned ciphertext", encoded: hex.EncodeToString(make([]byte, 16)) + ":" + hex.EncodeToString(make([]byte, 17))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := codec.Decrypt(tt.encoded); !errors.Is(err, ErrDecrypt) {
				t.Errorf("Decrypt() error = %v, want ErrDecrypt", err)
			}
		})
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	encoded, err := NewCodec(testSecret).Encrypt("app-password")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	other := NewCodec("a-different-shared-secret")
	if got, err := other.Decrypt(encoded); err == nil {
		// CBC with random padding can in rare cases unpad under the wrong
		// key; the decrypted value must still differ from the plaintext.
		if got == "app-password" {
			t.Error("Decrypt() with wrong key recovered the plaintext")
		}
	}
}

func TestPKCS7Unpad(t *testing.T) {
	if _, err := pkcs7Unpad([]byte{1, 2, 3}, 16); err == nil {
		t.Error("pkcs7Unpad() accepted unaligned input")
	}
	if _, err := pkcs7Unpad(append(make([]byte, 15), 17), 16); err == nil {
		t.Error("pkcs7Unpad() accepted out-of-range padding byte")
	}
	if _, err := pkcs7Unpad(append(make([]byte, 14), 1, 2), 16); err == nil {
		t.Error("pkcs7Unpad() accepted inconsistent padding")
	}
}
