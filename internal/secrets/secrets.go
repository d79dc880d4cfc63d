// Package secrets implements the reversible encryption applied to stored
// credential secrets. Ciphertexts produced over the life of the product
// exist in several encodings; Decrypt tries each known layout in a fixed
// order and succeeds on the first structurally valid one.
package secrets

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrDecrypt is returned when no known ciphertext layout yields a valid
// plaintext. The underlying cause is intentionally not detailed further.
var ErrDecrypt = errors.New("secrets: unable to decrypt")

// Codec encrypts and decrypts credential secrets with a key derived from a
// shared secret. The derived key is held in memory only.
type Codec struct {
	key []byte
}

// NewCodec derives an AES-256 key from the shared secret via SHA-256.
func NewCodec(sharedSecret string) *Codec {
	sum := sha256.Sum256([]byte(sharedSecret))
	return &Codec{key: sum[:]}
}

// Encrypt encrypts plaintext with AES-CBC and a random IV, emitting the
// current storage convention: hex(iv):hex(ciphertext).
func (c *Codec) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ct), nil
}

// Decrypt reverses Encrypt, tolerating every historical storage layout.
// Attempt order:
//  1. hex iv ":" hex ciphertext
//  2. base64 iv ":" base64 ciphertext
//  3. single base64 blob, first 16 bytes are the IV
//  4. single hex blob, first 16 bytes are the IV
//
// The first candidate with a 16-byte IV, block-aligned ciphertext and valid
// padding wins. Failure of all four is reported as ErrDecrypt.
func (c *Codec) Decrypt(encoded string) (string, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return "", ErrDecrypt
	}

	for _, decode := range []func(string) ([]byte, []byte, bool){
		decodeHexPair,
		decodeBase64Pair,
		decodeBase64Blob,
		decodeHexBlob,
	} {
		iv, ct, ok := decode(encoded)
		if !ok {
			continue
		}
		plaintext, err := c.decryptCBC(iv, ct)
		if err != nil {
			continue
		}
		return plaintext, nil
	}

	return "", ErrDecrypt
}

func (c *Codec) decryptCBC(iv, ct []byte) (string, error) {
	if len(iv) != aes.BlockSize {
		return "", fmt.Errorf("invalid iv length %d", len(iv))
	}
	if len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return "", fmt.Errorf("ciphertext not block aligned")
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}

	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ct)

	unpadded, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(unpadded), nil
}

func decodeHexPair(s string) ([]byte, []byte, bool) {
	ivHex, ctHex, found := strings.Cut(s, ":")
	if !found {
		return nil, nil, false
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return nil, nil, false
	}
	ct, err := hex.DecodeString(ctHex)
	if err != nil {
		return nil, nil, false
	}
	return iv, ct, true
}

func decodeBase64Pair(s string) ([]byte, []byte, bool) {
	ivB64, ctB64, found := strings.Cut(s, ":")
	if !found {
		return nil, nil, false
	}
	iv, err := base64.StdEncoding.DecodeString(ivB64)
	if err != nil {
		return nil, nil, false
	}
	ct, err := base64.StdEncoding.DecodeString(ctB64)
	if err != nil {
		return nil, nil, false
	}
	return iv, ct, true
}

func decodeBase64Blob(s string) ([]byte, []byte, bool) {
	blob, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(blob) <= aes.BlockSize {
		return nil, nil, false
	}
	return blob[:aes.BlockSize], blob[aes.BlockSize:], true
}

func decodeHexBlob(s string) ([]byte, []byte, bool) {
	blob, err := hex.DecodeString(s)
	if err != nil || len(blob) <= aes.BlockSize {
		return nil, nil, false
	}
	return blob[:aes.BlockSize], blob[aes.BlockSize:], true
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}
