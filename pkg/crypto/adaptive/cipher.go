// Package adaptive provides authenticated encryption with automatic
// algorithm selection.
//
// It selects the cipher based on hardware capabilities: AES-GCM where
// hardware acceleration is available, ChaCha20-Poly1305 otherwise.
package adaptive

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"
	"runtime"

	"golang.org/x/crypto/chacha20poly1305"
)

// CipherType identifies the cipher algorithm.
type CipherType string

const (
	CipherAESGCM   CipherType = "aes-gcm"
	CipherChaCha20 CipherType = "chacha20-poly1305"
)

// Cipher provides authenticated encryption.
type Cipher interface {
	// Type returns the cipher type.
	Type() CipherType

	// Encrypt encrypts plaintext with additional data. The nonce is
	// generated internally and prepended to the ciphertext.
	Encrypt(plaintext, additionalData []byte) ([]byte, error)

	// Decrypt decrypts ciphertext produced by Encrypt.
	Decrypt(ciphertext, additionalData []byte) ([]byte, error)
}

// New creates a new adaptive cipher with the given key.
// Keys of any length are accepted; they are expanded to 32 bytes
// with SHA-256.
func New(key []byte) (Cipher, error) {
	if hasAESAcceleration() {
		return NewWithType(key, CipherAESGCM)
	}
	return NewWithType(key, CipherChaCha20)
}

// NewWithType creates a cipher of the specified type.
func NewWithType(key []byte, cipherType CipherType) (Cipher, error) {
	if len(key) == 0 {
		return nil, errors.New("adaptive: empty key")
	}
	derived := sha256.Sum256(key)

	var aead cipher.AEAD
	switch cipherType {
	case CipherAESGCM:
		block, err := aes.NewCipher(derived[:])
		if err != nil {
			return nil, err
		}
		aead, err = cipher.NewGCM(block)
		if err != nil {
			return nil, err
		}
	case CipherChaCha20:
		var err error
		aead, err = chacha20poly1305.New(derived[:])
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("adaptive: unknown cipher type " + string(cipherType))
	}

	return &aeadCipher{aead: aead, kind: cipherType}, nil
}

// hasAESAcceleration reports whether AES hardware acceleration is
// likely available. Go uses AES-NI on amd64 and the ARM crypto
// extensions on arm64; other architectures prefer ChaCha20.
func hasAESAcceleration() bool {
	switch runtime.GOARCH {
	case "amd64", "arm64":
		return true
	default:
		return false
	}
}

type aeadCipher struct {
	aead cipher.AEAD
	kind CipherType
}

func (c *aeadCipher) Type() CipherType {
	return c.kind
}

func (c *aeadCipher) Encrypt(plaintext, additionalData []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return c.aead.Seal(nonce, nonce, plaintext, additionalData), nil
}

func (c *aeadCipher) Decrypt(ciphertext, additionalData []byte) ([]byte, error) {
	if len(ciphertext) < c.aead.NonceSize() {
		return nil, errors.New("adaptive: ciphertext too short")
	}
	nonce := ciphertext[:c.aead.NonceSize()]
	return c.aead.Open(nil, nonce, ciphertext[c.aead.NonceSize():], additionalData)
}
