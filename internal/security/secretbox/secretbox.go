// Package secretbox seals small secrets (TOTP seeds) at rest with AES-256-GCM.
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	requiredKeyLength = 32  // AES-256
	sep               = "|" // base64(nonce)|base64(ciphertext)
)

// ErrFormat is returned for ciphertexts that are not nonce|ciphertext.
var ErrFormat = errors.New("secretbox: expected base64(nonce)|base64(ciphertext)")

// Box seals and opens values with one master key.
type Box struct {
	aead cipher.AEAD
}

// New parses key as base64 (std or raw), 64-char hex, or 32 raw bytes.
func New(key string) (*Box, error) {
	k, err := parseKey(key)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &Box{aead: aead}, nil
}

// GenerateKey returns a fresh base64 key suitable for New.
func GenerateKey() (string, error) {
	k := make([]byte, requiredKeyLength)
	if _, err := rand.Read(k); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(k), nil
}

// Seal encrypts plain. aad binds the ciphertext to a context (the account id),
// so a sealed secret copied to another row fails to open.
func (b *Box) Seal(plain, aad string) (string, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce random: %w", err)
	}
	ct := b.aead.Seal(nil, nonce, []byte(plain), []byte(aad))
	return base64.StdEncoding.EncodeToString(nonce) + sep + base64.StdEncoding.EncodeToString(ct), nil
}

// Open reverses Seal with the same aad.
func (b *Box) Open(sealed, aad string) (string, error) {
	parts := strings.Split(sealed, sep)
	if len(parts) != 2 {
		return "", ErrFormat
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("decode nonce: %w", err)
	}
	ct, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(nonce) != b.aead.NonceSize() {
		return "", fmt.Errorf("secretbox: nonce is %d bytes, want %d", len(nonce), b.aead.NonceSize())
	}
	pt, err := b.aead.Open(nil, nonce, ct, []byte(aad))
	if err != nil {
		return "", fmt.Errorf("gcm auth/decrypt: %w", err)
	}
	return string(pt), nil
}

func parseKey(key string) ([]byte, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("secretbox: empty master key (generate one with: openssl rand -base64 32)")
	}
	if b, err := base64.StdEncoding.DecodeString(key); err == nil && len(b) == requiredKeyLength {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(key); err == nil && len(b) == requiredKeyLength {
		return b, nil
	}
	if len(key) == 2*requiredKeyLength {
		if b, err := hex.DecodeString(key); err == nil {
			return b, nil
		}
	}
	if len(key) == requiredKeyLength {
		return []byte(key), nil
	}
	return nil, fmt.Errorf("secretbox: master key must decode to %d bytes", requiredKeyLength)
}
