// Package crypto seals attachment bodies and MFA secrets at rest with
// AES-256-GCM. Without a key bodies pass through unchanged, so callers store
// whether a body was actually sealed and hand that flag back to Open.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

// sealed layout: version(1) || nonce || ciphertext+tag
const sealVersion byte = 1

var (
	ErrCiphertextTooShort = errors.New("ciphertext too short")
	ErrUnknownVersion     = errors.New("unknown sealed body version")
	ErrNoKey              = errors.New("encrypted object but no data encryption key configured")
)

type Service struct {
	aead cipher.AEAD
}

// New accepts a 32 byte key given as hex, base64 or raw text. An empty key
// yields a pass-through service.
func New(key string) (*Service, error) {
	if key == "" {
		return &Service{}, nil
	}
	raw := decodeKey(key)
	if len(raw) != 32 {
		return nil, fmt.Errorf("DATA_ENCRYPTION_KEY must be 32 bytes after decoding, got %d", len(raw))
	}
	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Service{aead: aead}, nil
}

func decodeKey(key string) []byte {
	if len(key) == 64 {
		if raw, err := hex.DecodeString(key); err == nil {
			return raw
		}
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding} {
		if raw, err := enc.DecodeString(key); err == nil && len(raw) == 32 {
			return raw
		}
	}
	return []byte(key)
}

func (s *Service) Configured() bool {
	return s != nil && s.aead != nil
}

// Seal encrypts a body with a fresh nonce and reports whether it did.
func (s *Service) Seal(plain []byte) ([]byte, bool, error) {
	if !s.Configured() || len(plain) == 0 {
		return plain, false, nil
	}
	n := s.aead.NonceSize()
	out := make([]byte, 1+n, 1+n+len(plain)+s.aead.Overhead())
	out[0] = sealVersion
	if _, err := rand.Read(out[1:]); err != nil {
		return nil, false, fmt.Errorf("read nonce: %w", err)
	}
	return s.aead.Seal(out, out[1:1+n], plain, nil), true, nil
}

// Open reverses Seal. Bodies stored unencrypted come back as they are.
func (s *Service) Open(data []byte, encrypted bool) ([]byte, error) {
	if !encrypted {
		return data, nil
	}
	if !s.Configured() {
		return nil, ErrNoKey
	}
	n := s.aead.NonceSize()
	if len(data) < 1+n+s.aead.Overhead() {
		return nil, ErrCiphertextTooShort
	}
	if data[0] != sealVersion {
		return nil, ErrUnknownVersion
	}
	return s.aead.Open(nil, data[1:1+n], data[1+n:], nil)
}
