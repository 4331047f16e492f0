package profile

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const keySize = 32

var (
	ErrBadKey    = errors.New("profile: secret key must be 32 bytes (hex or base64)")
	ErrBadSealed = errors.New("profile: sealed value is corrupt or was sealed with another key")
)

// Sealer encrypts secrets at rest with NaCl secretbox. The nonce is prefixed
// to the ciphertext and the result base64 encoded.
type Sealer struct {
	key [keySize]byte
}

// ParseKey accepts a 32-byte key as 64 hex characters or standard base64.
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if b, err := hex.DecodeString(s); err == nil && len(b) == keySize {
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil && len(b) == keySize {
		return b, nil
	}
	return nil, ErrBadKey
}

// DeriveKey stretches a passphrase into a sealer key. Used only when no
// dedicated key is configured.
func DeriveKey(passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrBadKey
	}
	key := make([]byte, keySize)
	r := hkdf.New(sha256.New, []byte(passphrase), nil, []byte("llm-bridge profile sealer"))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != keySize {
		return nil, ErrBadKey
	}
	s := &Sealer{}
	copy(s.key[:], key)
	return s, nil
}

// Seal returns "" for an empty plaintext so unset fields stay unset.
func (s *Sealer) Seal(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("profile: nonce: %w", err)
	}
	out := secretbox.Seal(nonce[:], []byte(plain), &nonce, &s.key)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (s *Sealer) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(raw) < 24+secretbox.Overhead {
		return "", ErrBadSealed
	}
	var nonce [24]byte
	copy(nonce[:], raw[:24])
	plain, ok := secretbox.Open(nil, raw[24:], &nonce, &s.key)
	if !ok {
		return "", ErrBadSealed
	}
	return string(plain), nil
}
