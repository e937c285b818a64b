package credstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	sealKeyLen   = 32
	sealSaltLen  = 16
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// Sealer encrypts credential entries at rest with AES-256-GCM using a key
// derived from a passphrase via argon2id.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives the sealing key from passphrase and salt.
func NewSealer(passphrase string, salt []byte) (*Sealer, error) {
	if len(salt) != sealSaltLen {
		return nil, fmt.Errorf("sealer: salt must be %d bytes, got %d", sealSaltLen, len(salt))
	}
	key := argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, sealKeyLen)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("sealer: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("sealer: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// NewSealSalt generates a fresh random salt.
func NewSealSalt() ([]byte, error) {
	salt := make([]byte, sealSaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("sealer: generate salt: %w", err)
	}
	return salt, nil
}

// Seal encrypts plaintext, prefixing the random nonce.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("sealer: generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a sealed value.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < s.aead.NonceSize() {
		return nil, fmt.Errorf("sealer: value shorter than nonce")
	}
	nonce, ciphertext := sealed[:s.aead.NonceSize()], sealed[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("sealer: open value: %w", err)
	}
	return plaintext, nil
}
