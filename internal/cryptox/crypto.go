// Package cryptox holds the server's cryptographic primitives: the at-rest
// cipher for vault secrets, key derivation and password hashing.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/passm/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// KeySize is the AES-256 key length produced by DeriveKey.
const KeySize = 32

// blobVersion prefixes every ciphertext so the layout can change later.
const blobVersion byte = 1

const nonceSize = 12

// Cipher encrypts and decrypts vault secrets with AES-256-GCM.
//
// A sealed blob is self-contained:
//
//	version (1 byte) | nonce (12 bytes) | ciphertext + GCM tag
//
// so Decrypt needs nothing but the blob and the key.
type Cipher struct {
	aead cipher.AEAD
	rand io.Reader
}

// NewCipher builds a Cipher from a 32-byte key. Nonces are read from
// crypto/rand unless random is non-nil.
func NewCipher(key []byte, random io.Reader) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", common.ErrCipher, KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCipher, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCipher, err)
	}
	if random == nil {
		random = rand.Reader
	}
	return &Cipher{aead: aead, rand: random}, nil
}

// Encrypt seals plaintext under a fresh random nonce.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	blob := make([]byte, 1+nonceSize, 1+nonceSize+len(plaintext)+c.aead.Overhead())
	blob[0] = blobVersion
	if _, err := io.ReadFull(c.rand, blob[1:]); err != nil {
		return nil, fmt.Errorf("%w: reading nonce: %v", common.ErrCipher, err)
	}
	return c.aead.Seal(blob, blob[1:1+nonceSize], plaintext, nil), nil
}

// Decrypt opens a blob produced by Encrypt. Truncated, tampered or foreign
// blobs fail with common.ErrCipher; no partial plaintext is ever returned.
func (c *Cipher) Decrypt(blob []byte) ([]byte, error) {
	if len(blob) < 1+nonceSize+c.aead.Overhead() {
		return nil, fmt.Errorf("%w: blob too short", common.ErrCipher)
	}
	if blob[0] != blobVersion {
		return nil, fmt.Errorf("%w: unknown blob version %d", common.ErrCipher, blob[0])
	}
	plaintext, err := c.aead.Open(nil, blob[1:1+nonceSize], blob[1+nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCipher, err)
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}

// Encrypt is a one-shot helper around NewCipher + Cipher.Encrypt.
func Encrypt(plaintext, key []byte) ([]byte, error) {
	c, err := NewCipher(key, nil)
	if err != nil {
		return nil, err
	}
	return c.Encrypt(plaintext)
}

// Decrypt is a one-shot helper around NewCipher + Cipher.Decrypt.
func Decrypt(blob, key []byte) ([]byte, error) {
	c, err := NewCipher(key, nil)
	if err != nil {
		return nil, err
	}
	return c.Decrypt(blob)
}

// DeriveKey stretches a configured secret into a KeySize key with argon2id.
// The same secret and salt always give the same key.
func DeriveKey(secret, salt []byte) []byte {
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, KeySize)
}

// HashPassword returns a salted bcrypt hash of raw at the given cost.
func HashPassword(raw string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", common.ErrPasswordLong
	}
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether raw matches a hash from HashPassword.
func CheckPassword(hash, raw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)) == nil
}
