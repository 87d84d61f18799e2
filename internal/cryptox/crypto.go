// Package cryptox implements the encryption-at-rest vault: a key derived
// once from the master secret and AES-256-GCM sealing of file payloads.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/dmitrijs2005/cryptexdrive/internal/common"
)

// KeySize is the length of a derived vault key (AES-256).
const KeySize = 32

// Key is a symmetric vault key.
type Key [KeySize]byte

// DeriveKey hashes the master secret into a vault key. Every process that
// shares the secret derives the same key, so the key itself is never stored
// or sent anywhere.
func DeriveKey(masterSecret []byte) Key {
	return sha256.Sum256(masterSecret)
}

func newGCM(key Key) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plaintext with AES-GCM under a fresh random nonce.
// The output layout is nonce || ciphertext || tag. The input slice is not
// modified.
func Encrypt(key Key, plaintext []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a payload produced by Encrypt. Any modification, truncation
// or wrong key yields common.ErrDecryptionFailed and no plaintext.
func Decrypt(key Key, payload []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	ns := aead.NonceSize()
	if len(payload) < ns+aead.Overhead() {
		return nil, fmt.Errorf("%w: payload too short", common.ErrDecryptionFailed)
	}

	plaintext, err := aead.Open(nil, payload[:ns], payload[ns:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

// Vault binds a derived key to Encrypt/Decrypt.
type Vault struct {
	key Key
}

// NewVault derives the vault key from masterSecret.
func NewVault(masterSecret []byte) *Vault {
	return &Vault{key: DeriveKey(masterSecret)}
}

func (v *Vault) Encrypt(plaintext []byte) ([]byte, error) {
	return Encrypt(v.key, plaintext)
}

func (v *Vault) Decrypt(payload []byte) ([]byte, error) {
	return Decrypt(v.key, payload)
}
