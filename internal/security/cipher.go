package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

// ivSize is deliberately 16 bytes rather than GCM's default 12; the sealed
// wire format is iv || ciphertext || tag.
const ivSize = 16

var errCiphertextTooShort = errors.New("ciphertext too short")

func newAESGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, ivSize)
}

func aeadSeal(aead cipher.AEAD, plaintext []byte) ([]byte, error) {
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}
	return aead.Seal(iv, iv, plaintext, nil), nil
}

func aeadOpen(aead cipher.AEAD, data []byte) ([]byte, error) {
	if len(data) < ivSize+aead.Overhead() {
		return nil, errCiphertextTooShort
	}
	return aead.Open(nil, data[:ivSize], data[ivSize:], nil)
}
