package security

import (
	"crypto/cipher"
	"encoding/base64"
)

// FieldVault encrypts individual database fields (TOTP keys, recovery
// codes) with the server encryption key. Same wire shape as the token
// codec's outer layer: base64(iv || ciphertext || tag).
type FieldVault struct {
	aead cipher.AEAD
}

func NewFieldVault(encryptionKey []byte) (*FieldVault, error) {
	aead, err := newAESGCM(encryptionKey)
	if err != nil {
		return nil, err
	}
	return &FieldVault{aead: aead}, nil
}

func (v *FieldVault) Encrypt(plaintext []byte) (string, error) {
	sealed, err := aeadSeal(v.aead, plaintext)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (v *FieldVault) Decrypt(encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	return aeadOpen(v.aead, raw)
}

func (v *FieldVault) EncryptString(plaintext string) (string, error) {
	return v.Encrypt([]byte(plaintext))
}

func (v *FieldVault) DecryptString(encoded string) (string, error) {
	raw, err := v.Decrypt(encoded)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
