package security

import (
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/storegrid/identity-service/internal/apperr"
)

// TokenPurpose discriminates sealed payload variants. A token sealed for one
// purpose never unseals for another.
type TokenPurpose string

const (
	PurposeOTP             TokenPurpose = "otp"
	PurposeTwoFactorLogin  TokenPurpose = "two_factor_login"
	PurposeGoogleOAuth     TokenPurpose = "google_oauth"
	PurposeCrossDomainCode TokenPurpose = "cross_domain_code"
)

// DefaultTokenTTL applies when Seal is called with a non-positive TTL.
const DefaultTokenTTL = 10 * time.Minute

// Codec turns small payloads into opaque bearer strings: the payload is
// signed (HS256) first, then the signed artifact is encrypted with
// AES-256-GCM. Holders of the string can neither read nor alter it.
type Codec struct {
	signingSecret []byte
	aead          cipher.AEAD
}

func NewCodec(signingSecret string, encryptionKey []byte) (*Codec, error) {
	if signingSecret == "" {
		return nil, errors.New("signing secret required")
	}
	aead, err := newAESGCM(encryptionKey)
	if err != nil {
		return nil, err
	}
	return &Codec{signingSecret: []byte(signingSecret), aead: aead}, nil
}

type sealedClaims struct {
	Purpose TokenPurpose    `json:"purpose"`
	Data    json.RawMessage `json:"data"`
	jwt.RegisteredClaims
}

// Seal signs payload under purpose with an expiry of now+ttl and encrypts
// the result. The returned string is safe for cookies and URL queries.
func (c *Codec) Seal(purpose TokenPurpose, payload any, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	now := time.Now()
	claims := sealedClaims{
		Purpose: purpose,
		Data:    data,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.signingSecret)
	if err != nil {
		return "", err
	}
	sealed, err := aeadSeal(c.aead, []byte(signed))
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Unseal decrypts and verifies token, decoding its payload into out.
// It returns apperr.ErrExpiredToken when the expiry check alone failed and
// apperr.ErrInvalidToken for every other failure, revealing nothing more.
func (c *Codec) Unseal(token string, purpose TokenPurpose, out any) error {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return apperr.ErrInvalidToken
	}
	signed, err := aeadOpen(c.aead, raw)
	if err != nil {
		return apperr.ErrInvalidToken
	}
	claims := &sealedClaims{}
	tok, err := jwt.ParseWithClaims(string(signed), claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing algorithm")
		}
		return c.signingSecret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return apperr.ErrExpiredToken
		}
		return apperr.ErrInvalidToken
	}
	if !tok.Valid || claims.Purpose != purpose {
		return apperr.ErrInvalidToken
	}
	if err := json.Unmarshal(claims.Data, out); err != nil {
		return apperr.ErrInvalidToken
	}
	return nil
}
