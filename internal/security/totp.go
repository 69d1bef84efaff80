package security

import (
	"encoding/base64"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/storegrid/identity-service/internal/apperr"
)

const (
	// TOTPKeyLength is fixed; enrollment rejects any other size.
	TOTPKeyLength = 20
	totpPeriod    = 30
	totpDigits    = otp.DigitsSix
)

// GenerateTOTPKey returns a fresh 20-byte shared secret.
func GenerateTOTPKey() []byte {
	return randomBytes(TOTPKeyLength)
}

// DecodeTOTPKey decodes a base64 key presented by a client and enforces
// the fixed key length.
func DecodeTOTPKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(key) != TOTPKeyLength {
		return nil, apperr.ErrInvalidKey
	}
	return key, nil
}

// EncodeTOTPKey is the inverse of DecodeTOTPKey.
func EncodeTOTPKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

// TOTPProvisioningURI builds the otpauth:// URI that authenticator apps
// consume (rendered as a QR code client-side).
func TOTPProvisioningURI(issuer, account string, key []byte) string {
	k, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Secret:      key,
		Period:      totpPeriod,
		Digits:      totpDigits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return ""
	}
	return k.URL()
}

// VerifyTOTP checks a 6-digit code against the key for the current
// 30-second step, allowing one step of clock skew.
func VerifyTOTP(key []byte, code string) bool {
	ok, err := totp.ValidateCustom(code, base32NoPad.EncodeToString(key), time.Now(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      1,
		Digits:    totpDigits,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
