package domain

import "time"

type User struct {
	ID              string  `gorm:"primaryKey;size:64" json:"id"`
	Email           string  `gorm:"uniqueIndex;size:255;not null" json:"email"`
	IsEmailVerified bool    `gorm:"not null;default:false" json:"is_email_verified"`
	Name            string  `gorm:"size:255" json:"name"`
	PictureURL      *string `gorm:"size:1024" json:"picture_url,omitempty"`

	// Nil for OAuth/OTP-only accounts.
	PasswordHash *string `gorm:"size:512" json:"-"`

	// AEAD-sealed at rest; see security.FieldVault.
	TwoFactorAuthKey          *string `gorm:"size:512" json:"-"`
	TwoFactorAuthRecoveryCode *string `gorm:"size:512" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TwoFactorEnrolled reports whether logins for this user must pass the
// TOTP challenge before a session is created.
func (u *User) TwoFactorEnrolled() bool {
	return u != nil && u.TwoFactorAuthKey != nil && *u.TwoFactorAuthKey != ""
}
