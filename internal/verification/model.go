package verification

import "time"

type Table string

const (
	EmailTable         Table = "email_verification_codes"
	PasswordResetTable Table = "password_reset_codes"
)

// Code is a stored one-time code. Only the HMAC digest of the digits is
// persisted.
type Code struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	Email      string    `gorm:"size:254;not null;index"`
	CodeHash   string    `gorm:"size:64;not null"`
	CreatedAt  time.Time `gorm:"not null"`
	ExpiresAt  time.Time `gorm:"not null"`
	Attempts   int       `gorm:"not null;default:0"`
	Used       bool      `gorm:"not null;default:false"`
	VerifiedAt *time.Time
}

func (c *Code) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Issued is handed to the caller for delivery and never stored.
type Issued struct {
	Code      string
	ExpiresAt time.Time
}
