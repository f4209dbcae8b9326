package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is a credential under the current sign-in mechanism. Its ID is
// shared with the account row it authenticates.
type Identity struct {
	ID               string `gorm:"primaryKey;size:36"`
	Email            string `gorm:"size:254;not null;uniqueIndex:auth_identities_email_key"`
	PasswordHash     string `gorm:"size:255;not null"`
	EmailConfirmedAt *time.Time
	LastSignInAt     *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (Identity) TableName() string {
	return "auth_identities"
}

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type Session struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	IdentityID  string    `json:"-"`
}
