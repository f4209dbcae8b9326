package account

import (
	"strings"
	"time"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusPaid     Status = "paid"
)

var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusPaid},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusPaid:
		return true
	}
	return false
}

// CanTransitionTo reports whether s may move to next. Rejected and paid are
// terminal.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Account struct {
	ID                 string  `gorm:"primaryKey;size:36"`
	Email              string  `gorm:"size:254;not null;uniqueIndex:users_email_key"`
	Nickname           string  `gorm:"size:32;not null;uniqueIndex:users_nickname_key"`
	LegacyPasswordHash *string `gorm:"column:password_hash;size:255"`
	Phone              string  `gorm:"size:32;not null"`
	Telegram           string  `gorm:"size:64;not null"`
	AvatarKey          string  `gorm:"size:512;not null"`
	Description        string  `gorm:"not null"`
	HasPets            bool    `gorm:"not null"`
	Pets               string  `gorm:"not null"`
	Allergies          string  `gorm:"not null"`
	EmailSubscribed    bool    `gorm:"not null"`
	Status             Status  `gorm:"size:16;not null"`
	EmailVerified      bool    `gorm:"not null"`
	EmailVerifiedAt    *time.Time
	IsAdmin            bool    `gorm:"not null"`
	TeamID             *string `gorm:"size:64"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (Account) TableName() string {
	return "users"
}

func (a *Account) HasLegacyPassword() bool {
	return a.LegacyPasswordHash != nil && *a.LegacyPasswordHash != ""
}

// UnverifiedExpired reports whether the account never verified its email and
// has outlived the grace period.
func (a *Account) UnverifiedExpired(grace time.Duration, now time.Time) bool {
	return !a.EmailVerified && !a.HasLegacyPassword() && now.Sub(a.CreatedAt) > grace
}

// ProfileUpdate carries the user-editable fields. Nil fields are left alone.
type ProfileUpdate struct {
	Nickname        *string `json:"nickname"`
	Phone           *string `json:"phone"`
	Telegram        *string `json:"telegram"`
	Description     *string `json:"description"`
	HasPets         *bool   `json:"has_pets"`
	Pets            *string `json:"pets"`
	Allergies       *string `json:"allergies"`
	EmailSubscribed *bool   `json:"email_subscribed"`
}

func (u ProfileUpdate) Empty() bool {
	return u.Nickname == nil && u.Phone == nil && u.Telegram == nil && u.Description == nil &&
		u.HasPets == nil && u.Pets == nil && u.Allergies == nil && u.EmailSubscribed == nil
}

func (u ProfileUpdate) columns() map[string]any {
	cols := make(map[string]any)
	if u.Nickname != nil {
		cols["nickname"] = *u.Nickname
	}
	if u.Phone != nil {
		cols["phone"] = *u.Phone
	}
	if u.Telegram != nil {
		cols["telegram"] = *u.Telegram
	}
	if u.Description != nil {
		cols["description"] = *u.Description
	}
	if u.HasPets != nil {
		cols["has_pets"] = *u.HasPets
	}
	if u.Pets != nil {
		cols["pets"] = *u.Pets
	}
	if u.Allergies != nil {
		cols["allergies"] = *u.Allergies
	}
	if u.EmailSubscribed != nil {
		cols["email_subscribed"] = *u.EmailSubscribed
	}
	return cols
}

func (u ProfileUpdate) apply(a *Account) {
	if u.Nickname != nil {
		a.Nickname = *u.Nickname
	}
	if u.Phone != nil {
		a.Phone = *u.Phone
	}
	if u.Telegram != nil {
		a.Telegram = *u.Telegram
	}
	if u.Description != nil {
		a.Description = *u.Description
	}
	if u.HasPets != nil {
		a.HasPets = *u.HasPets
	}
	if u.Pets != nil {
		a.Pets = *u.Pets
	}
	if u.Allergies != nil {
		a.Allergies = *u.Allergies
	}
	if u.EmailSubscribed != nil {
		a.EmailSubscribed = *u.EmailSubscribed
	}
}

// Profile is the outward view of an Account. The legacy hash and storage keys
// never leave the service.
type Profile struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	Nickname        string     `json:"nickname"`
	Phone           string     `json:"phone"`
	Telegram        string     `json:"telegram"`
	AvatarURL       string     `json:"avatar_url,omitempty"`
	Description     string     `json:"description,omitempty"`
	HasPets         bool       `json:"has_pets"`
	Pets            string     `json:"pets,omitempty"`
	Allergies       string     `json:"allergies,omitempty"`
	EmailSubscribed bool       `json:"email_subscribed"`
	Status          Status     `json:"status"`
	EmailVerified   bool       `json:"email_verified"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	IsAdmin         bool       `json:"is_admin"`
	TeamID          string     `json:"team_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ToProfile converts a stored account into its outward view. avatarURL maps a
// storage key to a public URL and may be nil.
func ToProfile(a *Account, avatarURL func(key string) string) Profile {
	p := Profile{
		ID:              a.ID,
		Email:           a.Email,
		Nickname:        a.Nickname,
		Phone:           a.Phone,
		Telegram:        a.Telegram,
		Description:     a.Description,
		HasPets:         a.HasPets,
		Pets:            a.Pets,
		Allergies:       a.Allergies,
		EmailSubscribed: a.EmailSubscribed,
		Status:          a.Status,
		EmailVerified:   a.EmailVerified,
		EmailVerifiedAt: a.EmailVerifiedAt,
		IsAdmin:         a.IsAdmin,
		CreatedAt:       a.CreatedAt,
	}
	if a.TeamID != nil {
		p.TeamID = *a.TeamID
	}
	if a.AvatarKey != "" && avatarURL != nil {
		p.AvatarURL = avatarURL(a.AvatarKey)
	}
	return p
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func clone(a *Account) *Account {
	c := *a
	if a.LegacyPasswordHash != nil {
		h := *a.LegacyPasswordHash
		c.LegacyPasswordHash = &h
	}
	if a.EmailVerifiedAt != nil {
		t := *a.EmailVerifiedAt
		c.EmailVerifiedAt = &t
	}
	if a.TeamID != nil {
		id := *a.TeamID
		c.TeamID = &id
	}
	return &c
}
