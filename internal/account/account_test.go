package account

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusRejected, true},
		{StatusApproved, StatusPaid, true},
		{StatusPending, StatusPaid, false},
		{StatusApproved, StatusRejected, false},
		{StatusRejected, StatusApproved, false},
		{StatusPaid, StatusPending, false},
		{StatusApproved, StatusApproved, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestAccount_UnverifiedExpired(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	legacy := "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA"

	tests := []struct {
		name    string
		account Account
		want    bool
	}{
		{
			name:    "fresh unverified",
			account: Account{CreatedAt: now.Add(-5 * time.Minute)},
			want:    false,
		},
		{
			name:    "stale unverified",
			account: Account{CreatedAt: now.Add(-16 * time.Minute)},
			want:    true,
		},
		{
			name:    "stale verified",
			account: Account{CreatedAt: now.Add(-time.Hour), EmailVerified: true},
			want:    false,
		},
		{
			name:    "stale legacy account is grandfathered",
			account: Account{CreatedAt: now.Add(-time.Hour), LegacyPasswordHash: &legacy},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.account.UnverifiedExpired(15*time.Minute, now))
		})
	}
}

func TestToProfile(t *testing.T) {
	team := "stark"
	verifiedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	legacy := "secret-hash"

	a := &Account{
		ID:                 "acc-1",
		Email:              "a@b.com",
		Nickname:           "x",
		LegacyPasswordHash: &legacy,
		AvatarKey:          "avatars/acc-1/abc.png",
		Status:             StatusApproved,
		EmailVerified:      true,
		EmailVerifiedAt:    &verifiedAt,
		TeamID:             &team,
	}

	p := ToProfile(a, func(key string) string { return "https://cdn.example.com/" + key })

	assert.Equal(t, "acc-1", p.ID)
	assert.Equal(t, StatusApproved, p.Status)
	assert.Equal(t, "stark", p.TeamID)
	assert.Equal(t, "https://cdn.example.com/avatars/acc-1/abc.png", p.AvatarURL)
	assert.True(t, p.EmailVerified)

	noURL := ToProfile(a, nil)
	assert.Empty(t, noURL.AvatarURL)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@b.com", NormalizeEmail("  A@B.Com "))
}

func TestCache(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	c := NewCache(time.Minute)
	c.now = func() time.Time { return now }

	c.Put(&Account{ID: "a", Nickname: "first"})

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "first", got.Nickname)

	got.Nickname = "mutated"
	again, _ := c.Get("a")
	assert.Equal(t, "first", again.Nickname, "cache must hand out copies")

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok, "stale entries are treated as absent")

	c.Put(&Account{ID: "b"})
	c.Evict("b")
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestCache_ZeroTTLDisablesCaching(t *testing.T) {
	c := NewCache(0)
	c.Put(&Account{ID: "a"})
	_, ok := c.Get("a")
	assert.False(t, ok)
}
