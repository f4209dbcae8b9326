package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elskow/tourfurr/internal/account"
	"github.com/elskow/tourfurr/internal/identity"
	"github.com/elskow/tourfurr/internal/security"
)

var pngAvatar = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestService_RegisterVerifyLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.service.Register(ctx, registerRequest("a@b.com", "x"))
	require.NoError(t, err)
	assert.True(t, result.CodeSent)
	assert.Equal(t, "a@b.com", result.Email)

	acc, err := f.accounts.FindByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, account.StatusPending, acc.Status)
	assert.False(t, acc.EmailVerified)
	assert.Equal(t, result.AccountID, acc.ID)

	// Logging in before verifying re-issues a code instead of a session.
	_, err = f.service.Login(ctx, "a@b.com", strongPassword)
	e := requireKind(t, err, KindAuth)
	assert.True(t, e.NeedsVerification)
	assert.Equal(t, http.StatusForbidden, e.HTTPStatus())
	assert.Equal(t, 2, f.mailer.sent("a@b.com"))

	failures := f.audit.Events("a@b.com", security.EventLoginFailure)
	require.NotEmpty(t, failures)
	assert.Equal(t, security.ReasonEmailNotVerified, failures[0].Reason)

	verified, err := f.service.Verify(ctx, "a@b.com", f.mailer.lastVerification("a@b.com"))
	require.NoError(t, err)
	assert.True(t, verified.Verified)
	require.NotNil(t, verified.Profile)
	assert.True(t, verified.Profile.EmailVerified)

	login, err := f.service.Login(ctx, "A@B.com ", strongPassword)
	require.NoError(t, err)
	assert.Equal(t, account.StatusPending, login.Profile.Status)
	assert.True(t, login.Profile.EmailVerified)
	assert.Equal(t, "x", login.Profile.Nickname)
	assert.NotEmpty(t, login.Session.AccessToken)
	assert.False(t, login.Migrated)
}

func TestService_VerifyCodeIsSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Register(ctx, registerRequest("a@b.com", "x"))
	require.NoError(t, err)
	code := f.mailer.lastVerification("a@b.com")

	_, err = f.service.Verify(ctx, "a@b.com", code)
	require.NoError(t, err)

	_, err = f.service.Verify(ctx, "a@b.com", code)
	requireKind(t, err, KindVerificationNotFound)
}

func TestService_VerifyAttemptCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Register(ctx, registerRequest("a@b.com", "x"))
	require.NoError(t, err)
	code := f.mailer.lastVerification("a@b.com")
	wrong := "000000"

	for _, remaining := range []int{2, 1, 0} {
		_, err := f.service.Verify(ctx, "a@b.com", wrong)
		e := requireKind(t, err, KindVerificationMismatch)
		assert.Equal(t, remaining, e.Remaining)
	}

	_, err = f.service.Verify(ctx, "a@b.com", code)
	requireKind(t, err, KindVerificationAttemptsExceeded)
}

func TestService_RegisterValidation(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(r *RegisterRequest)
		field string
	}{
		{
			name:  "malformed email",
			edit:  func(r *RegisterRequest) { r.Email = "not-an-email" },
			field: "email",
		},
		{
			name:  "weak password",
			edit:  func(r *RegisterRequest) { r.Password = "password" },
			field: "password",
		},
		{
			name:  "bad nickname",
			edit:  func(r *RegisterRequest) { r.Nickname = "no spaces allowed" },
			field: "nickname",
		},
		{
			name:  "rules not accepted",
			edit:  func(r *RegisterRequest) { r.AgreeRules = false },
			field: "agree_rules",
		},
		{
			name: "suspicious description",
			edit: func(r *RegisterRequest) { r.Description = "<script>alert(1)</script>" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := registerRequest("a@b.com", "x")
			tt.edit(&req)

			_, err := f.service.Register(context.Background(), req)
			e := requireKind(t, err, KindValidation)
			assert.Equal(t, tt.field, e.Field)
			assert.Equal(t, 0, f.accounts.Len())
		})
	}
}

func TestService_RegisterWeakPasswordFeedback(t *testing.T) {
	f := newFixture(t)
	req := registerRequest("a@b.com", "x")
	req.Password = "lowercase1!"

	_, err := f.service.Register(context.Background(), req)
	e := requireKind(t, err, KindValidation)
	assert.NotEmpty(t, e.Feedback)
}

func TestService_RegisterSuspiciousIsAudited(t *testing.T) {
	f := newFixture(t)
	req := registerRequest("a@b.com", "x")
	req.Pets = "cat'; DROP TABLE users; --"

	_, err := f.service.Register(context.Background(), req)
	requireKind(t, err, KindValidation)
	assert.Len(t, f.audit.Events("a@b.com", security.EventSuspiciousActivity), 1)
}

func TestService_RegisterConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "a@b.com", "fox")

	_, err := f.service.Register(ctx, registerRequest("a@b.com", "wolf"))
	e := requireKind(t, err, KindConflict)
	assert.Equal(t, "email", e.Field)

	_, err = f.service.Register(ctx, registerRequest("c@d.com", "FOX"))
	e = requireKind(t, err, KindConflict)
	assert.Equal(t, "nickname", e.Field)

	_, err = f.identities.FindByEmail(ctx, "c@d.com")
	assert.ErrorIs(t, err, identity.ErrIdentityNotFound, "identity must be rolled back")
}

func TestService_RegisterReplacesExpiredUnverified(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.service.Register(ctx, registerRequest("a@b.com", "x"))
	require.NoError(t, err)

	_, err = f.service.Register(ctx, registerRequest("a@b.com", "x"))
	requireKind(t, err, KindConflict)

	f.service.now = func() time.Time { return time.Now().Add(16 * time.Minute) }
	second, err := f.service.Register(ctx, registerRequest("a@b.com", "x"))
	require.NoError(t, err)
	assert.NotEqual(t, first.AccountID, second.AccountID)
	assert.Equal(t, 1, f.accounts.Len())
}

func TestService_RegistrationWindow(t *testing.T) {
	f := newFixture(t)
	f.config.Auth.RegistrationOpensAt = time.Now().Add(24 * time.Hour)

	_, err := f.service.Register(context.Background(), registerRequest("a@b.com", "x"))
	e := requireKind(t, err, KindForbidden)
	assert.Contains(t, e.Message, "Registration opens")
}

func TestService_RegisterReportsDeliveryFailure(t *testing.T) {
	f := newFixture(t)
	f.mailer.err = errors.New("smtp down")

	result, err := f.service.Register(context.Background(), registerRequest("a@b.com", "x"))
	require.NoError(t, err)
	assert.False(t, result.CodeSent)
	assert.Equal(t, 1, f.accounts.Len())
}

func TestService_LoginFailureReasons(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		reason   string
	}{
		{name: "unknown email", email: "ghost@b.com", password: strongPassword, reason: security.ReasonUserNotFound},
		{name: "wrong password", email: "a@b.com", password: "Wr0ng!Pass", reason: security.ReasonInvalidPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.registerVerified(t, "a@b.com", "x")

			_, err := f.service.Login(context.Background(), tt.email, tt.password)
			e := requireKind(t, err, KindAuth)
			assert.Equal(t, invalidCredentialsMessage, e.Message)
			assert.False(t, e.NeedsVerification)

			failures := f.audit.Events(tt.email, security.EventLoginFailure)
			require.Len(t, failures, 1)
			assert.Equal(t, tt.reason, failures[0].Reason)
		})
	}
}

func TestService_LoginRateLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "a@b.com", "x")

	for i := 0; i < 4; i++ {
		_, err := f.service.Login(ctx, "a@b.com", "Wr0ng!Pass")
		requireKind(t, err, KindAuth)
	}

	// A correct login resets the counter.
	_, err := f.service.Login(ctx, "a@b.com", strongPassword)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := f.service.Login(ctx, "a@b.com", "Wr0ng!Pass")
		requireKind(t, err, KindAuth)
	}

	_, err = f.service.Login(ctx, "a@b.com", strongPassword)
	e := requireKind(t, err, KindRateLimited)
	assert.Equal(t, 30*time.Minute, e.RetryAfter.Round(time.Minute))
	assert.Contains(t, e.Message, "30 min")
	assert.NotEmpty(t, f.audit.Events("a@b.com", security.EventAccountLocked))
}

func TestService_LegacyMigration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.putLegacy(t, "legacy-1", "old@b.com", "oldtimer", "0ld!Passw0rd")

	first, err := f.service.Login(ctx, "old@b.com", "0ld!Passw0rd")
	require.NoError(t, err)
	assert.True(t, first.Migrated)
	assert.NotEqual(t, "legacy-1", first.Profile.ID)
	assert.True(t, first.Profile.EmailVerified)
	assert.Equal(t, account.StatusApproved, first.Profile.Status)
	assert.Equal(t, "oldtimer", first.Profile.Nickname)

	_, err = f.accounts.FindByID(ctx, "legacy-1")
	assert.ErrorIs(t, err, account.ErrAccountNotFound)

	migrated, err := f.accounts.FindByEmail(ctx, "old@b.com")
	require.NoError(t, err)
	assert.False(t, migrated.HasLegacyPassword())
	assert.Equal(t, first.Profile.ID, migrated.ID)

	ident, err := f.identities.FindByEmail(ctx, "old@b.com")
	require.NoError(t, err)
	assert.Equal(t, migrated.ID, ident.ID)
	assert.NotNil(t, ident.EmailConfirmedAt)

	second, err := f.service.Login(ctx, "old@b.com", "0ld!Passw0rd")
	require.NoError(t, err)
	assert.False(t, second.Migrated)
	assert.Equal(t, first.Profile.ID, second.Profile.ID)

	assert.Len(t, f.audit.Events("old@b.com", security.EventAccountMigrated), 1)
}

func TestService_LegacyWrongPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.putLegacy(t, "legacy-1", "old@b.com", "oldtimer", "0ld!Passw0rd")

	_, err := f.service.Login(ctx, "old@b.com", "Wr0ng!Pass")
	requireKind(t, err, KindAuth)

	acc, err := f.accounts.FindByID(ctx, "legacy-1")
	require.NoError(t, err)
	assert.True(t, acc.HasLegacyPassword())

	_, err = f.identities.FindByEmail(ctx, "old@b.com")
	assert.ErrorIs(t, err, identity.ErrIdentityNotFound)
}

func TestService_LegacyMigrationResumesAfterFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.putLegacy(t, "legacy-1", "old@b.com", "oldtimer", "0ld!Passw0rd")

	// The identity is provisioned, then re-keying the account row fails.
	f.accounts.FailNext = errors.New("connection reset")
	_, err := f.service.Login(ctx, "old@b.com", "0ld!Passw0rd")
	requireKind(t, err, KindInfrastructure)

	_, err = f.identities.FindByEmail(ctx, "old@b.com")
	require.NoError(t, err)

	result, err := f.service.Login(ctx, "old@b.com", "0ld!Passw0rd")
	require.NoError(t, err)
	assert.NotEqual(t, "legacy-1", result.Profile.ID)

	acc, err := f.accounts.FindByEmail(ctx, "old@b.com")
	require.NoError(t, err)
	assert.False(t, acc.HasLegacyPassword())
}

func TestService_MigrateLegacyAccountIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.putLegacy(t, "legacy-1", "old@b.com", "oldtimer", "0ld!Passw0rd")

	acc, err := f.accounts.FindByID(ctx, "legacy-1")
	require.NoError(t, err)

	first, err := f.service.MigrateLegacyAccount(ctx, acc, "0ld!Passw0rd")
	require.NoError(t, err)

	second, err := f.service.MigrateLegacyAccount(ctx, acc, "0ld!Passw0rd")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.accounts.Len())
}

func TestService_ResendCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Register(ctx, registerRequest("a@b.com", "x"))
	require.NoError(t, err)

	require.NoError(t, f.service.ResendCode(ctx, "a@b.com"))
	assert.Equal(t, 2, f.mailer.sent("a@b.com"))

	// Unknown addresses get the same answer and no mail.
	require.NoError(t, f.service.ResendCode(ctx, "ghost@b.com"))
	assert.Equal(t, 0, f.mailer.sent("ghost@b.com"))

	_, err = f.service.Verify(ctx, "a@b.com", f.mailer.lastVerification("a@b.com"))
	require.NoError(t, err)
	require.NoError(t, f.service.ResendCode(ctx, "a@b.com"))
	assert.Equal(t, 2, f.mailer.sent("a@b.com"))
}

func TestService_CheckAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "a@b.com", "Fox")

	available, err := f.service.CheckEmailAvailable(ctx, "A@b.com")
	require.NoError(t, err)
	assert.False(t, available)

	available, err = f.service.CheckEmailAvailable(ctx, "new@b.com")
	require.NoError(t, err)
	assert.True(t, available)

	available, err = f.service.CheckNicknameAvailable(ctx, "fox")
	require.NoError(t, err)
	assert.False(t, available)

	_, err = f.service.CheckNicknameAvailable(ctx, "<b>")
	requireKind(t, err, KindValidation)
}

func TestService_CheckEmailRateLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		_, err := f.service.CheckEmailAvailable(ctx, "probe@b.com")
		require.NoError(t, err)
	}
	_, err := f.service.CheckEmailAvailable(ctx, "probe@b.com")
	requireKind(t, err, KindRateLimited)
}

func TestService_GracePeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	status, err := f.service.GracePeriod(ctx, "ghost@b.com")
	require.NoError(t, err)
	assert.False(t, status.Exists)
	assert.True(t, status.Expired)

	_, err = f.service.Register(ctx, registerRequest("a@b.com", "x"))
	require.NoError(t, err)
	acc, err := f.accounts.FindByEmail(ctx, "a@b.com")
	require.NoError(t, err)

	f.service.now = func() time.Time { return acc.CreatedAt.Add(5 * time.Minute) }
	status, err = f.service.GracePeriod(ctx, "a@b.com")
	require.NoError(t, err)
	assert.True(t, status.Exists)
	assert.False(t, status.Expired)
	assert.Equal(t, "10:00", status.Remaining)
	assert.Equal(t, 600, status.RemainingSeconds)

	f.service.now = func() time.Time { return acc.CreatedAt.Add(20 * time.Minute) }
	status, err = f.service.GracePeriod(ctx, "a@b.com")
	require.NoError(t, err)
	assert.True(t, status.Expired)
	assert.Equal(t, "00:00", status.Remaining)
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00"},
		{-time.Second, "00:00"},
		{59*time.Second + 900*time.Millisecond, "00:59"},
		{15 * time.Minute, "15:00"},
		{14*time.Minute + 5*time.Second, "14:05"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatClock(tt.in), tt.in.String())
	}
}

func TestFormatWait(t *testing.T) {
	assert.Equal(t, "1 sec", FormatWait(0))
	assert.Equal(t, "45 sec", FormatWait(45*time.Second))
	assert.Equal(t, "2 min", FormatWait(61*time.Second))
	assert.Equal(t, "30 min", FormatWait(30*time.Minute))
}

func TestService_PasswordReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "a@b.com", "x")
	const newPassword = "N3w!Secret9"

	require.NoError(t, f.service.RequestPasswordReset(ctx, "ghost@b.com"))
	assert.Empty(t, f.mailer.lastReset("ghost@b.com"))

	require.NoError(t, f.service.RequestPasswordReset(ctx, "a@b.com"))
	code := f.mailer.lastReset("a@b.com")
	require.NotEmpty(t, code)

	err := f.service.CompletePasswordReset(ctx, "a@b.com", code, newPassword)
	requireKind(t, err, KindVerificationNotFound)

	require.NoError(t, f.service.ConfirmPasswordReset(ctx, "a@b.com", code))

	err = f.service.CompletePasswordReset(ctx, "a@b.com", code, "weak")
	requireKind(t, err, KindValidation)

	require.NoError(t, f.service.CompletePasswordReset(ctx, "a@b.com", code, newPassword))

	// The confirmation cannot be replayed.
	err = f.service.CompletePasswordReset(ctx, "a@b.com", code, "An0ther!Pass")
	requireKind(t, err, KindVerificationNotFound)

	_, err = f.service.Login(ctx, "a@b.com", strongPassword)
	requireKind(t, err, KindAuth)
	_, err = f.service.Login(ctx, "a@b.com", newPassword)
	require.NoError(t, err)
}

func TestService_PasswordResetCompletionGuessing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "a@b.com", "x")

	require.NoError(t, f.service.RequestPasswordReset(ctx, "a@b.com"))
	code := f.mailer.lastReset("a@b.com")
	require.NoError(t, f.service.ConfirmPasswordReset(ctx, "a@b.com", code))

	for i := 0; i < 3; i++ {
		err := f.service.CompletePasswordReset(ctx, "a@b.com", otherCode(code), "Att4cker!Pass")
		requireKind(t, err, KindVerificationNotFound)
	}

	err := f.service.CompletePasswordReset(ctx, "a@b.com", code, "Att4cker!Pass")
	requireKind(t, err, KindVerificationNotFound)

	_, err = f.service.Login(ctx, "a@b.com", "Att4cker!Pass")
	requireKind(t, err, KindAuth)
	_, err = f.service.Login(ctx, "a@b.com", strongPassword)
	require.NoError(t, err)
}

func TestService_PasswordResetCompletionRateLimited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "a@b.com", "x")

	require.NoError(t, f.service.RequestPasswordReset(ctx, "a@b.com"))
	code := f.mailer.lastReset("a@b.com")

	for i := 0; i < 5; i++ {
		err := f.service.CompletePasswordReset(ctx, "a@b.com", code, "N3w!Secret9")
		requireKind(t, err, KindVerificationNotFound)
	}
	require.NoError(t, f.service.ConfirmPasswordReset(ctx, "a@b.com", code))

	err := f.service.CompletePasswordReset(ctx, "a@b.com", code, "N3w!Secret9")
	e := requireKind(t, err, KindRateLimited)
	assert.Greater(t, e.RetryAfter, time.Duration(0))
}

// otherCode returns a six-digit code different from code.
func otherCode(code string) string {
	if code == "999999" {
		return "100000"
	}
	return "999999"
}

func TestService_PasswordResetMigratesLegacyAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.putLegacy(t, "legacy-1", "old@b.com", "oldtimer", "forgotten")

	require.NoError(t, f.service.RequestPasswordReset(ctx, "old@b.com"))
	code := f.mailer.lastReset("old@b.com")
	require.NoError(t, f.service.ConfirmPasswordReset(ctx, "old@b.com", code))
	require.NoError(t, f.service.CompletePasswordReset(ctx, "old@b.com", code, "N3w!Secret9"))

	result, err := f.service.Login(ctx, "old@b.com", "N3w!Secret9")
	require.NoError(t, err)
	assert.NotEqual(t, "legacy-1", result.Profile.ID)
}

func TestService_UpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.registerVerified(t, "a@b.com", "x")
	f.registerVerified(t, "c@d.com", "taken")

	nickname := "  fox  "
	description := "Likes <b>campfires</b>"
	profile, err := f.service.UpdateProfile(ctx, reg.AccountID, account.ProfileUpdate{
		Nickname:    &nickname,
		Description: &description,
	})
	require.NoError(t, err)
	assert.Equal(t, "fox", profile.Nickname)
	assert.Equal(t, "Likes bcampfires/b", profile.Description)

	taken := "taken"
	_, err = f.service.UpdateProfile(ctx, reg.AccountID, account.ProfileUpdate{Nickname: &taken})
	e := requireKind(t, err, KindConflict)
	assert.Equal(t, "nickname", e.Field)

	_, err = f.service.UpdateProfile(ctx, reg.AccountID, account.ProfileUpdate{})
	requireKind(t, err, KindValidation)

	_, err = f.service.UpdateProfile(ctx, "missing", account.ProfileUpdate{Nickname: &nickname})
	requireKind(t, err, KindNotFound)
}

func TestService_ReplaceAvatar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.registerVerified(t, "a@b.com", "x")

	first, err := f.service.ReplaceAvatar(ctx, reg.AccountID, pngAvatar)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(first.AvatarURL, "https://cdn.test/avatars/"+reg.AccountID+"/"))
	firstKey := strings.TrimPrefix(first.AvatarURL, "https://cdn.test/")
	assert.True(t, f.store.Has(firstKey))

	// A rejected upload keeps the current avatar.
	_, err = f.service.ReplaceAvatar(ctx, reg.AccountID, []byte("plain text, not an image"))
	e := requireKind(t, err, KindValidation)
	assert.Equal(t, "avatar", e.Field)
	assert.True(t, f.store.Has(firstKey))

	second, err := f.service.ReplaceAvatar(ctx, reg.AccountID, pngAvatar)
	require.NoError(t, err)
	assert.NotEqual(t, first.AvatarURL, second.AvatarURL)
	assert.False(t, f.store.Has(firstKey))
	assert.Equal(t, 1, f.store.Len())
}

func TestService_DeleteAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.registerVerified(t, "a@b.com", "x")
	_, err := f.service.ReplaceAvatar(ctx, reg.AccountID, pngAvatar)
	require.NoError(t, err)

	require.NoError(t, f.service.DeleteAccount(ctx, reg.AccountID))

	assert.Equal(t, 0, f.accounts.Len())
	assert.Equal(t, 0, f.store.Len())
	_, err = f.identities.FindByEmail(ctx, "a@b.com")
	assert.ErrorIs(t, err, identity.ErrIdentityNotFound)
	assert.Len(t, f.audit.Events("a@b.com", security.EventAccountDeleted), 1)

	err = f.service.DeleteAccount(ctx, reg.AccountID)
	requireKind(t, err, KindNotFound)
}

func TestService_ProfileIsCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.registerVerified(t, "a@b.com", "x")

	_, err := f.service.Login(ctx, "a@b.com", strongPassword)
	require.NoError(t, err)

	// Served from the cache even though the row is gone.
	require.NoError(t, f.accounts.Delete(ctx, reg.AccountID))
	profile, err := f.service.Profile(ctx, reg.AccountID)
	require.NoError(t, err)
	assert.Equal(t, "x", profile.Nickname)

	f.service.Logout(ctx, reg.AccountID)
	_, err = f.service.Profile(ctx, reg.AccountID)
	requireKind(t, err, KindNotFound)
}
