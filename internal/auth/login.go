package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/elskow/tourfurr/internal/account"
	"github.com/elskow/tourfurr/internal/identity"
	"github.com/elskow/tourfurr/internal/security"
)

// Login authenticates with the current credential mechanism and falls back
// to the legacy password hash, migrating the account on first success.
func (s *Service) Login(ctx context.Context, rawEmail, password string) (*LoginResult, error) {
	email, err := validateEmail(rawEmail)
	if err != nil {
		return nil, err
	}
	if password == "" {
		return nil, validationError("password", "Enter your password")
	}

	if err := s.allow(loginKey(email), email, s.config.RateLimit.Login); err != nil {
		s.audit.Record(security.EventAccountLocked, email, "", "")
		return nil, err
	}
	s.audit.Record(security.EventLoginAttempt, email, "", "")

	session, err := s.identities.SignIn(ctx, email, password)
	if err == nil {
		return s.completeLogin(ctx, email, session, false)
	}
	if !errors.Is(err, identity.ErrInvalidCredentials) {
		return nil, s.loginFailure(email, security.ReasonAuthError, infrastructureError(err))
	}

	acc, err := s.accounts.FindByEmail(ctx, email)
	if errors.Is(err, account.ErrAccountNotFound) {
		return nil, s.loginFailure(email, security.ReasonUserNotFound, invalidCredentials())
	}
	if err != nil {
		return nil, s.loginFailure(email, security.ReasonDatabaseError, infrastructureError(err))
	}
	if !acc.HasLegacyPassword() {
		return nil, s.loginFailure(email, security.ReasonInvalidPassword, invalidCredentials())
	}

	ok, err := s.legacy.Verify(password, *acc.LegacyPasswordHash)
	if err != nil {
		s.log.Warn("unreadable legacy hash", zap.String("account_id", acc.ID), zap.Error(err))
	}
	if !ok {
		return nil, s.loginFailure(email, security.ReasonInvalidPassword, invalidCredentials())
	}

	if _, err := s.MigrateLegacyAccount(ctx, acc, password); err != nil {
		return nil, s.loginFailure(email, security.ReasonDatabaseError, infrastructureError(err))
	}

	session, err = s.identities.SignIn(ctx, email, password)
	if err != nil {
		return nil, s.loginFailure(email, security.ReasonAuthError, infrastructureError(err))
	}
	return s.completeLogin(ctx, email, session, true)
}

func (s *Service) completeLogin(ctx context.Context, email string, session *identity.Session, migrated bool) (*LoginResult, error) {
	acc, err := s.accountForSession(ctx, email, session)
	if errors.Is(err, account.ErrAccountNotFound) {
		return nil, s.loginFailure(email, security.ReasonUserNotFound, invalidCredentials())
	}
	if err != nil {
		return nil, s.loginFailure(email, security.ReasonDatabaseError, infrastructureError(err))
	}

	if !acc.EmailVerified {
		s.sendVerificationCode(ctx, email)
		return nil, s.loginFailure(email, security.ReasonEmailNotVerified, needsVerification())
	}

	s.limiter.Reset(loginKey(email))
	s.cache.Put(acc)
	return &LoginResult{Profile: s.profile(acc), Session: session, Migrated: migrated}, nil
}

// accountForSession loads the account behind a fresh session. A legacy
// account still keyed by its old id means an earlier migration stopped after
// the credential was provisioned; the migration is finished here.
func (s *Service) accountForSession(ctx context.Context, email string, session *identity.Session) (*account.Account, error) {
	acc, err := s.accounts.FindByID(ctx, session.IdentityID)
	if !errors.Is(err, account.ErrAccountNotFound) {
		return acc, err
	}

	acc, err = s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !acc.HasLegacyPassword() {
		return nil, fmt.Errorf("account %s does not match identity %s", acc.ID, session.IdentityID)
	}
	s.log.Info("resuming legacy migration", zap.String("account_id", acc.ID))
	return s.accounts.MigrateIdentity(ctx, acc.ID, session.IdentityID, s.now().UTC())
}

// MigrateLegacyAccount moves a legacy account onto the current credential
// mechanism: a confirmed identity is provisioned with password, the account
// row is re-keyed to it, and the legacy hash is cleared. Running it again
// after a partial failure completes the remaining steps.
func (s *Service) MigrateLegacyAccount(ctx context.Context, acc *account.Account, password string) (*account.Account, error) {
	ident, err := s.identities.SignUp(ctx, acc.Email, password, true)
	if errors.Is(err, identity.ErrIdentityExists) {
		ident, err = s.identities.FindByEmail(ctx, acc.Email)
		if err != nil {
			return nil, fmt.Errorf("load existing identity: %w", err)
		}
		if err := s.identities.SetPassword(ctx, ident.ID, password); err != nil {
			return nil, fmt.Errorf("set identity password: %w", err)
		}
		if err := s.identities.ConfirmEmail(ctx, acc.Email); err != nil {
			return nil, fmt.Errorf("confirm identity: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("provision identity: %w", err)
	}

	migrated, err := s.accounts.MigrateIdentity(ctx, acc.ID, ident.ID, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("migrate account %s: %w", acc.ID, err)
	}

	s.cache.Evict(acc.ID)
	s.audit.Record(security.EventAccountMigrated, acc.Email, "", acc.ID+" -> "+ident.ID)
	s.log.Info("legacy account migrated",
		zap.String("old_id", acc.ID),
		zap.String("account_id", migrated.ID))
	return migrated, nil
}

// loginFailure records the precise reason in the audit log and returns the
// user-facing error unchanged.
func (s *Service) loginFailure(email, reason string, err *Error) error {
	detail := ""
	if err.Err != nil {
		detail = err.Err.Error()
		s.log.Error("login failed", zap.String("reason", reason), zap.Error(err.Err))
	}
	s.audit.Record(security.EventLoginFailure, email, reason, detail)
	return err
}

// Logout drops the cached profile. Tokens are stateless and simply expire.
func (s *Service) Logout(ctx context.Context, accountID string) {
	email := identity.EmailFromContext(ctx)
	s.cache.Evict(accountID)
	s.audit.Record(security.EventLogout, email, "", accountID)
}
