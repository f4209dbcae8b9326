package auth

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/elskow/tourfurr/internal/account"
	"github.com/elskow/tourfurr/internal/identity"
	"github.com/elskow/tourfurr/internal/security"
)

// RequestPasswordReset mails a reset code when the account exists. Callers
// get the same answer either way.
func (s *Service) RequestPasswordReset(ctx context.Context, rawEmail string) error {
	email, err := validateEmail(rawEmail)
	if err != nil {
		return err
	}
	if err := s.allow(resetKey(email), email, s.config.RateLimit.PasswordReset); err != nil {
		return err
	}

	if _, err := s.accounts.FindByEmail(ctx, email); err != nil {
		if !errors.Is(err, account.ErrAccountNotFound) {
			s.log.Error("failed to load account for reset", zap.String("email", email), zap.Error(err))
		}
		return nil
	}

	s.sendResetCode(ctx, email)
	return nil
}

// ConfirmPasswordReset redeems a reset code. The new password must then be
// set with CompletePasswordReset inside the confirmation window.
func (s *Service) ConfirmPasswordReset(ctx context.Context, rawEmail, code string) error {
	email, err := validateEmail(rawEmail)
	if err != nil {
		return err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return validationError("code", "Enter the code from the email")
	}
	if err := s.codes.PasswordReset.Verify(ctx, email, code); err != nil {
		return verificationError(err)
	}
	return nil
}

func (s *Service) CompletePasswordReset(ctx context.Context, rawEmail, code, newPassword string) error {
	email, err := validateEmail(rawEmail)
	if err != nil {
		return err
	}
	if err := s.allow(updateKey(email), email, s.config.RateLimit.PasswordUpdate); err != nil {
		return err
	}
	if strength := security.CheckPassword(newPassword); !strength.Strong {
		return weakPasswordError(strength)
	}

	confirmed, err := s.codes.PasswordReset.ConfirmedWithin(ctx, email, strings.TrimSpace(code), s.config.Auth.ResetConfirmWindow)
	if err != nil {
		return infrastructureError(err)
	}
	if !confirmed {
		return &Error{
			Kind:    KindVerificationNotFound,
			Field:   "code",
			Message: "Confirm the reset code first. Confirmed codes are valid for a limited time",
		}
	}

	acc, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return accountLookupError(err)
	}

	ident, err := s.identities.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if err := s.identities.SetPassword(ctx, ident.ID, newPassword); err != nil {
			return infrastructureError(err)
		}
	case errors.Is(err, identity.ErrIdentityNotFound) && acc.HasLegacyPassword():
		// The reset proves email ownership, so a legacy account is migrated
		// straight onto the new password.
		if _, err := s.MigrateLegacyAccount(ctx, acc, newPassword); err != nil {
			return infrastructureError(err)
		}
	default:
		return infrastructureError(err)
	}

	if err := s.codes.PasswordReset.Purge(ctx, email); err != nil {
		s.log.Warn("failed to purge reset codes", zap.String("email", email), zap.Error(err))
	}
	s.limiter.Reset(loginKey(email))
	s.limiter.Reset(updateKey(email))
	s.log.Info("password reset completed", zap.String("account_id", acc.ID))
	return nil
}
