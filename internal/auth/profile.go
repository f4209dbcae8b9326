package auth

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/elskow/tourfurr/internal/account"
	"github.com/elskow/tourfurr/internal/security"
	"github.com/elskow/tourfurr/internal/storage"
)

func (s *Service) Profile(ctx context.Context, accountID string) (*account.Profile, error) {
	acc, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, accountLookupError(err)
	}
	p := s.profile(acc)
	return &p, nil
}

// UpdateProfile applies the non-nil fields of update after the same hygiene
// as registration.
func (s *Service) UpdateProfile(ctx context.Context, accountID string, update account.ProfileUpdate) (*account.Profile, error) {
	if update.Empty() {
		return nil, validationError("", "Nothing to update")
	}

	var values []string
	for _, f := range []*string{update.Nickname, update.Phone, update.Telegram, update.Description, update.Pets, update.Allergies} {
		if f != nil {
			values = append(values, *f)
		}
	}
	if security.AnySuspicious(values...) {
		s.audit.Record(security.EventSuspiciousActivity, accountID, "", "profile update")
		return nil, validationError("", "The form contains forbidden content")
	}

	if update.Nickname != nil {
		nickname := strings.TrimSpace(*update.Nickname)
		if !validNickname(nickname) {
			return nil, validationError("nickname", "Nickname may contain letters, digits, dots, dashes and underscores")
		}
		update.Nickname = &nickname
	}
	update.Phone = sanitized(update.Phone, maxPhoneLength)
	update.Telegram = sanitized(update.Telegram, maxTelegramLength)
	update.Description = sanitized(update.Description, security.DefaultMaxInputLength)
	update.Pets = sanitized(update.Pets, security.DefaultMaxInputLength)
	update.Allergies = sanitized(update.Allergies, security.DefaultMaxInputLength)

	acc, err := s.accounts.UpdateProfile(ctx, accountID, update)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			return nil, accountLookupError(err)
		}
		return nil, accountConflict(err)
	}

	s.cache.Put(acc)
	p := s.profile(acc)
	return &p, nil
}

func sanitized(v *string, maxLength int) *string {
	if v == nil {
		return nil
	}
	out := security.Sanitize(*v, maxLength)
	return &out
}

// ReplaceAvatar stores the new picture and only then removes the old one, so
// a rejected upload leaves the current avatar in place.
func (s *Service) ReplaceAvatar(ctx context.Context, accountID string, data []byte) (*account.Profile, error) {
	acc, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, accountLookupError(err)
	}

	key, err := s.avatars.Upload(ctx, acc.ID, data)
	switch {
	case errors.Is(err, storage.ErrEmptyFile):
		return nil, validationError("avatar", "Choose a file to upload")
	case errors.Is(err, storage.ErrFileTooLarge):
		return nil, validationError("avatar", "The file is too large")
	case errors.Is(err, storage.ErrFileTypeUnsupported):
		return nil, validationError("avatar", "Only PNG, JPEG, WebP and GIF images are allowed")
	case err != nil:
		return nil, infrastructureError(err)
	}

	if err := s.accounts.SetAvatar(ctx, acc.ID, key); err != nil {
		if rerr := s.avatars.Remove(ctx, key); rerr != nil {
			s.log.Warn("failed to remove orphaned avatar", zap.String("key", key), zap.Error(rerr))
		}
		return nil, infrastructureError(err)
	}

	if err := s.avatars.Remove(ctx, acc.AvatarKey); err != nil {
		s.log.Warn("failed to remove previous avatar", zap.String("key", acc.AvatarKey), zap.Error(err))
	}

	acc.AvatarKey = key
	s.cache.Put(acc)
	p := s.profile(acc)
	return &p, nil
}

// DeleteAccount removes the caller's avatar, codes, credential and account
// row.
func (s *Service) DeleteAccount(ctx context.Context, accountID string) error {
	acc, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return accountLookupError(err)
	}
	if err := s.removeAccount(ctx, acc); err != nil {
		return infrastructureError(err)
	}
	s.audit.Record(security.EventAccountDeleted, acc.Email, "", acc.ID)
	s.log.Info("account deleted", zap.String("account_id", acc.ID))
	return nil
}

func accountLookupError(err error) error {
	if errors.Is(err, account.ErrAccountNotFound) {
		return &Error{Kind: KindNotFound, Message: "Account not found", Err: err}
	}
	return infrastructureError(err)
}
