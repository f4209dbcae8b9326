package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/elskow/tourfurr/internal/store"
)

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

type Repository interface {
	Create(ctx context.Context, account *Account) error
	FindByID(ctx context.Context, id string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	NicknameExists(ctx context.Context, nickname string) (bool, error)
	MarkEmailVerified(ctx context.Context, email string, at time.Time) (bool, error)
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*Account, error)
	SetAvatar(ctx context.Context, id, key string) error
	SetTeam(ctx context.Context, id string, teamID *string) error
	TransitionStatus(ctx context.Context, id string, from, to Status) error
	MigrateIdentity(ctx context.Context, oldID, newID string, verifiedAt time.Time) (*Account, error)
	Delete(ctx context.Context, id string) error
	ListUnverifiedBefore(ctx context.Context, cutoff time.Time, limit int) ([]Account, error)
	ListByStatus(ctx context.Context, status Status) ([]Account, error)
	ListByTeam(ctx context.Context, teamID string) ([]Account, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, account *Account) error {
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		if conflict, ok := store.ClassifyConflict(err); ok {
			return conflict
		}
		return err
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id string) (*Account, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return r.first(ctx, "email = ?", NormalizeEmail(email))
}

func (r *repository) first(ctx context.Context, query string, args ...any) (*Account, error) {
	var account Account
	if err := r.db.WithContext(ctx).Where(query, args...).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *repository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email = ?", NormalizeEmail(email))
}

func (r *repository) NicknameExists(ctx context.Context, nickname string) (bool, error) {
	return r.exists(ctx, "LOWER(nickname) = LOWER(?)", nickname)
}

func (r *repository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&Account{}).Where(query, args...).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkEmailVerified flips email_verified once. It reports false when no
// unverified account exists for email.
func (r *repository) MarkEmailVerified(ctx context.Context, email string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&Account{}).
		Where("email = ? AND email_verified = ?", NormalizeEmail(email), false).
		Updates(map[string]any{
			"email_verified":    true,
			"email_verified_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*Account, error) {
	cols := update.columns()
	if len(cols) > 0 {
		res := r.db.WithContext(ctx).Model(&Account{}).Where("id = ?", id).Updates(cols)
		if res.Error != nil {
			if conflict, ok := store.ClassifyConflict(res.Error); ok {
				return nil, conflict
			}
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrAccountNotFound
		}
	}
	return r.FindByID(ctx, id)
}

func (r *repository) SetAvatar(ctx context.Context, id, key string) error {
	return r.updateColumn(ctx, id, "avatar_key", key)
}

func (r *repository) SetTeam(ctx context.Context, id string, teamID *string) error {
	return r.updateColumn(ctx, id, "team_id", teamID)
}

func (r *repository) updateColumn(ctx context.Context, id, column string, value any) error {
	res := r.db.WithContext(ctx).Model(&Account{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// TransitionStatus moves the account from one status to another. The update
// is conditional on the current status so concurrent decisions cannot both
// apply.
func (r *repository) TransitionStatus(ctx context.Context, id string, from, to Status) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	res := r.db.WithContext(ctx).
		Model(&Account{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	current, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, to)
}

// MigrateIdentity re-keys a legacy account onto the identity newID, clears the
// legacy hash and marks the email verified. Every profile column travels with
// the row. Running it again after success returns the migrated account.
func (r *repository) MigrateIdentity(ctx context.Context, oldID, newID string, verifiedAt time.Time) (*Account, error) {
	var migrated Account
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current Account
		err := tx.Where("id = ?", oldID).First(&current).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := tx.Where("id = ?", newID).First(&migrated).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrAccountNotFound
				}
				return err
			}
			return nil
		}
		if err != nil {
			return err
		}

		cols := map[string]any{
			"id":             newID,
			"password_hash":  nil,
			"email_verified": true,
		}
		if current.EmailVerifiedAt == nil {
			cols["email_verified_at"] = verifiedAt
		}

		if err := tx.Model(&Account{}).Where("id = ?", oldID).Updates(cols).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", newID).First(&migrated).Error
	})
	if err != nil {
		return nil, err
	}
	return &migrated, nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&Account{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// ListUnverifiedBefore returns accounts that never verified and were created
// before cutoff. Accounts still holding a legacy hash are grandfathered and
// never listed.
func (r *repository) ListUnverifiedBefore(ctx context.Context, cutoff time.Time, limit int) ([]Account, error) {
	var accounts []Account
	q := r.db.WithContext(ctx).
		Where("email_verified = ? AND created_at < ?", false, cutoff).
		Where("(password_hash IS NULL OR password_hash = '')").
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *repository) ListByStatus(ctx context.Context, status Status) ([]Account, error) {
	var accounts []Account
	q := r.db.WithContext(ctx).Where("email_verified = ?", true).Order("created_at ASC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *repository) ListByTeam(ctx context.Context, teamID string) ([]Account, error) {
	var accounts []Account
	if err := r.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("nickname ASC").
		Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}
