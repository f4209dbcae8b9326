package identity

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/elskow/tourfurr/internal/store"
)

var (
	ErrIdentityNotFound   = errors.New("identity not found")
	ErrIdentityExists     = errors.New("identity already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type Repository interface {
	Create(ctx context.Context, identity *Identity) error
	FindByID(ctx context.Context, id string) (*Identity, error)
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	UpdatePassword(ctx context.Context, id, hash string) error
	ConfirmEmail(ctx context.Context, email string, at time.Time) error
	TouchSignIn(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, identity *Identity) error {
	if err := r.db.WithContext(ctx).Create(identity).Error; err != nil {
		if _, ok := store.ClassifyConflict(err); ok {
			return ErrIdentityExists
		}
		return err
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id string) (*Identity, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *repository) first(ctx context.Context, query string, args ...any) (*Identity, error) {
	var identity Identity
	if err := r.db.WithContext(ctx).Where(query, args...).First(&identity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}
	return &identity, nil
}

func (r *repository) UpdatePassword(ctx context.Context, id, hash string) error {
	return r.update(ctx, "id = ?", id, "password_hash", hash)
}

func (r *repository) ConfirmEmail(ctx context.Context, email string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&Identity{}).
		Where("email = ? AND email_confirmed_at IS NULL", email).
		Update("email_confirmed_at", at)
	return res.Error
}

func (r *repository) TouchSignIn(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, "id = ?", id, "last_sign_in_at", at)
}

func (r *repository) update(ctx context.Context, query string, arg any, column string, value any) error {
	res := r.db.WithContext(ctx).Model(&Identity{}).Where(query, arg).Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrIdentityNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&Identity{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrIdentityNotFound
	}
	return nil
}
