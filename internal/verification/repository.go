package verification

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, code *Code) error
	// Latest returns the most recently created unused code for email.
	Latest(ctx context.Context, email string) (*Code, error)
	// ReserveAttempt atomically counts one attempt against the code when its
	// used flag equals spent and fewer than limit attempts were made. It
	// returns the new attempt count, or 0 when nothing was reserved.
	ReserveAttempt(ctx context.Context, id uint64, spent bool, limit int) (int, error)
	// MarkUsed spends the code and restarts its attempt count for the
	// confirmation step. It reports false when the code was already used, so
	// a code can be redeemed at most once.
	MarkUsed(ctx context.Context, id uint64, at time.Time) (bool, error)
	InvalidateOutstanding(ctx context.Context, email string) (int64, error)
	ListVerifiedSince(ctx context.Context, email string, since time.Time) ([]Code, error)
	DeleteByEmail(ctx context.Context, email string) error
	DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error)
}

type repository struct {
	db    *gorm.DB
	table Table
}

func NewRepository(db *gorm.DB, table Table) Repository {
	return &repository{db: db, table: table}
}

func (r *repository) scoped(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Table(string(r.table))
}

func (r *repository) Create(ctx context.Context, code *Code) error {
	return r.scoped(ctx).Create(code).Error
}

func (r *repository) Latest(ctx context.Context, email string) (*Code, error) {
	var code Code
	err := r.scoped(ctx).
		Where("email = ? AND used = ?", email, false).
		Order("created_at DESC").
		Order("id DESC").
		First(&code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, err
	}
	return &code, nil
}

func (r *repository) ReserveAttempt(ctx context.Context, id uint64, spent bool, limit int) (int, error) {
	var attempts int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Table(string(r.table)).
			Where("id = ? AND used = ? AND attempts < ?", id, spent, limit).
			UpdateColumn("attempts", gorm.Expr("attempts + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return tx.Table(string(r.table)).
			Where("id = ?", id).
			Select("attempts").
			Scan(&attempts).Error
	})
	if err != nil {
		return 0, err
	}
	return attempts, nil
}

func (r *repository) MarkUsed(ctx context.Context, id uint64, at time.Time) (bool, error) {
	res := r.scoped(ctx).
		Where("id = ? AND used = ?", id, false).
		Updates(map[string]any{"used": true, "verified_at": at, "attempts": 0})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) InvalidateOutstanding(ctx context.Context, email string) (int64, error) {
	res := r.scoped(ctx).
		Where("email = ? AND used = ?", email, false).
		Update("used", true)
	return res.RowsAffected, res.Error
}

func (r *repository) ListVerifiedSince(ctx context.Context, email string, since time.Time) ([]Code, error) {
	var codes []Code
	err := r.scoped(ctx).
		Where("email = ? AND used = ? AND verified_at IS NOT NULL AND verified_at >= ?", email, true, since).
		Order("verified_at DESC").
		Find(&codes).Error
	return codes, err
}

func (r *repository) DeleteByEmail(ctx context.Context, email string) error {
	return r.scoped(ctx).Where("email = ?", email).Delete(&Code{}).Error
}

func (r *repository) DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error) {
	res := r.scoped(ctx).Where("expires_at < ?", before).Delete(&Code{})
	return res.RowsAffected, res.Error
}
