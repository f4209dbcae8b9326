package payment

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrPaymentNotFound = errors.New("payment not found")

type Repository interface {
	Create(ctx context.Context, payment *Payment) error
	FindByProviderID(ctx context.Context, providerID string) (*Payment, error)
	ListByAccount(ctx context.Context, accountID string) ([]Payment, error)
	MarkPaid(ctx context.Context, id string, amount float64, at time.Time) error
	MarkCanceled(ctx context.Context, id string) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, payment *Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindByProviderID(ctx context.Context, providerID string) (*Payment, error) {
	var payment Payment
	err := r.db.WithContext(ctx).Where("provider_payment_id = ?", providerID).First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repository) ListByAccount(ctx context.Context, accountID string) ([]Payment, error) {
	var payments []Payment
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// MarkPaid settles a payment. Settling an already paid payment is a no-op.
func (r *repository) MarkPaid(ctx context.Context, id string, amount float64, at time.Time) error {
	return r.update(ctx, id, map[string]any{
		"status":  StatusPaid,
		"amount":  amount,
		"paid_at": at,
	})
}

func (r *repository) MarkCanceled(ctx context.Context, id string) error {
	return r.update(ctx, id, map[string]any{"status": StatusCanceled})
}

// update only touches pending payments; a paid payment stays paid even if
// the gateway redelivers an older event.
func (r *repository) update(ctx context.Context, id string, cols map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&Payment{}).
		Where("id = ? AND status = ?", id, StatusPending).
		Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&Payment{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrPaymentNotFound
	}
	return nil
}
