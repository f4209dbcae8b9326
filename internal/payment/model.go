// Package payment takes participation fees through YooKassa.
package payment

import "time"

type Status string

const (
	StatusPending  Status = "pending"
	StatusPaid     Status = "paid"
	StatusCanceled Status = "canceled"
)

type Payment struct {
	ID                string  `gorm:"primaryKey;size:36"`
	AccountID         string  `gorm:"size:36;not null;index:payments_account_idx"`
	ProviderPaymentID string  `gorm:"size:64;not null"`
	IdempotenceKey    string  `gorm:"size:36;not null"`
	Status            Status  `gorm:"size:16;not null"`
	Amount            float64 `gorm:"type:numeric(12,2);not null"`
	Currency          string  `gorm:"size:3;not null"`
	ConfirmationURL   string  `gorm:"not null"`
	PaidAt            *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (Payment) TableName() string {
	return "payments"
}

// Result is what a client needs to send the payer to the gateway.
type Result struct {
	PaymentID       string `json:"payment_id"`
	ConfirmationURL string `json:"confirmation_url"`
	Status          string `json:"status"`
}
