package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Payment lifecycle states for an order.
const (
	PaymentStatusPending    = "pending"
	PaymentStatusProcessing = "processing"
	PaymentStatusCompleted  = "completed"
	PaymentStatusFailed     = "failed"
	PaymentStatusCancelled  = "cancelled"
)

type Order struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID `gorm:"type:uuid;not null;index"`
	CustomerEmail string    `gorm:"type:varchar(255);not null"`
	Total         int64     `gorm:"not null"` // minor units (kobo)
	Currency      string    `gorm:"type:varchar(10);not null;default:'NGN'"`
	PaymentStatus string    `gorm:"type:varchar(20);not null;default:'pending';index"`

	// Assigned when the gateway transaction is created. Unique across all
	// orders; a new value is only ever issued after a failed or cancelled
	// attempt.
	PaymentReference *string `gorm:"type:varchar(100);uniqueIndex"`

	AuthorizationCode *string `gorm:"type:varchar(100)"`
	FailureReason     *string `gorm:"type:varchar(255)"`

	// Last provider payload that moved this order, kept for audit.
	ProviderEventPayload *string `gorm:"type:jsonb"`

	PaidAt      *time.Time
	CancelledAt *time.Time
	CreatedAt   time.Time      `gorm:"autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime"`
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

// IsTerminalPaymentStatus reports whether a status admits no further
// transitions from provider events.
func IsTerminalPaymentStatus(status string) bool {
	switch status {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled:
		return true
	}
	return false
}

// CanReinitialize reports whether a fresh gateway transaction may be opened
// for an order in the given status.
func CanReinitialize(status string) bool {
	return status == PaymentStatusFailed || status == PaymentStatusCancelled
}
