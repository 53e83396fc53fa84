package models

import (
	"time"

	"github.com/google/uuid"
)

// Outcome of a ledger entry: whether the recorded success event changed the
// order or arrived after the order had already left processing.
const (
	LedgerOutcomeApplied = "applied"
	LedgerOutcomeIgnored = "ignored"
)

// LedgerSourceVerify marks entries written by the verification path.
// Webhook entries store the provider event type verbatim.
const LedgerSourceVerify = "verify"

// LedgerEntry records that a successful provider confirmation for a
// reference has been handled. The unique index on Reference is the
// serialization point that keeps fulfilment at-most-once: whichever
// writer inserts the row first owns the completed transition, every
// later writer sees a conflict and backs off.
type LedgerEntry struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Reference string    `gorm:"type:varchar(100);uniqueIndex;not null"`
	OrderID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Outcome   string    `gorm:"type:varchar(10);not null"`
	Source    string    `gorm:"type:varchar(50);not null"` // originating event type
	CreatedAt time.Time `gorm:"autoCreateTime"`
}
