package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lanre647/latodabags/models"
)

// ApplyOutcome is the result of recording a success confirmation in the
// ledger.
type ApplyOutcome int

const (
	// ApplyCompleted: this caller inserted the ledger entry and moved the
	// order to completed.
	ApplyCompleted ApplyOutcome = iota
	// ApplyIgnored: this caller inserted the ledger entry but the order had
	// already left processing, so nothing was fulfilled.
	ApplyIgnored
	// ApplyDuplicate: another caller already recorded this reference.
	ApplyDuplicate
)

// SuccessRecord carries everything needed to settle a confirmed charge.
type SuccessRecord struct {
	Reference         string
	OrderID           uuid.UUID
	Source            string
	AuthorizationCode *string
	PaidAt            time.Time
	RawPayload        *string
}

type LedgerRepository interface {
	// RecordSuccess atomically claims the reference in the ledger and, if
	// this caller won the claim, completes the order. The unique index on
	// reference arbitrates concurrent callers; exactly one ever observes
	// ApplyCompleted for a given reference.
	RecordSuccess(ctx context.Context, rec SuccessRecord) (ApplyOutcome, error)
	FindByReference(ctx context.Context, reference string) (*models.LedgerEntry, error)
}

type gormLedgerRepo struct {
	db *gorm.DB
}

func NewGormLedgerRepo(db *gorm.DB) LedgerRepository {
	return &gormLedgerRepo{db: db}
}

func (r *gormLedgerRepo) RecordSuccess(ctx context.Context, rec SuccessRecord) (ApplyOutcome, error) {
	outcome := ApplyDuplicate

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry := models.LedgerEntry{
			Reference: rec.Reference,
			OrderID:   rec.OrderID,
			Outcome:   models.LedgerOutcomeApplied,
			Source:    rec.Source,
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "reference"}},
			DoNothing: true,
		}).Create(&entry)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			outcome = ApplyDuplicate
			return nil
		}

		updates := map[string]interface{}{
			"payment_status":     models.PaymentStatusCompleted,
			"paid_at":            rec.PaidAt,
			"authorization_code": rec.AuthorizationCode,
		}
		if rec.RawPayload != nil {
			updates["provider_event_payload"] = rec.RawPayload
		}

		upd := tx.Model(&models.Order{}).
			Where("payment_reference = ? AND payment_status = ?",
				rec.Reference, models.PaymentStatusProcessing).
			Updates(updates)
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			// Order already terminal or the reference has been superseded;
			// keep the entry so retries stay deduplicated, but record that
			// it changed nothing.
			if err := tx.Model(&models.LedgerEntry{}).
				Where("reference = ?", rec.Reference).
				Update("outcome", models.LedgerOutcomeIgnored).Error; err != nil {
				return err
			}
			outcome = ApplyIgnored
			return nil
		}

		outcome = ApplyCompleted
		return nil
	})
	if err != nil {
		return ApplyDuplicate, err
	}
	return outcome, nil
}

func (r *gormLedgerRepo) FindByReference(ctx context.Context, reference string) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("reference = ?", reference).
		First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}
