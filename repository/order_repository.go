package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lanre647/latodabags/models"
)

type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByReference(ctx context.Context, reference string) (*models.Order, error)
	// AssignReference claims a pending order for processing. Returns false
	// when the order is no longer pending or already carries a reference.
	AssignReference(ctx context.Context, orderID uuid.UUID, reference string) (bool, error)
	// ReassignReference opens a fresh attempt for a failed or cancelled
	// order, replacing its reference and clearing the old outcome fields.
	ReassignReference(ctx context.Context, orderID uuid.UUID, reference string) (bool, error)
	// MarkFailed moves a processing order to failed. Returns false when the
	// reference no longer points at a processing order.
	MarkFailed(ctx context.Context, reference, reason string, payload *string) (bool, error)
	// MarkCancelled cancels an order that has not reached a terminal state.
	MarkCancelled(ctx context.Context, orderID uuid.UUID) (bool, error)
}

type gormOrderRepo struct {
	db *gorm.DB
}

func NewGormOrderRepo(db *gorm.DB) OrderRepository {
	return &gormOrderRepo{db: db}
}

func (r *gormOrderRepo) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *gormOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *gormOrderRepo) FindByReference(ctx context.Context, reference string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Where("payment_reference = ?", reference).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *gormOrderRepo) AssignReference(ctx context.Context, orderID uuid.UUID, reference string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND payment_status = ? AND payment_reference IS NULL",
			orderID, models.PaymentStatusPending).
		Updates(map[string]interface{}{
			"payment_reference": reference,
			"payment_status":    models.PaymentStatusProcessing,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *gormOrderRepo) ReassignReference(ctx context.Context, orderID uuid.UUID, reference string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND payment_status IN ?",
			orderID, []string{models.PaymentStatusFailed, models.PaymentStatusCancelled}).
		Updates(map[string]interface{}{
			"payment_reference":  reference,
			"payment_status":     models.PaymentStatusProcessing,
			"failure_reason":     nil,
			"authorization_code": nil,
			"cancelled_at":       nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *gormOrderRepo) MarkFailed(ctx context.Context, reference, reason string, payload *string) (bool, error) {
	updates := map[string]interface{}{
		"payment_status": models.PaymentStatusFailed,
		"failure_reason": reason,
	}
	if payload != nil {
		updates["provider_event_payload"] = payload
	}
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("payment_reference = ? AND payment_status = ?",
			reference, models.PaymentStatusProcessing).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *gormOrderRepo) MarkCancelled(ctx context.Context, orderID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND payment_status IN ?",
			orderID, []string{models.PaymentStatusPending, models.PaymentStatusProcessing}).
		Updates(map[string]interface{}{
			"payment_status": models.PaymentStatusCancelled,
			"cancelled_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
