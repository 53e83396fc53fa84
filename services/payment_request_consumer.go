package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lanre647/latodabags/models"
	awspkg "github.com/lanre647/latodabags/pkg/aws"
	"github.com/lanre647/latodabags/repository"
)

// PaymentRequestConsumer drains payment requests queued by the order
// service and opens a gateway transaction for each of them.
type PaymentRequestConsumer struct {
	sqsConsumer     *awspkg.SQSConsumer
	orders          repository.OrderRepository
	payments        PaymentService
	defaultCurrency string
	logger          *zap.Logger
}

func NewPaymentRequestConsumer(
	sqsConsumer *awspkg.SQSConsumer,
	orders repository.OrderRepository,
	payments PaymentService,
	defaultCurrency string,
	logger *zap.Logger,
) *PaymentRequestConsumer {
	return &PaymentRequestConsumer{
		sqsConsumer:     sqsConsumer,
		orders:          orders,
		payments:        payments,
		defaultCurrency: defaultCurrency,
		logger:          logger,
	}
}

// Start polls until the context is cancelled. Messages that can never be
// processed are dropped after logging; transient failures are returned to
// the queue for redelivery.
func (c *PaymentRequestConsumer) Start(ctx context.Context) {
	c.logger.Info("Starting PaymentRequestConsumer (SQS)")

	err := c.sqsConsumer.StartPolling(ctx, func(ctx context.Context, body string) error {
		var req models.PaymentRequest
		if err := json.Unmarshal([]byte(body), &req); err != nil {
			c.logger.Warn("Invalid payment request JSON", zap.Error(err))
			return nil
		}

		orderID, err := uuid.Parse(req.OrderID)
		if err != nil {
			c.logger.Warn("Invalid order_id format", zap.String("order_id", req.OrderID), zap.Error(err))
			return nil
		}
		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			c.logger.Warn("Invalid user_id format", zap.String("user_id", req.UserID), zap.Error(err))
			return nil
		}
		if req.Amount <= 0 || req.CustomerEmail == "" {
			c.logger.Warn("Rejecting malformed payment request",
				zap.String("order_id", req.OrderID),
				zap.Int64("amount", req.Amount),
			)
			return nil
		}

		if err := c.ensureOrder(ctx, orderID, userID, req); err != nil {
			c.logger.Error("Failed to ensure order record", zap.String("order_id", req.OrderID), zap.Error(err))
			return err
		}

		resp, svcErr := c.payments.InitializePayment(ctx, userID, orderID, &req.Amount)
		if svcErr != nil {
			switch {
			case svcErr.StatusCode == 409:
				// already initialized, the usual shape of an SQS redelivery
				c.logger.Info("Payment already initialized, dropping duplicate request",
					zap.String("order_id", req.OrderID))
				return nil
			case svcErr.StatusCode >= 500:
				c.logger.Error("Transient failure initializing payment, returning message to queue",
					zap.String("order_id", req.OrderID), zap.Int("status", svcErr.StatusCode),
					zap.String("message", svcErr.Message))
				return svcErr
			default:
				c.logger.Error("Rejecting payment request",
					zap.String("order_id", req.OrderID), zap.Int("status", svcErr.StatusCode),
					zap.String("message", svcErr.Message))
				return nil
			}
		}

		c.logger.Info("Payment request processed",
			zap.String("order_id", req.OrderID),
			zap.String("reference", resp.Reference),
			zap.String("authorization_url", resp.AuthorizationURL),
		)
		return nil
	})

	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Error("SQS consumer error", zap.Error(err))
	}
}

func (c *PaymentRequestConsumer) ensureOrder(ctx context.Context, orderID, userID uuid.UUID, req models.PaymentRequest) error {
	_, err := c.orders.FindByID(ctx, orderID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	currency := req.Currency
	if currency == "" {
		currency = c.defaultCurrency
	}
	order := models.Order{
		ID:            orderID,
		UserID:        userID,
		CustomerEmail: req.CustomerEmail,
		Total:         req.Amount,
		Currency:      currency,
		PaymentStatus: models.PaymentStatusPending,
	}
	if err := c.orders.Create(ctx, &order); err != nil {
		return err
	}
	c.logger.Info("Order record created from payment request", zap.String("order_id", orderID.String()))
	return nil
}
