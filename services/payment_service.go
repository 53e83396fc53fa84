package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lanre647/latodabags/models"
	awspkg "github.com/lanre647/latodabags/pkg/aws"
	"github.com/lanre647/latodabags/providers"
	"github.com/lanre647/latodabags/repository"
)

// ServiceError is a typed error with an HTTP status code.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string { return e.Message }

// EventProducer publishes payment events to the message bus.
type EventProducer interface {
	SendPaymentEvent(event models.PaymentEvent) error
}

// PaymentService defines the business logic interface.
type PaymentService interface {
	// InitializePayment opens a gateway transaction for the order. A non-nil
	// amount is a client confirmation and must equal the order total.
	InitializePayment(ctx context.Context, userID, orderID uuid.UUID, amount *int64) (*models.InitializePaymentResponse, *ServiceError)
	VerifyPayment(ctx context.Context, userID uuid.UUID, reference string) (*models.PaymentStatusResponse, *ServiceError)
	GetPaymentStatus(ctx context.Context, userID, orderID uuid.UUID) (*models.PaymentStatusResponse, *ServiceError)
	CancelPayment(ctx context.Context, userID, orderID uuid.UUID) (*models.PaymentStatusResponse, *ServiceError)

	// HandleWebhookEvent applies a signature-verified provider callback.
	// Errors are internal: the webhook endpoint still acknowledges receipt.
	HandleWebhookEvent(ctx context.Context, event providers.WebhookEvent) error
}

type paymentServiceImpl struct {
	orders      repository.OrderRepository
	ledger      repository.LedgerRepository
	provider    providers.PaymentProvider
	cache       *VerifyCache
	producer    EventProducer
	snsClient   awspkg.SNSPublisher
	snsTopicArn string
	metrics     *awspkg.MetricsClient
	callbackURL string
	logger      *zap.Logger
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(
	orders repository.OrderRepository,
	ledger repository.LedgerRepository,
	provider providers.PaymentProvider,
	cache *VerifyCache,
	producer EventProducer,
	snsClient awspkg.SNSPublisher,
	snsTopicArn string,
	metrics *awspkg.MetricsClient,
	callbackURL string,
	logger *zap.Logger,
) PaymentService {
	return &paymentServiceImpl{
		orders:      orders,
		ledger:      ledger,
		provider:    provider,
		cache:       cache,
		producer:    producer,
		snsClient:   snsClient,
		snsTopicArn: snsTopicArn,
		metrics:     metrics,
		callbackURL: callbackURL,
		logger:      logger,
	}
}

func newReference() string {
	return "ltb-" + uuid.NewString()
}

// InitializePayment opens a gateway transaction for an order and claims the
// returned reference. The conditional claim is what rejects concurrent or
// repeated initialization: the gateway call itself takes no lock.
func (s *paymentServiceImpl) InitializePayment(ctx context.Context, userID, orderID uuid.UUID, amount *int64) (*models.InitializePaymentResponse, *ServiceError) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "Order not found"}
		}
		s.logger.Error("Failed to load order", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to load order"}
	}
	if order.UserID != userID {
		return nil, &ServiceError{StatusCode: 403, Message: "You do not own this order"}
	}

	switch order.PaymentStatus {
	case models.PaymentStatusPending, models.PaymentStatusFailed, models.PaymentStatusCancelled:
		// a fresh attempt is allowed
	case models.PaymentStatusCompleted:
		return nil, &ServiceError{StatusCode: 409, Message: "Payment already completed for this order"}
	default:
		return nil, &ServiceError{StatusCode: 409, Message: "Payment already initialized for this order"}
	}

	if amount != nil && *amount != order.Total {
		return nil, &ServiceError{StatusCode: 400, Message: "Amount does not match order total"}
	}

	res, err := s.provider.Initialize(ctx, providers.InitializeRequest{
		Email:       order.CustomerEmail,
		Amount:      order.Total,
		Currency:    order.Currency,
		Reference:   newReference(),
		CallbackURL: s.callbackURL,
		Metadata: map[string]string{
			"order_id": order.ID.String(),
			"user_id":  order.UserID.String(),
		},
	})
	if err != nil {
		return nil, s.gatewayError("Initialize payment", err)
	}

	var claimed bool
	var oldReference string
	if order.PaymentStatus == models.PaymentStatusPending {
		claimed, err = s.orders.AssignReference(ctx, order.ID, res.Reference)
	} else {
		if order.PaymentReference != nil {
			oldReference = *order.PaymentReference
		}
		claimed, err = s.orders.ReassignReference(ctx, order.ID, res.Reference)
	}
	if err != nil {
		s.logger.Error("Failed to assign payment reference",
			zap.String("order_id", order.ID.String()),
			zap.String("reference", res.Reference),
			zap.Error(err),
		)
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to start payment"}
	}
	if !claimed {
		// Lost the race: another caller moved the order first. The gateway
		// transaction we opened is never authorized and simply expires.
		return nil, &ServiceError{StatusCode: 409, Message: "Payment already initialized for this order"}
	}
	if oldReference != "" {
		s.cache.Delete(ctx, oldReference)
	}

	s.logger.Info("Payment initialized",
		zap.String("order_id", order.ID.String()),
		zap.String("reference", res.Reference),
		zap.Int64("amount", order.Total),
	)
	s.count(ctx, awspkg.MetricPaymentInitialized, nil)
	s.publishEvent(ctx, s.newEvent(models.EventPaymentProcessing, order, res.Reference, models.PaymentStatusProcessing, ""))

	return &models.InitializePaymentResponse{
		AuthorizationURL: res.AuthorizationURL,
		AccessCode:       res.AccessCode,
		Reference:        res.Reference,
	}, nil
}

// VerifyPayment re-derives an order's payment state from the gateway.
// Terminal orders are served from the stored state so repeated calls return
// the same answer without another gateway round-trip.
func (s *paymentServiceImpl) VerifyPayment(ctx context.Context, userID uuid.UUID, reference string) (*models.PaymentStatusResponse, *ServiceError) {
	if !providers.IsValidReference(reference) {
		return nil, &ServiceError{StatusCode: 400, Message: "Invalid transaction reference"}
	}

	if ownerID, cached := s.cache.Get(ctx, reference); cached != nil {
		if ownerID != userID.String() {
			return nil, &ServiceError{StatusCode: 403, Message: "You do not have access to this payment"}
		}
		s.count(ctx, awspkg.MetricCacheHits, nil)
		return cached, nil
	}

	order, err := s.orders.FindByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "No order found for this reference"}
		}
		s.logger.Error("Failed to load order", zap.String("reference", reference), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to load order"}
	}
	if order.UserID != userID {
		return nil, &ServiceError{StatusCode: 403, Message: "You do not have access to this payment"}
	}

	if !models.IsTerminalPaymentStatus(order.PaymentStatus) {
		vr, err := s.provider.Verify(ctx, reference)
		if err != nil {
			return nil, s.gatewayError("Verify payment", err)
		}

		switch vr.Status {
		case providers.TxStatusSuccess:
			if err := s.recordConfirmedCharge(ctx, order, models.LedgerSourceVerify,
				vr.Amount, vr.Currency, vr.PaidAt, vr.AuthorizationCode, vr.RawPayload); err != nil {
				s.logger.Error("Failed to settle verified charge",
					zap.String("reference", reference), zap.Error(err))
				return nil, &ServiceError{StatusCode: 500, Message: "Failed to settle payment"}
			}
		case providers.TxStatusFailed:
			if err := s.recordFailedCharge(ctx, order, reference, vr.GatewayResponse, vr.RawPayload); err != nil {
				s.logger.Error("Failed to record failed charge",
					zap.String("reference", reference), zap.Error(err))
				return nil, &ServiceError{StatusCode: 500, Message: "Failed to settle payment"}
			}
		default:
			// pending or abandoned: the customer may still complete
			// checkout, leave the order in processing.
			s.logger.Info("Verification returned non-final status",
				zap.String("reference", reference),
				zap.String("gateway_status", vr.Status),
			)
		}

		order, err = s.orders.FindByID(ctx, order.ID)
		if err != nil {
			s.logger.Error("Failed to reload order", zap.String("reference", reference), zap.Error(err))
			return nil, &ServiceError{StatusCode: 500, Message: "Failed to load order"}
		}
	}

	resp := statusResponse(order)
	if models.IsTerminalPaymentStatus(order.PaymentStatus) {
		s.cache.Set(ctx, reference, order.UserID.String(), resp)
	}
	return resp, nil
}

// GetPaymentStatus returns the stored payment state without touching the
// gateway.
func (s *paymentServiceImpl) GetPaymentStatus(ctx context.Context, userID, orderID uuid.UUID) (*models.PaymentStatusResponse, *ServiceError) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "Order not found"}
		}
		s.logger.Error("Failed to load order", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to load order"}
	}
	if order.UserID != userID {
		return nil, &ServiceError{StatusCode: 403, Message: "You do not own this order"}
	}
	return statusResponse(order), nil
}

// CancelPayment withdraws an order from collection before it completes.
func (s *paymentServiceImpl) CancelPayment(ctx context.Context, userID, orderID uuid.UUID) (*models.PaymentStatusResponse, *ServiceError) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "Order not found"}
		}
		s.logger.Error("Failed to load order", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to load order"}
	}
	if order.UserID != userID {
		return nil, &ServiceError{StatusCode: 403, Message: "You do not own this order"}
	}

	cancelled, err := s.orders.MarkCancelled(ctx, order.ID)
	if err != nil {
		s.logger.Error("Failed to cancel payment", zap.String("order_id", order.ID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to cancel payment"}
	}
	if !cancelled {
		return nil, &ServiceError{StatusCode: 409, Message: "Payment can no longer be cancelled"}
	}

	order, err = s.orders.FindByID(ctx, order.ID)
	if err != nil {
		s.logger.Error("Failed to reload order", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to load order"}
	}

	reference := ""
	if order.PaymentReference != nil {
		reference = *order.PaymentReference
	}
	s.logger.Info("Payment cancelled",
		zap.String("order_id", order.ID.String()),
		zap.String("reference", reference),
	)
	s.count(ctx, awspkg.MetricPaymentCancelled, nil)
	s.publishEvent(ctx, s.newEvent(models.EventPaymentCancelled, order, reference, models.PaymentStatusCancelled, ""))

	return statusResponse(order), nil
}

// HandleWebhookEvent dispatches a provider callback. Unknown event types are
// acknowledged and ignored.
func (s *paymentServiceImpl) HandleWebhookEvent(ctx context.Context, event providers.WebhookEvent) error {
	switch event.Event {
	case providers.WebhookChargeSuccess:
		return s.applyChargeSuccess(ctx, event)
	case providers.WebhookChargeFailed:
		return s.applyChargeFailed(ctx, event)
	default:
		s.logger.Info("Unhandled webhook event type", zap.String("event_type", event.Event))
		return nil
	}
}

func (s *paymentServiceImpl) applyChargeSuccess(ctx context.Context, event providers.WebhookEvent) error {
	data := event.Data
	order, err := s.orders.FindByReference(ctx, data.Reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("Webhook for unknown reference",
				zap.String("reference", data.Reference),
				zap.String("event_type", event.Event),
			)
			return nil
		}
		return fmt.Errorf("load order for reference %s: %w", data.Reference, err)
	}

	raw, _ := json.Marshal(event)
	return s.recordConfirmedCharge(ctx, order, event.Event,
		data.Amount, data.Currency, data.PaidAtTime(), data.Authorization.AuthorizationCode, string(raw))
}

func (s *paymentServiceImpl) applyChargeFailed(ctx context.Context, event providers.WebhookEvent) error {
	data := event.Data
	order, err := s.orders.FindByReference(ctx, data.Reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("Webhook for unknown reference",
				zap.String("reference", data.Reference),
				zap.String("event_type", event.Event),
			)
			return nil
		}
		return fmt.Errorf("load order for reference %s: %w", data.Reference, err)
	}

	raw, _ := json.Marshal(event)
	payload := string(raw)
	return s.recordFailedCharge(ctx, order, data.Reference, data.GatewayResponse, payload)
}

// recordConfirmedCharge settles a provider-confirmed charge. A confirmation
// that does not match what the order asked to collect fails the order
// instead of completing it; otherwise the ledger arbitrates the completed
// transition so concurrent confirmations fulfil at most once.
func (s *paymentServiceImpl) recordConfirmedCharge(ctx context.Context, order *models.Order, source string,
	confirmedAmount int64, confirmedCurrency string, paidAt time.Time, authCode, payload string) error {

	reference := ""
	if order.PaymentReference != nil {
		reference = *order.PaymentReference
	}

	if confirmedAmount != order.Total ||
		(confirmedCurrency != "" && !strings.EqualFold(confirmedCurrency, order.Currency)) {
		reason := fmt.Sprintf("confirmed %d %s does not match order amount %d %s",
			confirmedAmount, confirmedCurrency, order.Total, order.Currency)
		s.logger.Warn("Confirmed charge does not match order",
			zap.String("order_id", order.ID.String()),
			zap.String("reference", reference),
			zap.String("source", source),
			zap.String("reason", reason),
		)
		s.count(ctx, awspkg.MetricAmountMismatches, nil)
		return s.recordFailedCharge(ctx, order, reference, reason, payload)
	}

	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}
	var authPtr *string
	if authCode != "" {
		authPtr = &authCode
	}

	outcome, err := s.ledger.RecordSuccess(ctx, repository.SuccessRecord{
		Reference:         reference,
		OrderID:           order.ID,
		Source:            source,
		AuthorizationCode: authPtr,
		PaidAt:            paidAt,
		RawPayload:        &payload,
	})
	if err != nil {
		return fmt.Errorf("record confirmed charge for %s: %w", reference, err)
	}

	switch outcome {
	case repository.ApplyCompleted:
		s.logger.Info("Payment completed",
			zap.String("order_id", order.ID.String()),
			zap.String("reference", reference),
			zap.String("source", source),
		)
		s.count(ctx, awspkg.MetricPaymentSucceeded, nil)
		s.publishEvent(ctx, s.newEvent(models.EventPaymentCompleted, order, reference, models.PaymentStatusCompleted, ""))
	case repository.ApplyIgnored:
		s.logger.Info("Charge confirmation ignored, order no longer processing",
			zap.String("order_id", order.ID.String()),
			zap.String("reference", reference),
			zap.String("source", source),
		)
	case repository.ApplyDuplicate:
		if entry, lerr := s.ledger.FindByReference(ctx, reference); lerr == nil {
			s.logger.Info("Duplicate charge confirmation",
				zap.String("reference", reference),
				zap.String("source", source),
				zap.String("first_source", entry.Source),
				zap.Time("first_seen", entry.CreatedAt),
			)
		} else {
			s.logger.Info("Duplicate charge confirmation",
				zap.String("reference", reference),
				zap.String("source", source),
			)
		}
		s.count(ctx, awspkg.MetricDuplicateConfirmations, nil)
	}
	return nil
}

// recordFailedCharge moves a processing order to failed. Events for orders
// that already left processing change nothing.
func (s *paymentServiceImpl) recordFailedCharge(ctx context.Context, order *models.Order, reference, reason, payload string) error {
	if reason == "" {
		reason = "charge failed"
	}
	moved, err := s.orders.MarkFailed(ctx, reference, reason, &payload)
	if err != nil {
		return fmt.Errorf("mark order failed for %s: %w", reference, err)
	}
	if !moved {
		s.logger.Info("Charge failure ignored, order no longer processing",
			zap.String("order_id", order.ID.String()),
			zap.String("reference", reference),
		)
		return nil
	}

	s.logger.Info("Payment failed",
		zap.String("order_id", order.ID.String()),
		zap.String("reference", reference),
		zap.String("reason", reason),
	)
	s.count(ctx, awspkg.MetricPaymentFailed, nil)
	s.publishEvent(ctx, s.newEvent(models.EventPaymentFailed, order, reference, models.PaymentStatusFailed, reason))
	return nil
}

func (s *paymentServiceImpl) gatewayError(op string, err error) *ServiceError {
	s.logger.Error(op+" failed", zap.Error(err))
	switch {
	case errors.Is(err, providers.ErrAmountOutOfRange):
		return &ServiceError{StatusCode: 400, Message: "Payment amount is outside the chargeable range"}
	case errors.Is(err, providers.ErrInvalidReference):
		return &ServiceError{StatusCode: 400, Message: "Invalid transaction reference"}
	case errors.Is(err, providers.ErrGatewayTimeout):
		return &ServiceError{StatusCode: 504, Message: "Payment gateway timed out, please retry"}
	default:
		return &ServiceError{StatusCode: 502, Message: "Payment gateway error"}
	}
}

func (s *paymentServiceImpl) newEvent(eventType string, order *models.Order, reference, status, reason string) models.PaymentEvent {
	return models.PaymentEvent{
		Type:      eventType,
		OrderID:   order.ID.String(),
		UserID:    order.UserID.String(),
		Reference: reference,
		Status:    status,
		Amount:    order.Total,
		Currency:  order.Currency,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
}

// publishEvent fans an event out to Kafka and SNS, non-fatal on error.
func (s *paymentServiceImpl) publishEvent(ctx context.Context, event models.PaymentEvent) {
	if s.producer != nil {
		if err := s.producer.SendPaymentEvent(event); err != nil {
			s.logger.Error("Failed to publish payment event to Kafka",
				zap.String("type", event.Type), zap.Error(err))
		}
	}

	if s.snsClient == nil || s.snsTopicArn == "" {
		return
	}
	b, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to marshal SNS event", zap.Error(err))
		return
	}
	if err := s.snsClient.Publish(ctx, s.snsTopicArn, b); err != nil {
		s.logger.Error("Failed to publish SNS event", zap.Error(err))
	}
}

func (s *paymentServiceImpl) count(ctx context.Context, metric string, dimensions map[string]string) {
	if s.metrics == nil {
		return
	}
	if err := s.metrics.RecordCount(ctx, metric, dimensions); err != nil {
		s.logger.Warn("Failed to record metric", zap.String("metric", metric), zap.Error(err))
	}
}

func statusResponse(order *models.Order) *models.PaymentStatusResponse {
	resp := &models.PaymentStatusResponse{
		OrderID:       order.ID.String(),
		PaymentStatus: order.PaymentStatus,
		Amount:        order.Total,
		Currency:      order.Currency,
		PaidAt:        order.PaidAt,
	}
	if order.PaymentReference != nil {
		resp.Reference = *order.PaymentReference
	}
	if order.FailureReason != nil {
		resp.FailureReason = *order.FailureReason
	}
	return resp
}
