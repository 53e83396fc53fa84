package models

import "time"

// Event types published to downstream services.
const (
	EventPaymentProcessing = "payment_processing"
	EventPaymentCompleted  = "payment_completed"
	EventPaymentFailed     = "payment_failed"
	EventPaymentCancelled  = "payment_cancelled"
)

// PaymentEvent is published to Kafka and SNS whenever an order's payment
// state changes.
type PaymentEvent struct {
	Type      string    `json:"type"` // e.g. "payment_completed"
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	Reference string    `json:"reference,omitempty"`
	Status    string    `json:"status"`
	Amount    int64     `json:"amount"`   // minor units
	Currency  string    `json:"currency"` // "NGN"
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"` // UTC event time
}

// PaymentRequest arrives on the payment request queue when checkout hands
// an order over for collection.
type PaymentRequest struct {
	OrderID       string `json:"order_id"`
	UserID        string `json:"user_id"`
	CustomerEmail string `json:"customer_email"`
	Amount        int64  `json:"amount"` // minor units
	Currency      string `json:"currency,omitempty"`
}

// InitializePaymentRequest is the body of POST /payment/initialize. Amount
// is an optional confirmation: when the client sends the amount it showed
// the customer, it must equal the order total.
type InitializePaymentRequest struct {
	OrderID string `json:"order_id" binding:"required,uuid"`
	Amount  *int64 `json:"amount" binding:"omitempty,gt=0"`
}

// InitializePaymentResponse carries the gateway checkout handle back to the
// client.
type InitializePaymentResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// PaymentStatusResponse is the canonical view of an order's payment state,
// returned by verify and status lookups.
type PaymentStatusResponse struct {
	OrderID       string     `json:"order_id"`
	PaymentStatus string     `json:"payment_status"`
	Reference     string     `json:"reference,omitempty"`
	Amount        int64      `json:"amount"`
	Currency      string     `json:"currency"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
}
