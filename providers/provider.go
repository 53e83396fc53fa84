package providers

import (
	"context"
	"errors"
	"regexp"
	"time"
)

// Gateway failure modes. Callers branch with errors.Is; every error returned
// by a provider wraps exactly one of these.
var (
	ErrGatewayTimeout   = errors.New("payment gateway timed out")
	ErrGateway          = errors.New("payment gateway error")
	ErrAmountOutOfRange = errors.New("amount outside chargeable range")
	ErrInvalidReference = errors.New("invalid transaction reference")
)

// Transaction states reported by the gateway.
const (
	TxStatusSuccess   = "success"
	TxStatusFailed    = "failed"
	TxStatusAbandoned = "abandoned"
	TxStatusPending   = "pending"
)

// InitializeRequest starts a hosted checkout transaction.
type InitializeRequest struct {
	Email       string
	Amount      int64 // minor units
	Currency    string
	Reference   string
	CallbackURL string
	Metadata    map[string]string
}

// InitializeResult carries the checkout handle the customer is redirected to.
type InitializeResult struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// VerifyResult is the gateway's authoritative view of a transaction.
type VerifyResult struct {
	Status            string
	Reference         string
	Amount            int64
	Currency          string
	PaidAt            time.Time // zero when the gateway reports none
	GatewayResponse   string
	CustomerEmail     string
	AuthorizationCode string
	RawPayload        string
}

// PaymentProvider defines the interface all gateway integrations must implement.
type PaymentProvider interface {
	// Initialize creates a transaction and returns the checkout handle.
	Initialize(ctx context.Context, req InitializeRequest) (InitializeResult, error)

	// Verify fetches the current state of a transaction by reference.
	Verify(ctx context.Context, reference string) (VerifyResult, error)
}

var referencePattern = regexp.MustCompile(`^[a-zA-Z0-9._=-]{1,100}$`)

// IsValidReference reports whether a reference is well-formed enough to be
// sent to the gateway. Checked before any lookup so garbage input never
// costs a round-trip.
func IsValidReference(reference string) bool {
	return referencePattern.MatchString(reference)
}
