package providers

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SignatureHeader carries the hex HMAC-SHA512 of the raw webhook body.
const SignatureHeader = "x-paystack-signature"

// Webhook event types that move orders. Anything else is logged and ignored.
const (
	WebhookChargeSuccess = "charge.success"
	WebhookChargeFailed  = "charge.failed"
)

var ErrSignatureInvalid = errors.New("invalid webhook signature")

// WebhookVerifier authenticates provider callbacks against the secret key.
type WebhookVerifier struct {
	secret []byte
}

func NewWebhookVerifier(secretKey string) *WebhookVerifier {
	return &WebhookVerifier{secret: []byte(secretKey)}
}

// WebhookEvent is a decoded provider callback.
type WebhookEvent struct {
	Event string           `json:"event"`
	Data  WebhookEventData `json:"data"`
}

type WebhookEventData struct {
	Reference       string `json:"reference"`
	Status          string `json:"status"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	PaidAt          string `json:"paid_at"`
	GatewayResponse string `json:"gateway_response"`
	Customer        struct {
		Email string `json:"email"`
	} `json:"customer"`
	Authorization struct {
		AuthorizationCode string `json:"authorization_code"`
	} `json:"authorization"`
}

// PaidAtTime parses the provider timestamp; zero when absent or malformed.
func (d WebhookEventData) PaidAtTime() time.Time {
	return parseProviderTime(d.PaidAt)
}

// VerifySignature checks the header against the HMAC of the exact raw body.
// Missing or malformed headers fail closed.
func (v *WebhookVerifier) VerifySignature(payload []byte, sigHeader string) error {
	if sigHeader == "" {
		return ErrSignatureInvalid
	}
	expected, err := hex.DecodeString(sigHeader)
	if err != nil {
		return ErrSignatureInvalid
	}
	mac := hmac.New(sha512.New, v.secret)
	mac.Write(payload)
	if !hmac.Equal(mac.Sum(nil), expected) {
		return ErrSignatureInvalid
	}
	return nil
}

// ParseWebhook verifies the signature over the raw body, then decodes the
// event. The signature must be checked against the bytes exactly as
// received; decode only after it passes.
func (v *WebhookVerifier) ParseWebhook(payload []byte, sigHeader string) (WebhookEvent, error) {
	if err := v.VerifySignature(payload, sigHeader); err != nil {
		return WebhookEvent{}, err
	}
	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return WebhookEvent{}, fmt.Errorf("decode webhook payload: %w", err)
	}
	return event, nil
}

// Sign computes the signature value for a payload.
func (v *WebhookVerifier) Sign(payload []byte) string {
	mac := hmac.New(sha512.New, v.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
