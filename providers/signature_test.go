package providers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lanre647/latodabags/providers"
)

const webhookSecret = "sk_test_whsec"

func TestVerifySignature_Valid(t *testing.T) {
	v := providers.NewWebhookVerifier(webhookSecret)
	payload := []byte(`{"event":"charge.success","data":{"reference":"ltb-ref-1"}}`)

	err := v.VerifySignature(payload, v.Sign(payload))
	assert.NoError(t, err)
}

func TestVerifySignature_TamperedPayload(t *testing.T) {
	v := providers.NewWebhookVerifier(webhookSecret)
	payload := []byte(`{"event":"charge.success","data":{"reference":"ltb-ref-1","amount":25000}}`)
	sig := v.Sign(payload)

	tampered := []byte(`{"event":"charge.success","data":{"reference":"ltb-ref-1","amount":1}}`)
	err := v.VerifySignature(tampered, sig)
	assert.ErrorIs(t, err, providers.ErrSignatureInvalid)
}

func TestVerifySignature_WrongSecret(t *testing.T) {
	payload := []byte(`{"event":"charge.success"}`)
	sig := providers.NewWebhookVerifier("sk_other_secret").Sign(payload)

	v := providers.NewWebhookVerifier(webhookSecret)
	err := v.VerifySignature(payload, sig)
	assert.ErrorIs(t, err, providers.ErrSignatureInvalid)
}

func TestVerifySignature_MissingHeader(t *testing.T) {
	v := providers.NewWebhookVerifier(webhookSecret)
	err := v.VerifySignature([]byte(`{}`), "")
	assert.ErrorIs(t, err, providers.ErrSignatureInvalid)
}

func TestVerifySignature_NonHexHeader(t *testing.T) {
	v := providers.NewWebhookVerifier(webhookSecret)
	err := v.VerifySignature([]byte(`{}`), "zzzz-not-hex")
	assert.ErrorIs(t, err, providers.ErrSignatureInvalid)
}

func TestParseWebhook_DecodesEvent(t *testing.T) {
	v := providers.NewWebhookVerifier(webhookSecret)
	payload := []byte(`{
		"event": "charge.success",
		"data": {
			"reference": "ltb-ref-7",
			"status": "success",
			"amount": 25000,
			"currency": "NGN",
			"paid_at": "2026-08-20T14:05:00.000Z",
			"customer": {"email": "buyer@example.com"},
			"authorization": {"authorization_code": "AUTH_ok"}
		}
	}`)

	event, err := v.ParseWebhook(payload, v.Sign(payload))
	assert.NoError(t, err)
	assert.Equal(t, providers.WebhookChargeSuccess, event.Event)
	assert.Equal(t, "ltb-ref-7", event.Data.Reference)
	assert.Equal(t, int64(25000), event.Data.Amount)
	assert.Equal(t, "AUTH_ok", event.Data.Authorization.AuthorizationCode)
	assert.False(t, event.Data.PaidAtTime().IsZero())
}

func TestParseWebhook_SignatureCheckedBeforeDecode(t *testing.T) {
	v := providers.NewWebhookVerifier(webhookSecret)
	garbage := []byte(`{not even json`)

	_, err := v.ParseWebhook(garbage, "deadbeef")
	assert.ErrorIs(t, err, providers.ErrSignatureInvalid)

	// A correctly signed but undecodable body is a decode failure, not a
	// signature failure.
	_, err = v.ParseWebhook(garbage, v.Sign(garbage))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, providers.ErrSignatureInvalid)
}
