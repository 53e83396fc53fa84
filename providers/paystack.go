package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// PaystackProvider implements PaymentProvider using the Paystack API.
type PaystackProvider struct {
	secretKey  string
	baseURL    string
	floor      int64
	ceiling    int64
	httpClient *http.Client
}

// NewPaystackProvider creates a new PaystackProvider. Amounts outside
// [floor, ceiling] minor units are rejected before any API call.
func NewPaystackProvider(secretKey, baseURL string, floor, ceiling int64, timeout time.Duration) *PaystackProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PaystackProvider{
		secretKey: secretKey,
		baseURL:   baseURL,
		floor:     floor,
		ceiling:   ceiling,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ---- Paystack API request/response structs ----

type paystackInitializeRequest struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"` // minor units (kobo)
	Currency    string            `json:"currency,omitempty"`
	Reference   string            `json:"reference,omitempty"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type paystackInitializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type paystackVerifyData struct {
	Status          string `json:"status"`
	Reference       string `json:"reference"`
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

// ---- PaymentProvider implementation ----

// Initialize creates a Paystack transaction and returns the hosted checkout
// handle.
func (p *PaystackProvider) Initialize(ctx context.Context, req InitializeRequest) (InitializeResult, error) {
	if req.Amount < p.floor || req.Amount > p.ceiling {
		return InitializeResult{}, fmt.Errorf("%w: amount %d outside [%d, %d]",
			ErrAmountOutOfRange, req.Amount, p.floor, p.ceiling)
	}

	body := paystackInitializeRequest{
		Email:       req.Email,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Reference:   req.Reference,
		CallbackURL: req.CallbackURL,
		Metadata:    req.Metadata,
	}

	var data paystackInitializeData
	if err := p.doRequest(ctx, http.MethodPost, "/transaction/initialize", body, &data); err != nil {
		return InitializeResult{}, fmt.Errorf("paystack Initialize: %w", err)
	}

	if data.AuthorizationURL == "" || data.Reference == "" {
		return InitializeResult{}, fmt.Errorf("paystack Initialize: %w: incomplete response", ErrGateway)
	}

	return InitializeResult{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        data.Reference,
	}, nil
}

// Verify fetches the authoritative transaction state for a reference.
func (p *PaystackProvider) Verify(ctx context.Context, reference string) (VerifyResult, error) {
	if !IsValidReference(reference) {
		return VerifyResult{}, fmt.Errorf("%w: %q", ErrInvalidReference, reference)
	}

	var data paystackVerifyData
	if err := p.doRequest(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &data); err != nil {
		return VerifyResult{}, fmt.Errorf("paystack Verify: %w", err)
	}

	raw, _ := json.Marshal(data)

	return VerifyResult{
		Status:            data.Status,
		Reference:         data.Reference,
		Amount:            data.Amount,
		Currency:          data.Currency,
		PaidAt:            parseProviderTime(data.PaidAt),
		GatewayResponse:   data.GatewayResponse,
		CustomerEmail:     data.Customer.Email,
		AuthorizationCode: data.Authorization.AuthorizationCode,
		RawPayload:        string(raw),
	}, nil
}

// ---- HTTP helper ----

func (p *PaystackProvider) doRequest(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: %v", ErrGatewayTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrGateway, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d: %s", ErrGateway, resp.StatusCode, string(respBytes))
	}

	var envelope paystackEnvelope
	if err := json.Unmarshal(respBytes, &envelope); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrGateway, err)
	}
	if !envelope.Status {
		return fmt.Errorf("%w: %s", ErrGateway, envelope.Message)
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("%w: decode response data: %v", ErrGateway, err)
		}
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func parseProviderTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
