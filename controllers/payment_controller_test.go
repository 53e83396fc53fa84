package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/lanre647/latodabags/controllers"
	"github.com/lanre647/latodabags/middleware"
	"github.com/lanre647/latodabags/models"
	"github.com/lanre647/latodabags/providers"
	"github.com/lanre647/latodabags/services"
)

var testUserID = uuid.New()

// ---- concrete mock implementing services.PaymentService ----

type mockPaymentService struct {
	initResp   *models.InitializePaymentResponse
	initErr    *services.ServiceError
	verifyResp *models.PaymentStatusResponse
	verifyErr  *services.ServiceError
	statusResp *models.PaymentStatusResponse
	statusErr  *services.ServiceError
	cancelResp *models.PaymentStatusResponse
	cancelErr  *services.ServiceError
	webhookErr error

	gotUserID     uuid.UUID
	gotOrderID    uuid.UUID
	gotReference  string
	gotAmount     *int64
	webhookEvents []providers.WebhookEvent
}

func (m *mockPaymentService) InitializePayment(_ context.Context, userID, orderID uuid.UUID, amount *int64) (*models.InitializePaymentResponse, *services.ServiceError) {
	m.gotUserID, m.gotOrderID = userID, orderID
	m.gotAmount = amount
	return m.initResp, m.initErr
}

func (m *mockPaymentService) VerifyPayment(_ context.Context, userID uuid.UUID, reference string) (*models.PaymentStatusResponse, *services.ServiceError) {
	m.gotUserID, m.gotReference = userID, reference
	return m.verifyResp, m.verifyErr
}

func (m *mockPaymentService) GetPaymentStatus(_ context.Context, userID, orderID uuid.UUID) (*models.PaymentStatusResponse, *services.ServiceError) {
	m.gotUserID, m.gotOrderID = userID, orderID
	return m.statusResp, m.statusErr
}

func (m *mockPaymentService) CancelPayment(_ context.Context, userID, orderID uuid.UUID) (*models.PaymentStatusResponse, *services.ServiceError) {
	m.gotUserID, m.gotOrderID = userID, orderID
	return m.cancelResp, m.cancelErr
}

func (m *mockPaymentService) HandleWebhookEvent(_ context.Context, event providers.WebhookEvent) error {
	m.webhookEvents = append(m.webhookEvents, event)
	return m.webhookErr
}

// ---- helpers ----

func setupRouter(svc services.PaymentService, verifier *providers.WebhookVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	pc := controllers.NewPaymentController(svc, verifier, nil, zap.NewNop())

	authed := r.Group("/payment")
	authed.Use(func(c *gin.Context) {
		c.Set(middleware.UserKey, testUserID)
		c.Next()
	})
	authed.POST("/initialize", pc.InitializePayment)
	authed.POST("/verify/:reference", pc.VerifyPayment)
	authed.GET("/orders/:order_id", pc.GetPaymentStatus)
	authed.POST("/orders/:order_id/cancel", pc.CancelPayment)

	r.POST("/payment/webhook", pc.PaystackWebhook)
	return r
}

func postJSON(r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ---- payment endpoints ----

func TestInitializePayment_Endpoint(t *testing.T) {
	svc := &mockPaymentService{
		initResp: &models.InitializePaymentResponse{
			AuthorizationURL: "https://checkout.paystack.com/ltb-abc",
			AccessCode:       "ac_1",
			Reference:        "ltb-abc",
		},
	}
	r := setupRouter(svc, providers.NewWebhookVerifier("sk_test_secret"))

	orderID := uuid.New()
	amount := int64(750000)
	w := postJSON(r, "/payment/initialize", models.InitializePaymentRequest{OrderID: orderID.String(), Amount: &amount})

	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.InitializePaymentResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, "ltb-abc", resp.Reference)
	assert.Equal(t, testUserID, svc.gotUserID)
	assert.Equal(t, orderID, svc.gotOrderID)
	if assert.NotNil(t, svc.gotAmount) {
		assert.Equal(t, amount, *svc.gotAmount)
	}
}

func TestInitializePayment_BadJSON(t *testing.T) {
	r := setupRouter(&mockPaymentService{}, providers.NewWebhookVerifier("sk_test_secret"))

	req := httptest.NewRequest(http.MethodPost, "/payment/initialize", bytes.NewReader([]byte("not-json")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInitializePayment_InvalidOrderID(t *testing.T) {
	r := setupRouter(&mockPaymentService{}, providers.NewWebhookVerifier("sk_test_secret"))

	w := postJSON(r, "/payment/initialize", map[string]string{"order_id": "not-a-uuid"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInitializePayment_Conflict(t *testing.T) {
	svc := &mockPaymentService{
		initErr: &services.ServiceError{StatusCode: 409, Message: "Payment already initialized for this order"},
	}
	r := setupRouter(svc, providers.NewWebhookVerifier("sk_test_secret"))

	w := postJSON(r, "/payment/initialize", models.InitializePaymentRequest{OrderID: uuid.NewString()})

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestVerifyPayment_Endpoint(t *testing.T) {
	svc := &mockPaymentService{
		verifyResp: &models.PaymentStatusResponse{
			OrderID:       uuid.NewString(),
			PaymentStatus: models.PaymentStatusCompleted,
			Reference:     "ltb-abc",
		},
	}
	r := setupRouter(svc, providers.NewWebhookVerifier("sk_test_secret"))

	req := httptest.NewRequest(http.MethodPost, "/payment/verify/ltb-abc", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ltb-abc", svc.gotReference)
	var resp models.PaymentStatusResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, models.PaymentStatusCompleted, resp.PaymentStatus)
}

func TestVerifyPayment_GatewayTimeout(t *testing.T) {
	svc := &mockPaymentService{
		verifyErr: &services.ServiceError{StatusCode: 504, Message: "Payment gateway timed out, please retry"},
	}
	r := setupRouter(svc, providers.NewWebhookVerifier("sk_test_secret"))

	req := httptest.NewRequest(http.MethodPost, "/payment/verify/ltb-timeout", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func TestGetPaymentStatus_Endpoint(t *testing.T) {
	orderID := uuid.New()
	svc := &mockPaymentService{
		statusResp: &models.PaymentStatusResponse{
			OrderID:       orderID.String(),
			PaymentStatus: models.PaymentStatusProcessing,
		},
	}
	r := setupRouter(svc, providers.NewWebhookVerifier("sk_test_secret"))

	req := httptest.NewRequest(http.MethodGet, "/payment/orders/"+orderID.String(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, orderID, svc.gotOrderID)
}

func TestGetPaymentStatus_InvalidOrderID(t *testing.T) {
	r := setupRouter(&mockPaymentService{}, providers.NewWebhookVerifier("sk_test_secret"))

	req := httptest.NewRequest(http.MethodGet, "/payment/orders/not-a-uuid", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelPayment_Endpoint(t *testing.T) {
	orderID := uuid.New()
	svc := &mockPaymentService{
		cancelResp: &models.PaymentStatusResponse{
			OrderID:       orderID.String(),
			PaymentStatus: models.PaymentStatusCancelled,
		},
	}
	r := setupRouter(svc, providers.NewWebhookVerifier("sk_test_secret"))

	req := httptest.NewRequest(http.MethodPost, "/payment/orders/"+orderID.String()+"/cancel", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCancelPayment_Conflict(t *testing.T) {
	svc := &mockPaymentService{
		cancelErr: &services.ServiceError{StatusCode: 409, Message: "Payment can no longer be cancelled"},
	}
	r := setupRouter(svc, providers.NewWebhookVerifier("sk_test_secret"))

	req := httptest.NewRequest(http.MethodPost, "/payment/orders/"+uuid.NewString()+"/cancel", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

// ---- webhook endpoint ----

func TestPaystackWebhook_ValidSignature(t *testing.T) {
	verifier := providers.NewWebhookVerifier("sk_test_secret")
	svc := &mockPaymentService{}
	r := setupRouter(svc, verifier)

	payload := []byte(`{"event":"charge.success","data":{"reference":"ltb-wh1","status":"success","amount":750000,"currency":"NGN"}}`)
	req := httptest.NewRequest(http.MethodPost, "/payment/webhook", bytes.NewReader(payload))
	req.Header.Set(providers.SignatureHeader, verifier.Sign(payload))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	if assert.Len(t, svc.webhookEvents, 1) {
		assert.Equal(t, providers.WebhookChargeSuccess, svc.webhookEvents[0].Event)
		assert.Equal(t, "ltb-wh1", svc.webhookEvents[0].Data.Reference)
	}
}

func TestPaystackWebhook_InvalidSignature(t *testing.T) {
	verifier := providers.NewWebhookVerifier("sk_test_secret")
	svc := &mockPaymentService{}
	r := setupRouter(svc, verifier)

	payload := []byte(`{"event":"charge.success","data":{"reference":"ltb-wh2"}}`)
	req := httptest.NewRequest(http.MethodPost, "/payment/webhook", bytes.NewReader(payload))
	req.Header.Set(providers.SignatureHeader, providers.NewWebhookVerifier("sk_other").Sign(payload))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, svc.webhookEvents)
}

func TestPaystackWebhook_MissingSignature(t *testing.T) {
	svc := &mockPaymentService{}
	r := setupRouter(svc, providers.NewWebhookVerifier("sk_test_secret"))

	req := httptest.NewRequest(http.MethodPost, "/payment/webhook", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, svc.webhookEvents)
}

func TestPaystackWebhook_SignedButUndecodable(t *testing.T) {
	verifier := providers.NewWebhookVerifier("sk_test_secret")
	svc := &mockPaymentService{}
	r := setupRouter(svc, verifier)

	payload := []byte(`{"event":`)
	req := httptest.NewRequest(http.MethodPost, "/payment/webhook", bytes.NewReader(payload))
	req.Header.Set(providers.SignatureHeader, verifier.Sign(payload))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// acknowledged so the provider stops retrying
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, svc.webhookEvents)
}

func TestPaystackWebhook_HandlerErrorStillAcknowledged(t *testing.T) {
	verifier := providers.NewWebhookVerifier("sk_test_secret")
	svc := &mockPaymentService{webhookErr: errors.New("database unavailable")}
	r := setupRouter(svc, verifier)

	payload := []byte(`{"event":"charge.failed","data":{"reference":"ltb-wh3","status":"failed"}}`)
	req := httptest.NewRequest(http.MethodPost, "/payment/webhook", bytes.NewReader(payload))
	req.Header.Set(providers.SignatureHeader, verifier.Sign(payload))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, svc.webhookEvents, 1)
}
