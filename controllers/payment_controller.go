package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lanre647/latodabags/middleware"
	"github.com/lanre647/latodabags/models"
	awspkg "github.com/lanre647/latodabags/pkg/aws"
	"github.com/lanre647/latodabags/providers"
	"github.com/lanre647/latodabags/services"
)

// PaymentController handles HTTP requests for payment operations.
type PaymentController struct {
	paymentService services.PaymentService
	verifier       *providers.WebhookVerifier
	metrics        *awspkg.MetricsClient
	logger         *zap.Logger
}

// NewPaymentController creates a new PaymentController.
func NewPaymentController(svc services.PaymentService, verifier *providers.WebhookVerifier, metrics *awspkg.MetricsClient, logger *zap.Logger) *PaymentController {
	return &PaymentController{
		paymentService: svc,
		verifier:       verifier,
		metrics:        metrics,
		logger:         logger,
	}
}

// InitializePayment handles POST /payment/initialize
func (pc *PaymentController) InitializePayment(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.InitializePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order_id"})
		return
	}

	resp, svcErr := pc.paymentService.InitializePayment(c.Request.Context(), userID, orderID, req.Amount)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// VerifyPayment handles POST /payment/verify/:reference. Idempotent: a
// terminal order returns the same stored state on every call.
func (pc *PaymentController) VerifyPayment(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	reference := c.Param("reference")
	if reference == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Reference is required"})
		return
	}

	resp, svcErr := pc.paymentService.VerifyPayment(c.Request.Context(), userID, reference)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetPaymentStatus handles GET /payment/orders/:order_id
func (pc *PaymentController) GetPaymentStatus(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	orderID, err := uuid.Parse(c.Param("order_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order_id"})
		return
	}

	resp, svcErr := pc.paymentService.GetPaymentStatus(c.Request.Context(), userID, orderID)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// CancelPayment handles POST /payment/orders/:order_id/cancel
func (pc *PaymentController) CancelPayment(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	orderID, err := uuid.Parse(c.Param("order_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order_id"})
		return
	}

	resp, svcErr := pc.paymentService.CancelPayment(c.Request.Context(), userID, orderID)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	c.JSON(http.StatusOK, resp)
}
