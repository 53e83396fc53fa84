package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	awspkg "github.com/lanre647/latodabags/pkg/aws"
	"github.com/lanre647/latodabags/providers"
)

// PaystackWebhook receives and dispatches provider callbacks. The HMAC
// signature is the only authentication on this route. Once the signature
// checks out the endpoint acknowledges with 200 no matter what the event
// does to the order, so the provider does not retry events we have chosen
// to ignore.
func (pc *PaymentController) PaystackWebhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		pc.logger.Warn("Failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook"})
		return
	}

	event, err := pc.verifier.ParseWebhook(payload, c.GetHeader(providers.SignatureHeader))
	if err != nil {
		if errors.Is(err, providers.ErrSignatureInvalid) {
			pc.logger.Warn("Webhook signature verification failed",
				zap.String("client_ip", c.ClientIP()),
			)
			pc.countRejectedWebhook()
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
		// authenticated but undecodable: acknowledge so the provider
		// stops redelivering a payload we will never parse
		pc.logger.Error("Failed to decode webhook payload", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "received"})
		return
	}

	pc.logger.Info("Processing webhook",
		zap.String("event_type", event.Event),
		zap.String("reference", event.Data.Reference),
	)

	if err := pc.paymentService.HandleWebhookEvent(c.Request.Context(), event); err != nil {
		// A lost event is recovered later by the verification path.
		pc.logger.Error("Failed to apply webhook event",
			zap.String("event_type", event.Event),
			zap.String("reference", event.Data.Reference),
			zap.Error(err),
		)
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

func (pc *PaymentController) countRejectedWebhook() {
	if pc.metrics == nil || !pc.metrics.IsEnabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = pc.metrics.RecordCount(ctx, awspkg.MetricWebhookRejected, nil)
	}()
}
