package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/lanre647/latodabags/controllers"
	"github.com/lanre647/latodabags/middleware"
)

// RegisterPaymentRoutes sets up all payment-related routes.
func RegisterPaymentRoutes(r *gin.Engine, pc *controllers.PaymentController, jwtSecret string) {
	payment := r.Group("/payment")
	payment.Use(middleware.AuthMiddleware(jwtSecret))

	payment.POST("/initialize", pc.InitializePayment)
	payment.POST("/verify/:reference", pc.VerifyPayment)
	payment.GET("/orders/:order_id", pc.GetPaymentStatus)
	payment.POST("/orders/:order_id/cancel", pc.CancelPayment)

	// Provider webhook, registered outside the authenticated group: its HMAC
	// signature is the authentication.
	r.POST("/payment/webhook", pc.PaystackWebhook)
}
