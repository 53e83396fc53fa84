package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lanre647/latodabags/config"
	"github.com/lanre647/latodabags/controllers"
	"github.com/lanre647/latodabags/database"
	"github.com/lanre647/latodabags/kafka"
	"github.com/lanre647/latodabags/middleware"
	"github.com/lanre647/latodabags/models"
	awspkg "github.com/lanre647/latodabags/pkg/aws"
	"github.com/lanre647/latodabags/providers"
	"github.com/lanre647/latodabags/repository"
	"github.com/lanre647/latodabags/routes"
	"github.com/lanre647/latodabags/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	db, err := database.ConnectPostgres(cfg, logger, &models.Order{}, &models.LedgerEntry{})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db) //nolint:errcheck

	// Redis is optional: without it verification results are simply not cached.
	redisClient := database.NewRedisClient(logger, cfg.RedisURL)

	// AWS clients (non-fatal)
	awsCfg, awsErr := awspkg.LoadAWSConfig(context.Background())
	var snsClient awspkg.SNSPublisher

	if awsErr != nil {
		logger.Warn("AWS config unavailable, SNS and SQS disabled", zap.Error(awsErr))
	} else {
		snsClient = awspkg.NewSNSClient(awsCfg)
	}

	// CloudWatch (non-fatal)
	metricsClient, err := awspkg.NewMetricsClient(context.Background())
	if err != nil {
		logger.Warn("CloudWatch metrics client init failed (non-fatal)", zap.Error(err))
	}

	// Provider and DI chain
	paymentProvider := providers.NewPaystackProvider(
		cfg.PaystackSecretKey,
		cfg.PaystackBaseURL,
		cfg.AmountFloor,
		cfg.AmountCeiling,
		cfg.PaystackTimeout,
	)
	webhookVerifier := providers.NewWebhookVerifier(cfg.PaystackSecretKey)

	eventProducer := kafka.NewPaymentEventProducer([]string{cfg.KafkaBroker}, cfg.KafkaTopic, logger)
	defer eventProducer.Close()

	verifyCache := services.NewVerifyCache(redisClient, cfg.VerifyCacheTTL, logger)

	orderRepo := repository.NewGormOrderRepo(db)
	ledgerRepo := repository.NewGormLedgerRepo(db)

	paymentService := services.NewPaymentService(
		orderRepo,
		ledgerRepo,
		paymentProvider,
		verifyCache,
		eventProducer,
		snsClient,
		cfg.PaymentSNSTopicARN,
		metricsClient,
		cfg.CallbackURL,
		logger,
	)
	paymentController := controllers.NewPaymentController(paymentService, webhookVerifier, metricsClient, logger)

	// SQS consumer for checkout payment requests
	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	defer consumerCancel()
	if cfg.PaymentRequestQueueURL != "" && awsErr == nil {
		sqsConsumer := awspkg.NewSQSConsumer(awsCfg, cfg.PaymentRequestQueueURL, logger)
		requestConsumer := services.NewPaymentRequestConsumer(sqsConsumer, orderRepo, paymentService, cfg.Currency, logger)
		go requestConsumer.Start(consumerCtx)
	} else {
		logger.Info("Payment request consumer disabled", zap.String("queue_url", cfg.PaymentRequestQueueURL))
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.RateLimitMiddleware())
	r.Use(middleware.MetricsMiddleware(metricsClient, "payment-service"))

	// 30-second request timeout
	r.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "payment-service"})
	})

	routes.RegisterPaymentRoutes(r, paymentController, cfg.JWTSecret)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("Payment service started", zap.String("port", cfg.Port))
	<-quit
	logger.Info("Shutting down payment service...")
	consumerCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exited cleanly")
}
