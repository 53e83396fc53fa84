package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	awspkg "github.com/lanre647/latodabags/pkg/aws"
)

type Config struct {
	Port             string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	PaystackSecretKey string
	PaystackBaseURL   string
	PaystackTimeout   time.Duration
	CallbackURL       string
	Currency          string

	// Amount bounds in minor units (kobo). Orders outside the range are
	// rejected before any provider call.
	AmountFloor   int64
	AmountCeiling int64

	JWTSecret string

	RedisURL       string
	VerifyCacheTTL time.Duration

	KafkaBroker string
	KafkaTopic  string

	PaymentRequestQueueURL string // SQS queue URL for checkout payment requests
	PaymentSNSTopicARN     string // SNS topic ARN for payment events
}

func LoadConfig() (*Config, error) {
	// .env is optional, containers get real env vars
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8087"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "Africa/Lagos"),

		PaystackSecretKey: os.Getenv("PAYSTACK_SECRET_KEY"),
		PaystackBaseURL:   getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		PaystackTimeout:   getEnvDuration("PAYSTACK_TIMEOUT", 10*time.Second),
		CallbackURL:       os.Getenv("PAYMENT_CALLBACK_URL"),
		Currency:          getEnv("PAYMENT_CURRENCY", "NGN"),

		AmountFloor:   getEnvInt64("PAYMENT_AMOUNT_FLOOR", 100),
		AmountCeiling: getEnvInt64("PAYMENT_AMOUNT_CEILING", 500000),

		JWTSecret: os.Getenv("JWT_SECRET"),

		RedisURL:       os.Getenv("REDIS_URL"),
		VerifyCacheTTL: getEnvDuration("VERIFY_CACHE_TTL", 24*time.Hour),

		KafkaBroker: getEnv("KAFKA_BROKER", "kafka:9092"),
		KafkaTopic:  getEnv("KAFKA_PAYMENT_TOPIC", "payment-events"),

		PaymentRequestQueueURL: os.Getenv("PAYMENT_REQUEST_QUEUE_URL"),
		PaymentSNSTopicARN:     getEnv("PAYMENT_SNS_TOPIC_ARN", "arn:aws:sns:eu-west-2:000000000000:payment-events"),
	}

	// Override credentials from Secrets Manager when running on AWS
	if os.Getenv("AWS_USE_SECRETS") == "true" {
		if awsCfg, err := awspkg.LoadAWSConfig(context.Background()); err == nil {
			sm := awspkg.NewSecretsClient(awsCfg)
			if creds, err := sm.GetJSONSecret(context.Background(), "payment/DB_CREDENTIALS"); err == nil {
				if v := creds["POSTGRES_USER"]; v != "" {
					cfg.PostgresUser = v
				}
				if v := creds["POSTGRES_PASSWORD"]; v != "" {
					cfg.PostgresPassword = v
				}
				if v := creds["POSTGRES_DB"]; v != "" {
					cfg.PostgresDB = v
				}
				if v := creds["POSTGRES_HOST"]; v != "" {
					cfg.PostgresHost = v
				}
				if v := creds["POSTGRES_PORT"]; v != "" {
					cfg.PostgresPort = v
				}
			}
			if v, err := sm.GetSecret(context.Background(), "payment/PAYSTACK_SECRET_KEY"); err == nil && v != "" {
				cfg.PaystackSecretKey = v
			}
			if v, err := sm.GetSecret(context.Background(), "payment/JWT_SECRET"); err == nil && v != "" {
				cfg.JWTSecret = v
			}
		}
	}

	if cfg.PostgresUser == "" || cfg.PostgresPassword == "" || cfg.PostgresDB == "" || cfg.PostgresHost == "" ||
		cfg.PaystackSecretKey == "" || cfg.JWTSecret == "" {
		return nil, fmt.Errorf("missing required environment variables")
	}
	if cfg.AmountFloor <= 0 || cfg.AmountCeiling <= cfg.AmountFloor {
		return nil, fmt.Errorf("invalid payment amount bounds: floor=%d ceiling=%d", cfg.AmountFloor, cfg.AmountCeiling)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
