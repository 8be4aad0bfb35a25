package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env  string
	Port string

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	RedisAddr     string // empty disables the catalog cache
	RedisPassword string
	RedisDB       int
	CatalogTTL    time.Duration

	StripeWebhookSecret string
	// StripeWebhookSecretName is a Secrets Manager secret id, read when
	// StripeWebhookSecret is empty.
	StripeWebhookSecretName string
	// StripeWebhookSecretKey selects one field of a key/value secret.
	StripeWebhookSecretKey string

	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	ShopName              string
	FrontendURL           string
	ContactEmail          string
	AdminEmail            string
	CustomerEmailFallback string

	KafkaBrokers    []string
	KafkaOrderTopic string
	OrderSNSTopic   string

	CloudWatchEnabled   bool
	CloudWatchLogGroup  string
	CloudWatchNamespace string
	OTLPEndpoint        string
	OTLPInsecure        bool

	JWTSecret        string
	AdminRateLimit   float64
	AdminRateBurst   int
	AdminCORSOrigins []string

	CatalogTimeout     time.Duration
	StoreTimeout       time.Duration
	InventoryTimeout   time.Duration
	NotifyTimeout      time.Duration
	PublishTimeout     time.Duration
	RequestTimeout     time.Duration
	NotifyMaxAttempts  int
	NotifyRetryBackoff time.Duration
	LowStockThreshold  int
}

// LoadConfig reads the environment, after loading a .env file when present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	var errs []string
	cfg := &Config{
		Env:  getEnv("APP_ENV", "development"),
		Port: getEnv("PORT", "3000"),

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "Europe/Paris"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		StripeWebhookSecret:     os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripeWebhookSecretName: os.Getenv("STRIPE_WEBHOOK_SECRET_NAME"),
		StripeWebhookSecretKey:  os.Getenv("STRIPE_WEBHOOK_SECRET_KEY"),

		SMTPHost:     getEnv("SMTP_HOST", "smtp.sendgrid.net"),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUser:     getEnv("SMTP_USER", "apikey"),
		SMTPPassword: getEnv("SMTP_PASS", os.Getenv("SENDGRID_API_KEY")),
		SMTPFrom:     getEnv("SMTP_FROM", os.Getenv("EMAIL_USER")),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "Mignonneries de Nathalie"),

		ShopName:              getEnv("SHOP_NAME", "Mignonneries de Nathalie"),
		FrontendURL:           os.Getenv("FRONTEND_URL"),
		ContactEmail:          os.Getenv("CONTACT_EMAIL"),
		AdminEmail:            os.Getenv("ADMIN_EMAIL"),
		CustomerEmailFallback: os.Getenv("CUSTOMER_EMAIL_FALLBACK"),

		KafkaBrokers:    splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaOrderTopic: getEnv("KAFKA_ORDER_TOPIC", "order-events"),
		OrderSNSTopic:   os.Getenv("ORDER_SNS_TOPIC_ARN"),

		CloudWatchEnabled:   os.Getenv("CLOUDWATCH_ENABLED") == "true",
		CloudWatchLogGroup:  getEnv("CLOUDWATCH_LOG_GROUP", "/lesmidena/checkout"),
		CloudWatchNamespace: getEnv("CLOUDWATCH_NAMESPACE", "Checkout"),
		OTLPEndpoint:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPInsecure:        os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true",

		JWTSecret:        os.Getenv("JWT_SECRET"),
		AdminCORSOrigins: splitList(os.Getenv("ADMIN_CORS_ORIGINS")),
	}

	cfg.RedisDB = getInt("REDIS_DB", 0, &errs)
	cfg.CatalogTTL = getDuration("CATALOG_CACHE_TTL", 10*time.Minute, &errs)
	cfg.AdminRateLimit = getFloat("ADMIN_RATE_LIMIT", 5, &errs)
	cfg.AdminRateBurst = getInt("ADMIN_RATE_BURST", 10, &errs)
	cfg.CatalogTimeout = getDuration("CATALOG_TIMEOUT", 3*time.Second, &errs)
	cfg.StoreTimeout = getDuration("STORE_TIMEOUT", 5*time.Second, &errs)
	cfg.InventoryTimeout = getDuration("INVENTORY_TIMEOUT", 3*time.Second, &errs)
	cfg.NotifyTimeout = getDuration("NOTIFY_TIMEOUT", 15*time.Second, &errs)
	cfg.PublishTimeout = getDuration("PUBLISH_TIMEOUT", 5*time.Second, &errs)
	cfg.RequestTimeout = getDuration("REQUEST_TIMEOUT", 30*time.Second, &errs)
	cfg.NotifyMaxAttempts = getInt("NOTIFY_MAX_ATTEMPTS", 1, &errs)
	cfg.NotifyRetryBackoff = getDuration("NOTIFY_RETRY_BACKOFF", 2*time.Second, &errs)
	cfg.LowStockThreshold = getInt("LOW_STOCK_THRESHOLD", 2, &errs)

	// the operator alert goes to the shop mailbox unless told otherwise
	if cfg.AdminEmail == "" {
		cfg.AdminEmail = cfg.SMTPFrom
	}
	if cfg.ContactEmail == "" {
		cfg.ContactEmail = cfg.SMTPFrom
	}

	if cfg.PostgresUser == "" || cfg.PostgresPassword == "" || cfg.PostgresDB == "" {
		errs = append(errs, "POSTGRES_USER, POSTGRES_PASSWORD and POSTGRES_DB are required")
	}
	if cfg.StripeWebhookSecret == "" && cfg.StripeWebhookSecretName == "" {
		errs = append(errs, "STRIPE_WEBHOOK_SECRET or STRIPE_WEBHOOK_SECRET_NAME is required")
	}
	if cfg.SMTPFrom == "" {
		errs = append(errs, "SMTP_FROM or EMAIL_USER is required")
	}
	if cfg.NotifyMaxAttempts < 1 {
		errs = append(errs, "NOTIFY_MAX_ATTEMPTS must be at least 1")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresPort, c.PostgresSSLMode, c.PostgresTimeZone,
	)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int, errs *[]string) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: %v", key, err))
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64, errs *[]string) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: %v", key, err))
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration, errs *[]string) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: %v", key, err))
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
