package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MaximeEsteves/backend-lesmidena/config"
	"github.com/MaximeEsteves/backend-lesmidena/controllers"
	"github.com/MaximeEsteves/backend-lesmidena/database"
	"github.com/MaximeEsteves/backend-lesmidena/kafka"
	"github.com/MaximeEsteves/backend-lesmidena/logger"
	"github.com/MaximeEsteves/backend-lesmidena/middleware"
	"github.com/MaximeEsteves/backend-lesmidena/observability"
	awspkg "github.com/MaximeEsteves/backend-lesmidena/pkg/aws"
	"github.com/MaximeEsteves/backend-lesmidena/repository"
	"github.com/MaximeEsteves/backend-lesmidena/routes"
	"github.com/MaximeEsteves/backend-lesmidena/sender"
	"github.com/MaximeEsteves/backend-lesmidena/services"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	serviceName    = "checkout-webhook"
	serviceVersion = "1.0.0"
)

func main() {
	bootLog, err := logger.New(os.Getenv("APP_ENV"), nil)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		bootLog.Fatal("Config load failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// AWS is optional: only needed for CloudWatch, SNS or Secrets Manager.
	var awsCfg *sdkaws.Config
	if cfg.CloudWatchEnabled || cfg.OrderSNSTopic != "" || cfg.StripeWebhookSecretName != "" {
		loaded, err := awspkg.LoadAWSConfig(ctx)
		if err != nil {
			bootLog.Fatal("AWS config load failed", zap.Error(err))
		}
		awsCfg = &loaded
	}

	log := bootLog
	var cwLogs *awspkg.CloudWatchLogsClient
	if cfg.CloudWatchEnabled {
		cwLogs, err = awspkg.NewCloudWatchLogsClient(ctx, *awsCfg, cfg.CloudWatchLogGroup, serviceName)
		if err != nil {
			bootLog.Warn("CloudWatch Logs init failed (non-fatal)", zap.Error(err))
		} else if log, err = logger.New(cfg.Env, cwLogs); err != nil {
			bootLog.Fatal("Logger init failed", zap.Error(err))
		}
	}
	defer log.Sync()

	var metrics *awspkg.MetricsClient
	if awsCfg != nil {
		metrics = awspkg.NewMetricsClient(*awsCfg, cfg.CloudWatchNamespace, cfg.CloudWatchEnabled)
	}

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Endpoint:       cfg.OTLPEndpoint,
		Insecure:       cfg.OTLPInsecure,
	})
	if err != nil {
		log.Warn("Tracing setup failed (non-fatal)", zap.Error(err))
		shutdownTracing = func(context.Context) error { return nil }
	}

	// Stripe secret
	webhookSecret := cfg.StripeWebhookSecret
	if webhookSecret == "" {
		webhookSecret, err = awspkg.NewSecretsClient(*awsCfg).
			GetSecretField(ctx, cfg.StripeWebhookSecretName, cfg.StripeWebhookSecretKey)
		if err != nil {
			log.Fatal("Failed to load Stripe webhook secret", zap.Error(err))
		}
	}

	// Database
	db, err := database.ConnectPostgres(ctx, cfg.PostgresDSN(), log)
	if err != nil {
		log.Fatal("DB connection failed", zap.Error(err))
	}

	orderRepo := repository.NewGormOrderRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	var productRepo repository.ProductRepository = repository.NewGormProductRepository(db)

	healthChecks := map[string]controllers.HealthCheck{
		"postgres": func(ctx context.Context) error { return database.Ping(ctx, db) },
	}

	// Catalog cache (non-fatal)
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient, err = database.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Warn("Redis unavailable, catalog cache disabled", zap.Error(err))
		} else {
			productRepo = repository.NewCachedProductRepository(productRepo, redisClient, cfg.CatalogTTL, log)
			healthChecks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		}
	}

	// Email
	smtpSender, err := sender.NewSMTPSender(sender.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if err != nil {
		log.Fatal("Failed to init SMTP sender", zap.Error(err))
	}
	go func() {
		vctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		if err := smtpSender.Verify(vctx); err != nil {
			log.Error("SMTP verify failed", zap.Error(err))
			return
		}
		log.Info("SMTP ready", zap.String("host", cfg.SMTPHost))
	}()

	// Order events
	var publishers services.FanOutPublisher
	var producer *kafka.OrderEventProducer
	if len(cfg.KafkaBrokers) > 0 {
		producer = kafka.NewOrderEventProducer(cfg.KafkaBrokers, cfg.KafkaOrderTopic, log)
		publishers = append(publishers, producer)
	}
	if cfg.OrderSNSTopic != "" {
		publishers = append(publishers, services.NewSNSOrderPublisher(awspkg.NewSNSClient(*awsCfg), cfg.OrderSNSTopic))
	}
	var publisher services.OrderEventPublisher
	if len(publishers) > 0 {
		publisher = publishers
	}

	// Pipeline
	notifier, err := services.NewNotificationDispatcher(smtpSender, notificationRepo, services.NotificationConfig{
		ShopName:              cfg.ShopName,
		FrontendURL:           cfg.FrontendURL,
		ContactEmail:          cfg.ContactEmail,
		OperatorEmail:         cfg.AdminEmail,
		CustomerFallbackEmail: cfg.CustomerEmailFallback,
		ReplyTo:               cfg.SMTPFrom,
		SendTimeout:           cfg.NotifyTimeout,
		MaxAttempts:           cfg.NotifyMaxAttempts,
		RetryBackoff:          cfg.NotifyRetryBackoff,
	}, metrics, log)
	if err != nil {
		log.Fatal("Failed to initialize notification dispatcher", zap.Error(err))
	}

	processor := services.NewWebhookProcessor(services.WebhookProcessorDeps{
		Verifier:  services.NewStripeVerifier(webhookSecret),
		Dedup:     services.NewEventDeduplicator(orderRepo),
		Assembler: services.NewOrderAssembler(productRepo, cfg.CatalogTimeout, log),
		Orders:    orderRepo,
		Inventory: services.NewInventoryAdjuster(productRepo, cfg.InventoryTimeout, cfg.LowStockThreshold, metrics, log),
		Notifier:  notifier,
		Publisher: publisher,
		Metrics:   metrics,
		Timeouts:  services.ProcessorTimeouts{Store: cfg.StoreTimeout, Publish: cfg.PublishTimeout},
		Logger:    log,
	})

	// Router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(log),
		middleware.SecurityHeaders(),
		middleware.Metrics(metrics, serviceName),
		middleware.Timeout(cfg.RequestTimeout),
	)

	adminLimiter := middleware.NewRateLimiter(rate.Limit(cfg.AdminRateLimit), cfg.AdminRateBurst, 5*time.Minute)
	go adminLimiter.Run(ctx)

	routes.RegisterRoutes(r, routes.Controllers{
		Webhook:       controllers.NewWebhookController(processor, log),
		Orders:        controllers.NewOrderController(orderRepo, log),
		Notifications: controllers.NewNotificationController(notificationRepo, log),
		Health:        controllers.NewHealthController(serviceName, healthChecks),
	}, routes.Options{
		JWTSecret:    cfg.JWTSecret,
		AdminLimiter: adminLimiter,
		CORSOrigins:  cfg.AdminCORSOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("Checkout webhook service started", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", zap.Error(err))
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Error("Kafka producer close error", zap.Error(err))
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Redis close error", zap.Error(err))
		}
	}
	if err := database.Close(db); err != nil {
		log.Error("Database close error", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("Tracing shutdown error", zap.Error(err))
	}

	log.Info("Checkout webhook service stopped gracefully")
	if cwLogs != nil {
		_ = log.Sync()
		_ = cwLogs.Close()
	}
}
