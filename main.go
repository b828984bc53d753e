package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/stripe-payment-service/common/auth"
	"github.com/yashrajoria/stripe-payment-service/common/logger"
	commonmw "github.com/yashrajoria/stripe-payment-service/common/middleware"
	"github.com/yashrajoria/stripe-payment-service/config"
	"github.com/yashrajoria/stripe-payment-service/controllers"
	"github.com/yashrajoria/stripe-payment-service/database"
	"github.com/yashrajoria/stripe-payment-service/events"
	"github.com/yashrajoria/stripe-payment-service/kafka"
	aws_pkg "github.com/yashrajoria/stripe-payment-service/pkg/aws"
	"github.com/yashrajoria/stripe-payment-service/paymentlog"
	"github.com/yashrajoria/stripe-payment-service/repository"
	"github.com/yashrajoria/stripe-payment-service/routes"
	"github.com/yashrajoria/stripe-payment-service/sender"
	"github.com/yashrajoria/stripe-payment-service/services"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("[PaymentService] Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// AWS clients
	awsCfg, awsErr := aws_pkg.LoadAWSConfig(ctx)

	var cwLogs *aws_pkg.CloudWatchLogsClient
	if awsErr == nil && cfg.CloudWatchEnabled {
		cwLogs, err = aws_pkg.NewCloudWatchLogsClient(ctx, awsCfg, cfg.CloudWatchLogGroup, "payment-service", true)
		if err != nil {
			log.Printf("[PaymentService] CloudWatch Logs disabled: %v", err)
			cwLogs = nil
		}
	}
	var appLogger *zap.Logger
	if cwLogs != nil {
		appLogger = logger.InitializeWithWriter(cfg.AppEnv, cwLogs)
	} else {
		appLogger = logger.Initialize(cfg.AppEnv)
	}
	defer appLogger.Sync() //nolint:errcheck

	if awsErr != nil {
		appLogger.Warn("AWS config unavailable, SNS/SQS/CloudWatch disabled", zap.Error(awsErr))
	}
	var metrics *aws_pkg.MetricsClient
	if awsErr == nil {
		metrics = aws_pkg.NewMetricsClient(awsCfg, cfg.CloudWatchNamespace, cfg.CloudWatchEnabled)
	}

	// Storage
	db, err := database.ConnectPostgres(cfg.PostgresDSN(), appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close() //nolint:errcheck
	}

	statusRepo := repository.NewGormOrderStatusRepository(db)
	if err := statusRepo.Seed(ctx); err != nil {
		appLogger.Fatal("Failed to seed order statuses", zap.Error(err))
	}
	orderRepo := repository.NewGormOrderRepository(db)

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		appLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close() //nolint:errcheck
	sessionRepo := repository.NewRedisSessionRepository(redisClient, cfg.SessionTTL)

	paylog, err := paymentlog.Open(cfg.PaymentLogPath)
	if err != nil {
		appLogger.Fatal("Failed to open payment log", zap.Error(err))
	}
	defer paylog.Close() //nolint:errcheck

	// Outbound events
	var publisher services.PaymentEventPublisher
	switch cfg.EventTransport {
	case config.TransportKafka:
		producer := kafka.NewPaymentEventProducer(cfg.KafkaBrokers, cfg.KafkaPaymentTopic, appLogger)
		defer producer.Close() //nolint:errcheck
		publisher = producer
	default:
		var snsClient aws_pkg.SNSPublisher
		if awsErr == nil {
			snsClient = aws_pkg.NewSNSClient(awsCfg)
		}
		publisher = services.NewSNSEventPublisher(snsClient, cfg.PaymentSNSTopicARN)
	}

	var mailer sender.EmailSender
	if cfg.SMTPHost == "" {
		appLogger.Warn("SMTP_HOST not set, order mails are only logged")
		mailer = sender.NewLogSender(appLogger)
	} else {
		smtpSender, err := sender.NewSMTPSender(sender.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		if err != nil {
			appLogger.Fatal("Invalid SMTP configuration", zap.Error(err))
		}
		mailer = smtpSender
	}

	// Host event bus
	bus := events.NewBus()
	bus.Subscribe(events.OrderUpdateStatus, 255, services.NewOrderStatusHandler(orderRepo, appLogger).Handle)
	services.NewConfirmationListener(bus, mailer, services.StoreInfo{
		Name:         cfg.StoreName,
		URL:          cfg.StoreURL,
		ContactEmail: cfg.StoreContactEmail,
	}, appLogger).Register()
	bus.Subscribe(events.OrderUpdateStatus, 64, services.NewPaymentEventForwarder(publisher, metrics, appLogger).Forward)

	// Stripe
	stripeSvc := services.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookKey)
	retry := services.RetryPolicy{
		InitialDelay: cfg.LookupInitialDelay,
		MaxDelay:     cfg.LookupMaxDelay,
		Deadline:     cfg.LookupDeadline,
	}
	reconciler := services.NewReconciler(orderRepo, statusRepo, bus, retry, metrics, appLogger)
	checkoutSvc := services.NewCheckoutService(services.CheckoutConfig{
		Enabled:          cfg.StripeEnabled,
		Development:      cfg.IsDevelopment(),
		Element:          cfg.StripeElement,
		OneClick:         cfg.StripeOneClick,
		ItemizeLineItems: cfg.StripeItemizeLineItems,
		FrontendURL:      cfg.FrontendURL,
		PublishableKey:   cfg.StripePublishableKey,
	}, stripeSvc, orderRepo, reconciler, paylog, metrics, appLogger)

	if cfg.PaymentRequestQueueURL != "" && awsErr == nil {
		consumer := services.NewPaymentRequestConsumer(
			aws_pkg.NewSQSConsumer(awsCfg, cfg.PaymentRequestQueueURL, appLogger),
			orderRepo,
			checkoutSvc,
			publisher,
			paylog,
			appLogger,
		)
		go consumer.Start(ctx)
	}

	// HTTP server
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	pc := &controllers.PaymentController{
		Intents:          services.NewPaymentIntentService(stripeSvc, metrics, appLogger),
		Checkout:         checkoutSvc,
		Orders:           orderRepo,
		Sessions:         sessionRepo,
		Verifier:         stripeSvc,
		Reconciler:       reconciler,
		PayLog:           paylog,
		Metrics:          metrics,
		Logger:           appLogger,
		WebhookSecureURL: cfg.StripeWebhookSecureURL,
	}
	webhookLimiter := commonmw.NewRateLimiter(rate.Limit(20), 40, 10*time.Minute)
	defer webhookLimiter.Stop()

	r := routes.NewRouter(pc, routes.Options{
		TokenParser:    auth.NewTokenParser(cfg.JWTSecret),
		AllowedOrigins: cfg.AllowedOrigins,
		WebhookLimiter: webhookLimiter,
		Metrics:        metrics,
	}, appLogger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	appLogger.Info("Payment service started", zap.String("port", cfg.Port), zap.String("event_transport", cfg.EventTransport))
	<-ctx.Done()
	appLogger.Info("Shutting down payment service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	appLogger.Info("Server exited cleanly")
}
