package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/stripe-payment-service/common/auth"
	apperrors "github.com/yashrajoria/stripe-payment-service/common/errors"
	"github.com/yashrajoria/stripe-payment-service/common/logger"
	commonmw "github.com/yashrajoria/stripe-payment-service/common/middleware"
	"github.com/yashrajoria/stripe-payment-service/controllers"
	"github.com/yashrajoria/stripe-payment-service/middleware"
	"go.uber.org/zap"
)

const serviceName = "payment-service"

type Options struct {
	TokenParser    *auth.TokenParser
	AllowedOrigins []string
	WebhookLimiter *commonmw.RateLimiter
	Metrics        commonmw.MetricsRecorder
	RequestTimeout time.Duration
}

// NewRouter builds the engine with the global middleware chain, /health and
// the payment routes.
func NewRouter(pc *controllers.PaymentController, opts Options, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		logger.RequestID(),
		commonmw.RequestLogger(log),
		commonmw.MetricsMiddleware(opts.Metrics, serviceName),
		apperrors.ErrorMiddleware(),
	)

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	r.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": serviceName})
	})

	RegisterPaymentRoutes(r, pc, opts)
	return r
}

// RegisterPaymentRoutes sets up the storefront payment routes and the Stripe webhook.
func RegisterPaymentRoutes(r *gin.Engine, pc *controllers.PaymentController, opts Options) {
	payments := r.Group("/payments")
	payments.Use(commonmw.SecurityHeaders())
	if len(opts.AllowedOrigins) > 0 {
		payments.Use(cors.New(cors.Config{
			AllowOrigins:     opts.AllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.SessionHeader, "X-Request-ID"},
			ExposeHeaders:    []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	payments.Use(middleware.CheckoutSession(opts.TokenParser))

	payments.GET("/available", pc.Availability)
	payments.POST("/intent", pc.SyncIntent)
	payments.POST("/orders/:ref/pay", pc.PayOrder)

	// Stripe webhook (no session, secret path segment)
	webhooks := r.Group("/module/stripe/webhook")
	if opts.WebhookLimiter != nil {
		webhooks.Use(opts.WebhookLimiter.Middleware())
	}
	webhooks.POST("/:secure_url/listen", pc.StripeWebhook)
}
