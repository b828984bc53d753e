package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v80"
	apperrors "github.com/yashrajoria/stripe-payment-service/common/errors"
	"github.com/yashrajoria/stripe-payment-service/middleware"
	"github.com/yashrajoria/stripe-payment-service/models"
	"github.com/yashrajoria/stripe-payment-service/paymentlog"
	"github.com/yashrajoria/stripe-payment-service/repository"
	"github.com/yashrajoria/stripe-payment-service/services"
	"go.uber.org/zap"
)

type IntentSyncer interface {
	SyncTransaction(ctx context.Context, cart models.Cart, draft models.OrderDraft, state models.SessionState) (services.IntentResult, error)
}

type Checkout interface {
	Config() services.CheckoutConfig
	IsAvailable(secure bool) bool
	Pay(ctx context.Context, order *models.Order, state models.SessionState) services.PayResult
}

type WebhookVerifier interface {
	ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error)
}

type EventHandler interface {
	HandleEvent(ctx context.Context, event stripe.Event) (services.Outcome, error)
}

type PaymentController struct {
	Intents    IntentSyncer
	Checkout   Checkout
	Orders     repository.OrderRepository
	Sessions   repository.SessionRepository
	Verifier   WebhookVerifier
	Reconciler EventHandler
	PayLog     *paymentlog.Logger
	Metrics    services.MetricsRecorder
	Logger     *zap.Logger

	WebhookSecureURL string
}

type intentRequest struct {
	Event string            `json:"event"`
	Cart  models.Cart       `json:"cart"`
	Order models.OrderDraft `json:"order"`
}

// Availability handles GET /payments/available
func (pc *PaymentController) Availability(c *gin.Context) {
	cfg := pc.Checkout.Config()
	c.JSON(http.StatusOK, gin.H{
		"available":       pc.Checkout.IsAvailable(isSecure(c)),
		"element":         cfg.Element,
		"one_click":       cfg.OneClick,
		"publishable_key": cfg.PublishableKey,
	})
}

// SyncIntent handles POST /payments/intent. It is called after every cart
// mutation and keeps the session's payment intent in step with the cart.
func (pc *PaymentController) SyncIntent(c *gin.Context) {
	if !pc.Checkout.IsAvailable(isSecure(c)) {
		pc.respondError(c, services.ErrPaymentNotAvailable.StatusCode, services.ErrPaymentNotAvailable.Message, nil)
		return
	}

	var req intentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	if email := middleware.GetCustomerEmail(c); email != "" {
		req.Order.CustomerEmail = email
	}

	ctx := c.Request.Context()
	sessionID := middleware.GetSessionID(c)
	state, err := pc.Sessions.Get(ctx, sessionID)
	if err != nil {
		_ = c.Error(apperrors.ErrInternalServer.Wrap(err))
		return
	}

	res, err := pc.Intents.SyncTransaction(ctx, req.Cart, req.Order, state)
	if err != nil {
		if errors.Is(err, models.ErrMissingDeliveryCountry) {
			pc.respondError(c, http.StatusBadRequest, err.Error(), nil)
			return
		}
		pc.Logger.Error("Failed to sync payment intent",
			zap.String("event", req.Event),
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		if res.State != state {
			if saveErr := pc.Sessions.Save(ctx, sessionID, res.State); saveErr != nil {
				pc.Logger.Warn("Failed to store session state", zap.String("session_id", sessionID), zap.Error(saveErr))
			}
		}
		_ = c.Error(apperrors.ErrProcessor.Wrap(err))
		return
	}

	if res.Action != services.IntentNoOp {
		if err := pc.Sessions.Save(ctx, sessionID, res.State); err != nil {
			_ = c.Error(apperrors.ErrInternalServer.Wrap(err))
			return
		}
	}
	pc.Logger.Info("Payment intent synced",
		zap.String("event", req.Event),
		zap.String("action", string(res.Action)),
		zap.String("payment_intent_id", res.State.PaymentIntentID),
	)

	cfg := pc.Checkout.Config()
	c.JSON(http.StatusOK, gin.H{
		"action":            res.Action,
		"payment_intent_id": res.State.PaymentIntentID,
		"client_secret":     res.State.ClientSecret,
		"amount":            res.State.Amount,
		"currency":          res.State.Currency,
		"publishable_key":   cfg.PublishableKey,
		"one_click":         cfg.OneClick,
	})
}

// PayOrder handles POST /payments/orders/:ref/pay. Payment failures are
// reported through the redirect, not the status code.
func (pc *PaymentController) PayOrder(c *gin.Context) {
	if !pc.Checkout.IsAvailable(isSecure(c)) {
		pc.respondError(c, services.ErrPaymentNotAvailable.StatusCode, services.ErrPaymentNotAvailable.Message, nil)
		return
	}

	ctx := c.Request.Context()
	order, err := pc.Orders.FindByRef(ctx, c.Param("ref"))
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			_ = c.Error(apperrors.ErrNotFound.Wrap(err))
			return
		}
		_ = c.Error(apperrors.ErrInternalServer.Wrap(err))
		return
	}
	if !order.IsStripe() {
		_ = c.Error(apperrors.ErrInvalidOrder)
		return
	}
	if order.IsPaid() {
		_ = c.Error(apperrors.ErrOrderAlreadyPaid)
		return
	}

	sessionID := middleware.GetSessionID(c)
	state, err := pc.Sessions.Get(ctx, sessionID)
	if err != nil {
		_ = c.Error(apperrors.ErrInternalServer.Wrap(err))
		return
	}

	res := pc.Checkout.Pay(ctx, order, state)
	if err := pc.Sessions.Save(ctx, sessionID, res.State); err != nil {
		pc.Logger.Warn("Failed to store session state", zap.String("session_id", sessionID), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         res.Success,
		"redirect_url":    res.RedirectURL,
		"session_id":      res.SessionID,
		"checkout_url":    res.CheckoutURL,
		"publishable_key": res.PublishableKey,
		"message":         res.UserMessage,
	})
}
