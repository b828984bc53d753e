package controllers

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/webhook"
	aws_pkg "github.com/yashrajoria/stripe-payment-service/pkg/aws"
	"github.com/yashrajoria/stripe-payment-service/paymentlog"
	"github.com/yashrajoria/stripe-payment-service/services"
	"go.uber.org/zap"
)

// Stripe never sends more than this.
const maxWebhookBody = int64(65536)

// StripeWebhook handles POST /module/stripe/webhook/:secure_url/listen
func (pc *PaymentController) StripeWebhook(c *gin.Context) {
	if !pc.validSecureURL(c.Param("secure_url")) {
		pc.reject(c, "secure_url", "Bad request")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		pc.reject(c, "body", "Invalid payload")
		return
	}

	event, err := pc.Verifier.ConstructEvent(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		pc.Logger.Warn("Stripe webhook verification failed", zap.Error(err))
		if isSignatureError(err) {
			pc.reject(c, "signature", err.Error())
			return
		}
		pc.reject(c, "payload", "Invalid payload")
		return
	}

	pc.Logger.Info("Processing Stripe webhook",
		zap.String("event_type", string(event.Type)),
		zap.String("event_id", event.ID),
	)
	pc.logEvent(event)
	pc.recordCount(aws_pkg.MetricWebhookEvents, map[string]string{"EventType": string(event.Type)})

	_, err = pc.Reconciler.HandleEvent(c.Request.Context(), event)
	switch {
	case err == nil:
		c.String(http.StatusOK, "Success")
	case errors.Is(err, services.ErrUnexpectedEventType):
		pc.PayLog.Record(paymentlog.Warning, paymentlog.DefaultCategory, "Unexpected event type "+string(event.Type))
		c.String(http.StatusBadRequest, "Unexpected event type")
	case errors.Is(err, services.ErrInvalidEventPayload):
		c.String(http.StatusBadRequest, "Invalid payload")
	default:
		pc.Logger.Error("Stripe webhook dispatch failed",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
		pc.PayLog.Record(paymentlog.Error, paymentlog.DefaultCategory, err.Error())
		c.String(http.StatusInternalServerError, err.Error())
	}
}

func (pc *PaymentController) validSecureURL(token string) bool {
	if pc.WebhookSecureURL == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(pc.WebhookSecureURL)) == 1
}

func (pc *PaymentController) reject(c *gin.Context, reason, body string) {
	pc.recordCount(aws_pkg.MetricWebhookRejected, map[string]string{"Reason": reason})
	c.String(http.StatusBadRequest, body)
}

func (pc *PaymentController) logEvent(event stripe.Event) {
	raw, err := json.Marshal(event)
	if err != nil {
		raw = []byte(event.ID)
	}
	pc.PayLog.Record(paymentlog.Info, paymentlog.DefaultCategory, "Event received: "+string(raw))
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}
