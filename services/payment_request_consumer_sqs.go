package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/yashrajoria/stripe-payment-service/models"
	aws_pkg "github.com/yashrajoria/stripe-payment-service/pkg/aws"
	"github.com/yashrajoria/stripe-payment-service/paymentlog"
	"github.com/yashrajoria/stripe-payment-service/repository"
	"go.uber.org/zap"
)

type QueuePoller interface {
	StartPolling(ctx context.Context, handler aws_pkg.MessageHandler) error
}

type HostedCheckout interface {
	StartHostedCheckout(ctx context.Context, order *models.Order, idempotencyKey string) (PayResult, error)
}

// PaymentRequestConsumer opens hosted checkout sessions for orders placed by
// other services and reports the result as a payment event.
type PaymentRequestConsumer struct {
	poller    QueuePoller
	orders    repository.OrderRepository
	checkout  HostedCheckout
	publisher PaymentEventPublisher
	paylog    *paymentlog.Logger
	validate  *validator.Validate
	logger    *zap.Logger
}

func NewPaymentRequestConsumer(
	poller QueuePoller,
	orders repository.OrderRepository,
	checkout HostedCheckout,
	publisher PaymentEventPublisher,
	paylog *paymentlog.Logger,
	logger *zap.Logger,
) *PaymentRequestConsumer {
	return &PaymentRequestConsumer{
		poller:    poller,
		orders:    orders,
		checkout:  checkout,
		publisher: publisher,
		paylog:    paylog,
		validate:  validator.New(),
		logger:    logger,
	}
}

func (c *PaymentRequestConsumer) Start(ctx context.Context) {
	c.logger.Info("Starting PaymentRequestConsumer (SQS)")

	err := c.poller.StartPolling(ctx, c.HandleMessage)
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Error("SQS consumer error", zap.Error(err))
	}
}

// HandleMessage returns an error only when the message should be retried.
func (c *PaymentRequestConsumer) HandleMessage(ctx context.Context, body string) error {
	// Messages fanned out through SNS arrive wrapped in an envelope.
	var envelope struct {
		Message string `json:"Message"`
	}
	if err := json.Unmarshal([]byte(body), &envelope); err == nil && envelope.Message != "" {
		body = envelope.Message
	}

	var req models.PaymentRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		c.logger.Warn("Invalid payment request JSON", zap.Error(err))
		return nil
	}
	if err := c.validate.Struct(&req); err != nil {
		c.logger.Warn("Invalid payment request", zap.String("order_ref", req.OrderRef), zap.Error(err))
		return nil
	}

	order, err := c.orders.FindByRef(ctx, req.OrderRef)
	if err != nil {
		c.logger.Warn("Order for payment request not available", zap.String("order_ref", req.OrderRef), zap.Error(err))
		return err
	}
	if !order.IsStripe() || order.IsPaid() {
		c.logger.Info("Skipping payment request",
			zap.String("order_ref", order.Ref),
			zap.String("status", order.Status),
			zap.String("payment_module", order.PaymentModule),
		)
		return nil
	}

	res, err := c.checkout.StartHostedCheckout(ctx, order, req.IdempotencyKey)
	if err != nil {
		kind := paymentlog.Classify(err)
		c.paylog.Log(kind.OperatorMessage(order.Ref, err))
		c.logger.Error("Failed to create checkout session", zap.String("order_ref", order.Ref), zap.Stringer("kind", kind), zap.Error(err))
		c.publish(ctx, order, models.EventCheckoutSessionFailed, "")
		return nil
	}

	c.publish(ctx, order, models.EventCheckoutSessionCreated, res.CheckoutURL)
	c.logger.Info("Payment request processed", zap.String("order_ref", order.Ref), zap.String("checkout_url", res.CheckoutURL))
	return nil
}

func (c *PaymentRequestConsumer) publish(ctx context.Context, order *models.Order, eventType, checkoutURL string) {
	evt := models.PaymentEvent{
		Type:           eventType,
		OrderID:        order.ID.String(),
		OrderRef:       order.Ref,
		TransactionRef: order.TransactionRefValue(),
		CheckoutURL:    checkoutURL,
		Status:         order.Status,
		Amount:         order.Amount,
		Currency:       order.Currency,
		Timestamp:      time.Now().UTC(),
	}
	if err := c.publisher.PublishPaymentEvent(ctx, evt); err != nil {
		c.logger.Error("Failed to publish payment event", zap.String("event_type", eventType), zap.String("order_ref", order.Ref), zap.Error(err))
	}
}
