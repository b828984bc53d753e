package services

import (
	"context"
	"time"

	"github.com/yashrajoria/stripe-payment-service/events"
	"github.com/yashrajoria/stripe-payment-service/models"
	aws_pkg "github.com/yashrajoria/stripe-payment-service/pkg/aws"
	"go.uber.org/zap"
)

// PaymentEventForwarder publishes payment_succeeded / payment_failed for real
// status changes. Publishing failures are logged; the status change stands.
type PaymentEventForwarder struct {
	publisher PaymentEventPublisher
	metrics   MetricsRecorder
	logger    *zap.Logger
}

func NewPaymentEventForwarder(publisher PaymentEventPublisher, metrics MetricsRecorder, logger *zap.Logger) *PaymentEventForwarder {
	return &PaymentEventForwarder{publisher: publisher, metrics: metricsOrNop(metrics), logger: logger}
}

func (f *PaymentEventForwarder) Forward(ctx context.Context, e *events.OrderEvent) error {
	if !e.Changed {
		return nil
	}

	var eventType, metric string
	switch e.Status {
	case models.StatusPaid:
		eventType, metric = models.EventPaymentSucceeded, aws_pkg.MetricPaymentSucceeded
	case models.StatusCanceled:
		eventType, metric = models.EventPaymentFailed, aws_pkg.MetricPaymentFailed
	default:
		return nil
	}

	order := e.Order
	evt := models.PaymentEvent{
		Type:           eventType,
		OrderID:        order.ID.String(),
		OrderRef:       order.Ref,
		TransactionRef: order.TransactionRefValue(),
		Status:         e.Status,
		Amount:         order.Amount,
		Currency:       order.Currency,
		Timestamp:      time.Now().UTC(),
	}
	if err := f.publisher.PublishPaymentEvent(ctx, evt); err != nil {
		f.logger.Error("Failed to publish payment event",
			zap.String("event_type", eventType),
			zap.String("order_ref", order.Ref),
			zap.Error(err),
		)
	} else {
		f.logger.Info("Payment event published", zap.String("event_type", eventType), zap.String("order_ref", order.Ref))
	}

	dims := map[string]string{"Currency": order.Currency}
	amount := order.Amount
	recordAsync(func(ctx context.Context) {
		_ = f.metrics.RecordCount(ctx, metric, dims)
		if eventType == models.EventPaymentSucceeded {
			_ = f.metrics.RecordAmount(ctx, aws_pkg.MetricPaymentAmount, amount, dims)
		}
	})
	return nil
}
