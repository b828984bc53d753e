package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/stripe/stripe-go/v80"
	"github.com/yashrajoria/stripe-payment-service/events"
	"github.com/yashrajoria/stripe-payment-service/models"
	aws_pkg "github.com/yashrajoria/stripe-payment-service/pkg/aws"
	"github.com/yashrajoria/stripe-payment-service/repository"
	"go.uber.org/zap"
)

type Outcome string

const (
	OutcomePaid     Outcome = "paid"
	OutcomeCanceled Outcome = "canceled"
)

// StatusRequester asks the host to move an order to a new status.
type StatusRequester interface {
	RequestTransition(ctx context.Context, order *models.Order, statusCode string) error
}

// Reconciler turns verified Stripe events into order status requests. It
// never writes the status itself; the order.update_status subscribers do.
type Reconciler struct {
	orders   repository.OrderRepository
	statuses repository.OrderStatusRepository
	bus      *events.Bus
	retry    RetryPolicy
	metrics  MetricsRecorder
	logger   *zap.Logger
}

func NewReconciler(
	orders repository.OrderRepository,
	statuses repository.OrderStatusRepository,
	bus *events.Bus,
	retry RetryPolicy,
	metrics MetricsRecorder,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		orders:   orders,
		statuses: statuses,
		bus:      bus,
		retry:    retry,
		metrics:  metricsOrNop(metrics),
		logger:   logger,
	}
}

// HandleEvent dispatches on the event type:
//
//	checkout.session.completed     order by client_reference_id -> paid
//	payment_intent.succeeded       order by transaction ref     -> paid
//	payment_intent.payment_failed  order by transaction ref     -> canceled
func (r *Reconciler) HandleEvent(ctx context.Context, event stripe.Event) (Outcome, error) {
	if event.Data == nil {
		return "", ErrInvalidEventPayload
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil || sess.ClientReferenceID == "" {
			return "", ErrInvalidEventPayload
		}
		order, err := r.orders.FindByRef(ctx, sess.ClientReferenceID)
		if err != nil {
			r.countNotFound(err, event.Type)
			return "", err
		}
		r.adoptPaymentIntent(ctx, order, &sess)
		return OutcomePaid, r.RequestTransition(ctx, order, models.StatusPaid)

	case stripe.EventTypePaymentIntentSucceeded, stripe.EventTypePaymentIntentPaymentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil || pi.ID == "" {
			return "", ErrInvalidEventPayload
		}
		order, err := r.findByTransactionRef(ctx, pi.ID)
		if err != nil {
			r.countNotFound(err, event.Type)
			return "", err
		}
		if event.Type == stripe.EventTypePaymentIntentSucceeded {
			return OutcomePaid, r.RequestTransition(ctx, order, models.StatusPaid)
		}
		return OutcomeCanceled, r.RequestTransition(ctx, order, models.StatusCanceled)
	}

	return "", fmt.Errorf("%w: %s", ErrUnexpectedEventType, event.Type)
}

// findByTransactionRef waits for the order row: the intent webhook can beat
// the commit that stores the intent id on the order.
func (r *Reconciler) findByTransactionRef(ctx context.Context, ref string) (*models.Order, error) {
	var (
		order   *models.Order
		lastErr error
	)
	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		o, err := r.orders.FindByTransactionRef(ctx, ref)
		lastErr = err
		if err != nil {
			if errors.Is(err, repository.ErrOrderNotFound) {
				return err
			}
			return backoff.Permanent(err)
		}
		order = o
		return nil
	}, r.retry.BackOff(ctx))
	if err != nil {
		// backoff reports only ctx.Err() when the context ends mid-wait.
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) && lastErr != nil && !errors.Is(lastErr, ctxErr) {
			err = errors.Join(lastErr, ctxErr)
		}
		if errors.Is(err, repository.ErrOrderNotFound) {
			r.logger.Warn("No order for transaction ref", zap.String("transaction_ref", ref), zap.Int("attempts", attempts))
		}
		return nil, err
	}
	return order, nil
}

// adoptPaymentIntent replaces a stored checkout session id with the payment
// intent id the completed session resolved to.
func (r *Reconciler) adoptPaymentIntent(ctx context.Context, order *models.Order, sess *stripe.CheckoutSession) {
	if sess.PaymentIntent == nil || sess.PaymentIntent.ID == "" {
		return
	}
	piID := sess.PaymentIntent.ID
	current := order.TransactionRefValue()
	if current == piID || (current != "" && current != sess.ID) {
		return
	}

	if err := r.orders.SetTransactionRef(ctx, order.ID, piID); err != nil {
		r.logger.Warn("Could not store payment intent on order",
			zap.String("order_ref", order.Ref),
			zap.String("payment_intent_id", piID),
			zap.Error(err),
		)
		return
	}
	order.TransactionRef = &piID
}

// RequestTransition resolves statusCode in the catalog and publishes
// order.update_status for it.
func (r *Reconciler) RequestTransition(ctx context.Context, order *models.Order, statusCode string) error {
	status, err := r.statuses.FindByCode(ctx, statusCode)
	if err != nil {
		return err
	}

	e := events.NewOrderEvent(order)
	e.Status = status.Code
	e.StatusID = status.ID
	if err := r.bus.Publish(ctx, events.OrderUpdateStatus, e); err != nil {
		return fmt.Errorf("update status of order %s to %s: %w", order.Ref, statusCode, err)
	}
	return nil
}

func (r *Reconciler) countNotFound(err error, eventType stripe.EventType) {
	if !errors.Is(err, repository.ErrOrderNotFound) {
		return
	}
	recordAsync(func(ctx context.Context) {
		_ = r.metrics.RecordCount(ctx, aws_pkg.MetricReconciliationNotFound, map[string]string{"EventType": string(eventType)})
	})
}
