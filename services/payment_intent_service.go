package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/yashrajoria/stripe-payment-service/models"
	aws_pkg "github.com/yashrajoria/stripe-payment-service/pkg/aws"
	"go.uber.org/zap"
)

type IntentAction string

const (
	IntentNoOp    IntentAction = "noop"
	IntentCreated IntentAction = "created"
	IntentUpdated IntentAction = "updated"
)

type IntentResult struct {
	Action IntentAction
	State  models.SessionState
}

var hundred = decimal.NewFromInt(100)

// ComputeAmount returns round((postage + taxed cart) * 100) in minor units.
func ComputeAmount(cart models.Cart, draft models.OrderDraft) (int64, error) {
	taxed, err := cart.TaxedAmount(draft.DeliveryCountry)
	if err != nil {
		return 0, err
	}
	return draft.Postage.Add(taxed).Mul(hundred).Round(0).IntPart(), nil
}

// PaymentIntentService keeps one payment intent per checkout session in
// step with the cart.
type PaymentIntentService struct {
	processor PaymentProcessor
	metrics   MetricsRecorder
	logger    *zap.Logger
}

func NewPaymentIntentService(processor PaymentProcessor, metrics MetricsRecorder, logger *zap.Logger) *PaymentIntentService {
	return &PaymentIntentService{processor: processor, metrics: metricsOrNop(metrics), logger: logger}
}

// SyncTransaction creates or updates the session's payment intent for the
// current cart. Nothing is sent to Stripe when the total is not positive.
// When the intent call fails the returned state still carries a newly created
// customer id, so callers should store it before reporting the error.
func (s *PaymentIntentService) SyncTransaction(ctx context.Context, cart models.Cart, draft models.OrderDraft, state models.SessionState) (IntentResult, error) {
	amount, err := ComputeAmount(cart, draft)
	if err != nil {
		return IntentResult{Action: IntentNoOp, State: state}, err
	}
	if amount <= 0 {
		return IntentResult{Action: IntentNoOp, State: state}, nil
	}

	currency := strings.ToLower(cart.Currency)
	customerID, err := s.resolveCustomer(ctx, draft.CustomerEmail, state)
	if err != nil {
		return IntentResult{Action: IntentNoOp, State: state}, err
	}

	params := IntentParams{Amount: amount, Currency: currency, CustomerID: customerID}
	next := state
	next.CustomerID = customerID

	if state.HasIntent() {
		pi, err := s.processor.UpdatePaymentIntent(ctx, state.PaymentIntentID, params)
		if err != nil {
			return IntentResult{Action: IntentNoOp, State: next}, fmt.Errorf("update payment intent %s: %w", state.PaymentIntentID, err)
		}
		next.ClientSecret = pi.ClientSecret
		next.Amount, next.Currency = amount, currency
		s.logger.Debug("Payment intent updated", zap.String("payment_intent_id", pi.ID), zap.Int64("amount", amount))
		return IntentResult{Action: IntentUpdated, State: next}, nil
	}

	pi, err := s.processor.CreatePaymentIntent(ctx, params)
	if err != nil {
		return IntentResult{Action: IntentNoOp, State: next}, fmt.Errorf("create payment intent: %w", err)
	}
	next.PaymentIntentID = pi.ID
	next.ClientSecret = pi.ClientSecret
	next.Amount, next.Currency = amount, currency

	s.logger.Info("Payment intent created", zap.String("payment_intent_id", pi.ID), zap.Int64("amount", amount), zap.String("currency", currency))
	recordAsync(func(ctx context.Context) {
		_ = s.metrics.RecordCount(ctx, aws_pkg.MetricIntentsCreated, map[string]string{"Currency": currency})
	})
	return IntentResult{Action: IntentCreated, State: next}, nil
}

// resolveCustomer reuses the cached customer or creates one when the
// shopper is identified by email.
func (s *PaymentIntentService) resolveCustomer(ctx context.Context, email string, state models.SessionState) (string, error) {
	if state.CustomerID != "" || email == "" {
		return state.CustomerID, nil
	}
	c, err := s.processor.CreateCustomer(ctx, email)
	if err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}
	return c.ID, nil
}
