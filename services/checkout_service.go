package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/stripe/stripe-go/v80"
	"github.com/yashrajoria/stripe-payment-service/models"
	aws_pkg "github.com/yashrajoria/stripe-payment-service/pkg/aws"
	"github.com/yashrajoria/stripe-payment-service/paymentlog"
	"github.com/yashrajoria/stripe-payment-service/repository"
	"go.uber.org/zap"
)

type CheckoutConfig struct {
	Enabled          bool
	Development      bool
	Element          bool
	OneClick         bool
	ItemizeLineItems bool
	FrontendURL      string
	PublishableKey   string
}

// PayResult tells the caller where to send the shopper. State is the session
// state to keep after the attempt.
type PayResult struct {
	Success        bool
	RedirectURL    string
	SessionID      string
	CheckoutURL    string
	PublishableKey string
	TransactionRef string
	UserMessage    string
	State          models.SessionState
}

type CheckoutService struct {
	cfg       CheckoutConfig
	processor PaymentProcessor
	orders    repository.OrderRepository
	status    StatusRequester
	paylog    *paymentlog.Logger
	metrics   MetricsRecorder
	logger    *zap.Logger
}

func NewCheckoutService(
	cfg CheckoutConfig,
	processor PaymentProcessor,
	orders repository.OrderRepository,
	status StatusRequester,
	paylog *paymentlog.Logger,
	metrics MetricsRecorder,
	logger *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
		cfg:       cfg,
		processor: processor,
		orders:    orders,
		status:    status,
		paylog:    paylog,
		metrics:   metricsOrNop(metrics),
		logger:    logger,
	}
}

func (s *CheckoutService) Config() CheckoutConfig {
	return s.cfg
}

// IsAvailable reports whether payments may be taken on this request.
func (s *CheckoutService) IsAvailable(secure bool) bool {
	return s.cfg.Enabled && (s.cfg.Development || secure)
}

// Pay settles the order in element mode or opens a hosted checkout session.
// It never fails: errors become a failure redirect and a payment log line.
// A paid order is refused before the processor is called.
func (s *CheckoutService) Pay(ctx context.Context, order *models.Order, state models.SessionState) PayResult {
	if order.IsPaid() {
		s.logger.Warn("Refusing to pay an order that is already paid",
			zap.String("order_ref", order.Ref), zap.String("transaction_ref", order.TransactionRefValue()))
		return PayResult{
			RedirectURL: s.frontendURL("/order/failed/%s/%s", order.ID, url.PathEscape(ErrOrderAlreadyPaid.Error())),
			UserMessage: ErrOrderAlreadyPaid.Error(),
			State:       state,
		}
	}

	var (
		res PayResult
		err error
	)
	if s.cfg.Element {
		res, err = s.payWithElement(ctx, order, state)
	} else {
		res, err = s.StartHostedCheckout(ctx, order, "")
	}
	if err != nil {
		return s.fail(order, err, res.State)
	}
	return res
}

func (s *CheckoutService) payWithElement(ctx context.Context, order *models.Order, state models.SessionState) (PayResult, error) {
	res := PayResult{State: state}
	if !state.HasIntent() {
		return res, ErrNoPaymentIntent
	}

	pi, err := s.processor.GetPaymentIntent(ctx, state.PaymentIntentID)
	if err != nil {
		return res, err
	}
	if pi.Amount != order.Amount {
		return res, fmt.Errorf("%w: intent %d, order %d", paymentlog.ErrAmountMismatch, pi.Amount, order.Amount)
	}
	if err := s.orders.SetTransactionRef(ctx, order.ID, pi.ID); err != nil {
		return res, err
	}
	ref := pi.ID
	order.TransactionRef = &ref

	if pi.Status == stripe.PaymentIntentStatusSucceeded {
		if err := s.status.RequestTransition(ctx, order, models.StatusPaid); err != nil {
			// The webhook will retry the same transition.
			s.logger.Warn("Paid transition from pay path failed", zap.String("order_ref", order.Ref), zap.Error(err))
		}
	}

	return PayResult{
		Success:        true,
		RedirectURL:    s.frontendURL("/order/placed/%s", order.ID),
		TransactionRef: pi.ID,
		State:          models.SessionState{},
	}, nil
}

// StartHostedCheckout creates a Stripe Checkout session for the order and
// stores its reference on the order.
func (s *CheckoutService) StartHostedCheckout(ctx context.Context, order *models.Order, idempotencyKey string) (PayResult, error) {
	res := PayResult{}
	if order.IsPaid() {
		return res, ErrOrderAlreadyPaid
	}

	items := s.lineItems(order)
	if len(items) == 0 {
		return res, ErrEmptyCart
	}
	var sum int64
	for _, li := range items {
		sum += li.UnitAmount * li.Quantity
	}
	if sum != order.Amount {
		return res, fmt.Errorf("%w: line items %d, order %d", paymentlog.ErrAmountMismatch, sum, order.Amount)
	}

	sess, err := s.processor.CreateCheckoutSession(ctx, CheckoutParams{
		OrderRef:       order.Ref,
		CustomerEmail:  order.CustomerEmail,
		Currency:       order.Currency,
		LineItems:      items,
		SuccessURL:     s.frontendURL("/order/placed/%s", order.ID),
		CancelURL:      s.frontendURL("/order/failed/%s/error", order.ID),
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return res, err
	}

	ref := sess.ID
	if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
		ref = sess.PaymentIntent.ID
	}
	if err := s.orders.SetTransactionRef(ctx, order.ID, ref); err != nil {
		return res, err
	}
	order.TransactionRef = &ref

	dims := map[string]string{"Currency": order.Currency}
	recordAsync(func(ctx context.Context) {
		_ = s.metrics.RecordCount(ctx, aws_pkg.MetricCheckoutSessions, dims)
	})
	s.logger.Info("Checkout session created", zap.String("order_ref", order.Ref), zap.String("session_id", sess.ID))

	return PayResult{
		Success:        true,
		RedirectURL:    sess.URL,
		SessionID:      sess.ID,
		CheckoutURL:    sess.URL,
		PublishableKey: s.cfg.PublishableKey,
		TransactionRef: ref,
	}, nil
}

// lineItems returns a single "Total" line unless itemization is enabled.
func (s *CheckoutService) lineItems(order *models.Order) []LineItem {
	if !s.cfg.ItemizeLineItems {
		if order.Amount <= 0 {
			return nil
		}
		return []LineItem{{Name: "Total", Quantity: 1, UnitAmount: order.Amount}}
	}

	items := make([]LineItem, 0, len(order.Items)+1)
	for _, it := range order.Items {
		if it.Quantity <= 0 {
			continue
		}
		items = append(items, LineItem{Name: it.Title, Description: it.ProductRef, Quantity: it.Quantity, UnitAmount: it.UnitAmount})
	}
	if len(items) > 0 && order.Postage > 0 {
		items = append(items, LineItem{Name: "Postage", Quantity: 1, UnitAmount: order.Postage})
	}
	return items
}

func (s *CheckoutService) fail(order *models.Order, err error, state models.SessionState) PayResult {
	kind := paymentlog.Classify(err)
	userMsg := kind.UserMessage()
	if errors.Is(err, ErrEmptyCart) {
		userMsg = err.Error()
	}

	s.paylog.Record(paymentlog.Alert, paymentlog.DefaultCategory, kind.OperatorMessage(order.Ref, err))
	s.logger.Warn("Payment failed", zap.String("order_ref", order.Ref), zap.Stringer("kind", kind), zap.Error(err))

	return PayResult{
		RedirectURL: s.frontendURL("/order/failed/%s/%s", order.ID, url.PathEscape(userMsg)),
		UserMessage: userMsg,
		State:       state,
	}
}

func (s *CheckoutService) frontendURL(format string, args ...interface{}) string {
	return s.cfg.FrontendURL + fmt.Sprintf(format, args...)
}
