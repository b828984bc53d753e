package services_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80"
	"github.com/yashrajoria/stripe-payment-service/models"
	aws_pkg "github.com/yashrajoria/stripe-payment-service/pkg/aws"
	"github.com/yashrajoria/stripe-payment-service/paymentlog"
	"github.com/yashrajoria/stripe-payment-service/repository"
	"github.com/yashrajoria/stripe-payment-service/services"
	"go.uber.org/zap"
)

type fakePoller struct {
	bodies  []string
	results []error
}

func (p *fakePoller) StartPolling(ctx context.Context, handler aws_pkg.MessageHandler) error {
	for _, b := range p.bodies {
		p.results = append(p.results, handler(ctx, b))
	}
	return context.Canceled
}

type consumerFixture struct {
	consumer  *services.PaymentRequestConsumer
	processor *mockProcessor
	repo      *memOrderRepo
	publisher *mockPublisher
	paylog    *bytes.Buffer
}

func newConsumerFixture(t *testing.T, poller services.QueuePoller, orders ...*models.Order) *consumerFixture {
	t.Helper()
	f := newCheckoutFixture(t, services.CheckoutConfig{}, orders...)
	publisher := &mockPublisher{}
	consumer := services.NewPaymentRequestConsumer(poller, f.harness.repo, f.svc, publisher, paymentlog.NewWithWriter(f.paylog), zap.NewNop())
	return &consumerFixture{consumer: consumer, processor: f.processor, repo: f.harness.repo, publisher: publisher, paylog: f.paylog}
}

func requestBody(t *testing.T, req models.PaymentRequest) string {
	t.Helper()
	b, err := json.Marshal(req)
	require.NoError(t, err)
	return string(b)
}

func TestPaymentRequestConsumer_CreatesSession(t *testing.T) {
	order := newOrder("ORD-1", 4200, "")
	f := newConsumerFixture(t, nil, order)
	f.processor.session = &stripe.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/c/cs_1"}

	err := f.consumer.HandleMessage(context.Background(), requestBody(t, models.PaymentRequest{OrderRef: "ORD-1", IdempotencyKey: "k1"}))
	require.NoError(t, err)

	require.Len(t, f.publisher.events, 1)
	evt := f.publisher.events[0]
	assert.Equal(t, models.EventCheckoutSessionCreated, evt.Type)
	assert.Equal(t, "https://checkout.stripe.com/c/cs_1", evt.CheckoutURL)
	assert.Equal(t, "cs_1", evt.TransactionRef)
	assert.Equal(t, "k1", f.processor.checkoutParams[0].IdempotencyKey)
}

func TestPaymentRequestConsumer_UnwrapsSNSEnvelope(t *testing.T) {
	order := newOrder("ORD-1", 4200, "")
	f := newConsumerFixture(t, nil, order)
	f.processor.session = &stripe.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/c/cs_1"}

	envelope, err := json.Marshal(map[string]string{
		"Type":    "Notification",
		"Message": requestBody(t, models.PaymentRequest{OrderRef: "ORD-1"}),
	})
	require.NoError(t, err)

	require.NoError(t, f.consumer.HandleMessage(context.Background(), string(envelope)))
	assert.Equal(t, []string{models.EventCheckoutSessionCreated}, f.publisher.types())
}

func TestPaymentRequestConsumer_DropsBadMessages(t *testing.T) {
	f := newConsumerFixture(t, nil)

	assert.NoError(t, f.consumer.HandleMessage(context.Background(), "not json"))
	assert.NoError(t, f.consumer.HandleMessage(context.Background(), `{"idempotency_key":"k"}`))
	assert.NoError(t, f.consumer.HandleMessage(context.Background(), requestBody(t, models.PaymentRequest{OrderRef: strings.Repeat("x", 65)})))
	assert.Empty(t, f.publisher.types())
}

func TestPaymentRequestConsumer_RetriesMissingOrder(t *testing.T) {
	f := newConsumerFixture(t, nil)

	err := f.consumer.HandleMessage(context.Background(), requestBody(t, models.PaymentRequest{OrderRef: "ORD-404"}))
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)
}

func TestPaymentRequestConsumer_SkipsPaidOrders(t *testing.T) {
	order := newOrder("ORD-1", 4200, "pi_1")
	order.Status = models.StatusPaid
	f := newConsumerFixture(t, nil, order)

	require.NoError(t, f.consumer.HandleMessage(context.Background(), requestBody(t, models.PaymentRequest{OrderRef: "ORD-1"})))
	assert.Zero(t, f.processor.totalCalls())
	assert.Empty(t, f.publisher.types())
}

func TestPaymentRequestConsumer_SessionFailure(t *testing.T) {
	order := newOrder("ORD-1", 4200, "")
	f := newConsumerFixture(t, nil, order)
	f.processor.sessionErr = errors.New("stripe unavailable")

	require.NoError(t, f.consumer.HandleMessage(context.Background(), requestBody(t, models.PaymentRequest{OrderRef: "ORD-1"})))
	assert.Equal(t, []string{models.EventCheckoutSessionFailed}, f.publisher.types())
	assert.Contains(t, f.paylog.String(), "stripe.ALERT: Error paying order ORD-1")
}

func TestPaymentRequestConsumer_Start(t *testing.T) {
	order := newOrder("ORD-1", 4200, "")
	poller := &fakePoller{bodies: []string{requestBody(t, models.PaymentRequest{OrderRef: "ORD-1"}), "garbage"}}
	f := newConsumerFixture(t, poller, order)
	f.processor.session = &stripe.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/c/cs_1"}

	f.consumer.Start(context.Background())

	assert.Equal(t, []error{nil, nil}, poller.results)
	assert.Equal(t, []string{models.EventCheckoutSessionCreated}, f.publisher.types())
}
