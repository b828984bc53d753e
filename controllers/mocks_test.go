package controllers_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80"
	"github.com/yashrajoria/stripe-payment-service/common/auth"
	apperrors "github.com/yashrajoria/stripe-payment-service/common/errors"
	"github.com/yashrajoria/stripe-payment-service/controllers"
	"github.com/yashrajoria/stripe-payment-service/events"
	"github.com/yashrajoria/stripe-payment-service/middleware"
	"github.com/yashrajoria/stripe-payment-service/models"
	"github.com/yashrajoria/stripe-payment-service/paymentlog"
	"github.com/yashrajoria/stripe-payment-service/repository"
	"github.com/yashrajoria/stripe-payment-service/sender"
	"github.com/yashrajoria/stripe-payment-service/services"
	"go.uber.org/zap"
)

const (
	webhookSecret = "whsec_test_secret"
	secureURL     = "s3cr3t-token"
	frontendURL   = "https://shop.example.com"
	jwtSecret     = "jwt-test-secret"
)

func accessToken(t *testing.T, email string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "user-1",
		"email": email,
		"typ":   "access",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return token
}

// ---- Stripe fake: real webhook verification, canned API responses ----

type fakeStripe struct {
	*services.StripeService

	mu       sync.Mutex
	session  *stripe.CheckoutSession
	intent   *stripe.PaymentIntent
	apiErr   error
	created  int
	updated  int
	sessions int

	customerEmails []string
}

func newFakeStripe() *fakeStripe {
	return &fakeStripe{StripeService: &services.StripeService{WebhookKey: webhookSecret}}
}

func (f *fakeStripe) CreatePaymentIntent(_ context.Context, p services.IntentParams) (*stripe.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.apiErr != nil {
		return nil, f.apiErr
	}
	f.created++
	id := fmt.Sprintf("pi_%d", f.created)
	return &stripe.PaymentIntent{ID: id, ClientSecret: id + "_secret", Amount: p.Amount}, nil
}

func (f *fakeStripe) UpdatePaymentIntent(_ context.Context, id string, p services.IntentParams) (*stripe.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.apiErr != nil {
		return nil, f.apiErr
	}
	f.updated++
	return &stripe.PaymentIntent{ID: id, ClientSecret: id + "_secret", Amount: p.Amount}, nil
}

func (f *fakeStripe) GetPaymentIntent(_ context.Context, _ string) (*stripe.PaymentIntent, error) {
	if f.apiErr != nil {
		return nil, f.apiErr
	}
	return f.intent, nil
}

func (f *fakeStripe) CreateCustomer(_ context.Context, email string) (*stripe.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.customerEmails = append(f.customerEmails, email)
	return &stripe.Customer{ID: "cus_1", Email: email}, nil
}

func (f *fakeStripe) CreateCheckoutSession(_ context.Context, _ services.CheckoutParams) (*stripe.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions++
	if f.apiErr != nil {
		return nil, f.apiErr
	}
	return f.session, nil
}

// ---- in-memory repositories ----

type memOrders struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*models.Order
}

func newMemOrders(orders ...*models.Order) *memOrders {
	m := &memOrders{orders: map[uuid.UUID]*models.Order{}}
	for _, o := range orders {
		cp := *o
		m.orders[o.ID] = &cp
	}
	return m
}

func (m *memOrders) find(match func(*models.Order) bool) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if match(o) {
			cp := *o
			return &cp, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (m *memOrders) byRef(ref string) models.Order {
	o, _ := m.find(func(o *models.Order) bool { return o.Ref == ref })
	return *o
}

func (m *memOrders) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	return m.find(func(o *models.Order) bool { return o.ID == id })
}

func (m *memOrders) FindByRef(_ context.Context, ref string) (*models.Order, error) {
	return m.find(func(o *models.Order) bool { return o.Ref == ref })
}

func (m *memOrders) FindByTransactionRef(_ context.Context, ref string) (*models.Order, error) {
	return m.find(func(o *models.Order) bool { return o.TransactionRefValue() == ref })
}

func (m *memOrders) SetTransactionRef(_ context.Context, orderID uuid.UUID, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.TransactionRef = &ref
	return nil
}

func (m *memOrders) UpdateStatus(_ context.Context, orderID uuid.UUID, status string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return false, repository.ErrOrderNotFound
	}
	if o.Status == status {
		return false, nil
	}
	if !models.CanTransition(o.Status, status) {
		return false, repository.ErrInvalidTransition
	}
	o.Status = status
	if status == models.StatusPaid {
		o.PaidAt = &at
	}
	return true, nil
}

type memStatuses struct{}

func (memStatuses) FindByCode(_ context.Context, code string) (*models.OrderStatus, error) {
	for i, s := range models.DefaultStatuses {
		if s.Code == code {
			return &models.OrderStatus{ID: uint(i + 1), Code: s.Code, Title: s.Title}, nil
		}
	}
	return nil, repository.ErrStatusNotFound
}

func (memStatuses) Seed(context.Context) error { return nil }

type memSessions struct {
	mu     sync.Mutex
	states map[string]models.SessionState
}

func (m *memSessions) Get(_ context.Context, id string) (models.SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[id], nil
}

func (m *memSessions) Save(_ context.Context, id string, state models.SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state.IsEmpty() {
		delete(m.states, id)
		return nil
	}
	m.states[id] = state
	return nil
}

func (m *memSessions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, id)
	return nil
}

// ---- outbound fakes ----

type countingMailer struct {
	mu       sync.Mutex
	subjects []string
}

func (m *countingMailer) SendEmail(_ context.Context, _, subject, _ string) (sender.SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects = append(m.subjects, subject)
	return sender.SendResult{MessageID: "test"}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.PaymentEvent
}

func (p *recordingPublisher) PublishPaymentEvent(_ context.Context, e models.PaymentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

// ---- wiring ----

type app struct {
	router    *gin.Engine
	stripe    *fakeStripe
	orders    *memOrders
	sessions  *memSessions
	mailer    *countingMailer
	publisher *recordingPublisher
	paylog    *bytes.Buffer
}

func newApp(t *testing.T, cfg services.CheckoutConfig, orders ...*models.Order) *app {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	a := &app{
		stripe:    newFakeStripe(),
		orders:    newMemOrders(orders...),
		sessions:  &memSessions{states: map[string]models.SessionState{}},
		mailer:    &countingMailer{},
		publisher: &recordingPublisher{},
		paylog:    &bytes.Buffer{},
	}
	paylog := paymentlog.NewWithWriter(a.paylog)

	bus := events.NewBus()
	bus.Subscribe(events.OrderUpdateStatus, 255, services.NewOrderStatusHandler(a.orders, logger).Handle)
	services.NewConfirmationListener(bus, a.mailer, services.StoreInfo{Name: "ShopSwift", ContactEmail: "shop@example.com"}, logger).Register()
	bus.Subscribe(events.OrderUpdateStatus, 64, services.NewPaymentEventForwarder(a.publisher, nil, logger).Forward)

	retry := services.RetryPolicy{InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Deadline: 20 * time.Millisecond}
	reconciler := services.NewReconciler(a.orders, memStatuses{}, bus, retry, nil, logger)

	cfg.FrontendURL = frontendURL
	pc := &controllers.PaymentController{
		Intents:          services.NewPaymentIntentService(a.stripe, nil, logger),
		Checkout:         services.NewCheckoutService(cfg, a.stripe, a.orders, reconciler, paylog, nil, logger),
		Orders:           a.orders,
		Sessions:         a.sessions,
		Verifier:         a.stripe,
		Reconciler:       reconciler,
		PayLog:           paylog,
		Logger:           logger,
		WebhookSecureURL: secureURL,
	}

	r := gin.New()
	r.Use(apperrors.ErrorMiddleware())
	payments := r.Group("/payments", middleware.CheckoutSession(auth.NewTokenParser(jwtSecret)))
	payments.GET("/available", pc.Availability)
	payments.POST("/intent", pc.SyncIntent)
	payments.POST("/orders/:ref/pay", pc.PayOrder)
	r.POST("/module/stripe/webhook/:secure_url/listen", pc.StripeWebhook)
	a.router = r
	return a
}

func (a *app) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

// ---- Stripe signing ----

func signature(payload []byte, secret string, ts time.Time) string {
	unix := strconv.FormatInt(ts.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(unix + "."))
	mac.Write(payload)
	return "t=" + unix + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}

func webhookRequest(token string, payload []byte, sig string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/module/stripe/webhook/"+token+"/listen", bytes.NewReader(payload))
	if sig != "" {
		req.Header.Set("Stripe-Signature", sig)
	}
	return req
}

func eventPayload(id string, typ stripe.EventType, object string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"object":"event","api_version":"2024-06-20","type":%q,"data":{"object":%s}}`, id, typ, object))
}

func newOrder(ref string, amount int64, transactionRef string) *models.Order {
	o := &models.Order{
		ID:            uuid.New(),
		Ref:           ref,
		CustomerEmail: "jane@example.com",
		Amount:        amount,
		Currency:      "eur",
		Status:        models.StatusNotPaid,
		PaymentModule: models.PaymentModuleStripe,
	}
	if transactionRef != "" {
		o.TransactionRef = &transactionRef
	}
	return o
}
