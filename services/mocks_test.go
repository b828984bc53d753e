package services_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v80"
	"github.com/yashrajoria/stripe-payment-service/models"
	"github.com/yashrajoria/stripe-payment-service/repository"
	"github.com/yashrajoria/stripe-payment-service/sender"
	"github.com/yashrajoria/stripe-payment-service/services"
)

// ---- mock processor ----

type mockProcessor struct {
	mu sync.Mutex

	nextIntentID string
	intent       *stripe.PaymentIntent
	intentErr    error
	customerID   string
	customerErr  error
	session      *stripe.CheckoutSession
	sessionErr   error

	created        []services.IntentParams
	updated        []services.IntentParams
	updatedIDs     []string
	customerEmails []string
	getCalls       int
	checkoutParams []services.CheckoutParams
}

func (m *mockProcessor) totalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.created) + len(m.updated) + len(m.customerEmails) + m.getCalls + len(m.checkoutParams)
}

func (m *mockProcessor) CreatePaymentIntent(_ context.Context, p services.IntentParams) (*stripe.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, p)
	if m.intentErr != nil {
		return nil, m.intentErr
	}
	id := m.nextIntentID
	if id == "" {
		id = fmt.Sprintf("pi_%d", len(m.created))
	}
	return &stripe.PaymentIntent{ID: id, ClientSecret: id + "_secret", Amount: p.Amount, Currency: stripe.Currency(p.Currency)}, nil
}

func (m *mockProcessor) UpdatePaymentIntent(_ context.Context, id string, p services.IntentParams) (*stripe.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updated = append(m.updated, p)
	m.updatedIDs = append(m.updatedIDs, id)
	if m.intentErr != nil {
		return nil, m.intentErr
	}
	return &stripe.PaymentIntent{ID: id, ClientSecret: id + "_secret_v2", Amount: p.Amount}, nil
}

func (m *mockProcessor) GetPaymentIntent(_ context.Context, id string) (*stripe.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.intentErr != nil {
		return nil, m.intentErr
	}
	return m.intent, nil
}

func (m *mockProcessor) CreateCustomer(_ context.Context, email string) (*stripe.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customerEmails = append(m.customerEmails, email)
	if m.customerErr != nil {
		return nil, m.customerErr
	}
	return &stripe.Customer{ID: m.customerID, Email: email}, nil
}

func (m *mockProcessor) CreateCheckoutSession(_ context.Context, p services.CheckoutParams) (*stripe.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkoutParams = append(m.checkoutParams, p)
	return m.session, m.sessionErr
}

func (m *mockProcessor) ConstructEvent(_ []byte, _ string) (stripe.Event, error) {
	return stripe.Event{}, nil
}

// ---- map-backed order repository ----

type memOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*models.Order

	// missesBeforeFound makes FindByTransactionRef report not found that many
	// times, like an order row committed after the webhook arrived.
	missesBeforeFound int
	txLookups         int
	statusUpdates     int
	findErr           error
}

func newMemOrderRepo(orders ...*models.Order) *memOrderRepo {
	r := &memOrderRepo{orders: map[uuid.UUID]*models.Order{}}
	for _, o := range orders {
		r.orders[o.ID] = o
	}
	return r
}

func (r *memOrderRepo) get(id uuid.UUID) models.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.orders[id]
}

func (r *memOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, fmt.Errorf("%w: id=%s", repository.ErrOrderNotFound, id)
}

func (r *memOrderRepo) FindByRef(_ context.Context, ref string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, o := range r.orders {
		if o.Ref == ref {
			cp := *o
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: ref=%s", repository.ErrOrderNotFound, ref)
}

func (r *memOrderRepo) FindByTransactionRef(_ context.Context, ref string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txLookups++
	if r.findErr != nil {
		return nil, r.findErr
	}
	if r.txLookups <= r.missesBeforeFound {
		return nil, fmt.Errorf("%w: transaction_ref=%s", repository.ErrOrderNotFound, ref)
	}
	for _, o := range r.orders {
		if o.TransactionRefValue() == ref {
			cp := *o
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: transaction_ref=%s", repository.ErrOrderNotFound, ref)
}

func (r *memOrderRepo) SetTransactionRef(_ context.Context, orderID uuid.UUID, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.TransactionRefValue() == ref && o.ID != orderID {
			return repository.ErrTransactionRefConflict
		}
	}
	o, ok := r.orders[orderID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.TransactionRef = &ref
	return nil
}

func (r *memOrderRepo) UpdateStatus(_ context.Context, orderID uuid.UUID, status string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
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
	r.statusUpdates++
	return true, nil
}

// ---- status catalog ----

type memStatusRepo struct{}

func (memStatusRepo) FindByCode(_ context.Context, code string) (*models.OrderStatus, error) {
	for i, s := range models.DefaultStatuses {
		if s.Code == code {
			return &models.OrderStatus{ID: uint(i + 1), Code: s.Code, Title: s.Title}, nil
		}
	}
	return nil, repository.ErrStatusNotFound
}

func (memStatusRepo) Seed(context.Context) error { return nil }

// ---- publisher / mailer ----

type mockPublisher struct {
	mu     sync.Mutex
	events []models.PaymentEvent
	err    error
}

func (m *mockPublisher) PublishPaymentEvent(_ context.Context, e models.PaymentEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return m.err
}

func (m *mockPublisher) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

type sentMail struct {
	to      string
	subject string
	body    string
}

type mockMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *mockMailer) SendEmail(_ context.Context, to, subject, body string) (sender.SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return sender.SendResult{}, m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return sender.SendResult{MessageID: "test", SentAt: time.Now()}, nil
}

func (m *mockMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// ---- fixtures ----

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
