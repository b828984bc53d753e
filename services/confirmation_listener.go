package services

import (
	"context"
	"fmt"
	"html"

	"github.com/yashrajoria/stripe-payment-service/events"
	"github.com/yashrajoria/stripe-payment-service/models"
	"github.com/yashrajoria/stripe-payment-service/sender"
	"go.uber.org/zap"
)

type StoreInfo struct {
	Name         string
	URL          string
	ContactEmail string
}

// ConfirmationListener sends the customer confirmation and the store
// notification once a Stripe order becomes paid.
type ConfirmationListener struct {
	bus    *events.Bus
	mailer sender.EmailSender
	store  StoreInfo
	logger *zap.Logger
}

func NewConfirmationListener(bus *events.Bus, mailer sender.EmailSender, store StoreInfo, logger *zap.Logger) *ConfirmationListener {
	return &ConfirmationListener{bus: bus, mailer: mailer, store: store, logger: logger}
}

// Register subscribes the listener's handlers on the bus.
func (l *ConfirmationListener) Register() {
	l.bus.Subscribe(events.OrderUpdateStatus, 128, l.OnStatusUpdated)
	l.bus.Subscribe(events.OrderSendConfirmationEmail, 150, GuardUnpaid)
	l.bus.Subscribe(events.OrderSendNotificationEmail, 150, GuardUnpaid)
	l.bus.Subscribe(events.OrderSendConfirmationEmail, 128, l.SendConfirmation)
	l.bus.Subscribe(events.OrderSendNotificationEmail, 128, l.SendNotification)
}

func (l *ConfirmationListener) OnStatusUpdated(ctx context.Context, e *events.OrderEvent) error {
	if !e.Changed || e.Status != models.StatusPaid || !e.Order.IsStripe() {
		return nil
	}

	for _, name := range []string{events.OrderSendConfirmationEmail, events.OrderSendNotificationEmail} {
		if err := l.bus.Publish(ctx, name, events.NewOrderEvent(e.Order)); err != nil {
			l.logger.Error("Order mail failed", zap.String("event", name), zap.String("order_ref", e.Order.Ref), zap.Error(err))
		}
	}
	return nil
}

// GuardUnpaid stops mails for Stripe orders that are not paid yet.
func GuardUnpaid(_ context.Context, e *events.OrderEvent) error {
	if e.Order.IsStripe() && !e.Order.IsPaid() {
		e.StopPropagation()
	}
	return nil
}

func (l *ConfirmationListener) SendConfirmation(ctx context.Context, e *events.OrderEvent) error {
	if l.store.ContactEmail == "" {
		l.logger.Warn("No store contact email configured, confirmation not sent", zap.String("order_ref", e.Order.Ref))
		return nil
	}
	if e.Order.CustomerEmail == "" {
		return nil
	}

	subject := fmt.Sprintf("Payment confirmation of your order %s on %s", e.Order.Ref, l.store.Name)
	body := fmt.Sprintf(
		"<p>Hello,</p><p>We have received the payment for your order <strong>%s</strong> (%s).</p><p>Thank you for shopping at <a href=\"%s\">%s</a>.</p>",
		html.EscapeString(e.Order.Ref),
		formatAmount(e.Order.Amount, e.Order.Currency),
		html.EscapeString(l.store.URL),
		html.EscapeString(l.store.Name),
	)
	return l.send(ctx, e.Order.CustomerEmail, subject, body, e.Order.Ref)
}

func (l *ConfirmationListener) SendNotification(ctx context.Context, e *events.OrderEvent) error {
	if l.store.ContactEmail == "" {
		return nil
	}

	subject := fmt.Sprintf("Payment confirmation on %s", l.store.Name)
	body := fmt.Sprintf(
		"<p>Order <strong>%s</strong> has been paid with Stripe.</p><p>Amount: %s<br>Customer: %s<br>Transaction: %s</p>",
		html.EscapeString(e.Order.Ref),
		formatAmount(e.Order.Amount, e.Order.Currency),
		html.EscapeString(e.Order.CustomerEmail),
		html.EscapeString(e.Order.TransactionRefValue()),
	)
	return l.send(ctx, l.store.ContactEmail, subject, body, e.Order.Ref)
}

func (l *ConfirmationListener) send(ctx context.Context, to, subject, body, orderRef string) error {
	res, err := l.mailer.SendEmail(ctx, to, subject, body)
	if err != nil {
		return fmt.Errorf("send %q: %w", subject, err)
	}
	l.logger.Info("Order mail sent", zap.String("order_ref", orderRef), zap.String("message_id", res.MessageID))
	return nil
}
