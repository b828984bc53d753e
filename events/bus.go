// Package events is a small in-process dispatcher for order events.
// Subscribers run synchronously in priority order.
package events

import (
	"context"
	"sort"
	"sync"

	"github.com/yashrajoria/stripe-payment-service/models"
)

const (
	OrderUpdateStatus          = "order.update_status"
	OrderSendConfirmationEmail = "order.send_confirmation_email"
	OrderSendNotificationEmail = "order.send_notification_email"
)

// OrderEvent is passed by pointer through the whole chain, so handlers can
// see what earlier ones did.
type OrderEvent struct {
	Order    *models.Order
	Status   string
	StatusID uint
	// Changed is set by the status handler when the update really happened.
	Changed bool

	stopped bool
}

func NewOrderEvent(order *models.Order) *OrderEvent {
	return &OrderEvent{Order: order}
}

// StopPropagation prevents lower-priority handlers from running.
func (e *OrderEvent) StopPropagation() {
	e.stopped = true
}

func (e *OrderEvent) IsPropagationStopped() bool {
	return e.stopped
}

type Handler func(ctx context.Context, e *OrderEvent) error

type subscription struct {
	priority int
	handler  Handler
}

type Bus struct {
	mu   sync.RWMutex
	subs map[string][]subscription
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// Subscribe registers h for name. Higher priorities run first; equal
// priorities run in subscription order.
func (b *Bus) Subscribe(name string, priority int, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := append(b.subs[name], subscription{priority: priority, handler: h})
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].priority > list[j].priority
	})
	b.subs[name] = list
}

// Publish runs the handlers for name. The first handler error aborts the
// chain and is returned.
func (b *Bus) Publish(ctx context.Context, name string, e *OrderEvent) error {
	b.mu.RLock()
	list := append([]subscription(nil), b.subs[name]...)
	b.mu.RUnlock()

	for _, s := range list {
		if e.IsPropagationStopped() {
			return nil
		}
		if err := s.handler(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// HasSubscribers reports whether anything listens to name.
func (b *Bus) HasSubscribers(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[name]) > 0
}
