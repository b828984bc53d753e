package services

import (
	"context"
	"errors"
	"time"

	"github.com/yashrajoria/stripe-payment-service/events"
	"github.com/yashrajoria/stripe-payment-service/models"
	"github.com/yashrajoria/stripe-payment-service/repository"
	"go.uber.org/zap"
)

// OrderStatusHandler applies order.update_status. Repeated requests for the
// status an order already has leave Changed false, which keeps the
// lower-priority listeners quiet on duplicate webhooks.
type OrderStatusHandler struct {
	orders repository.OrderRepository
	now    func() time.Time
	logger *zap.Logger
}

func NewOrderStatusHandler(orders repository.OrderRepository, logger *zap.Logger) *OrderStatusHandler {
	return &OrderStatusHandler{orders: orders, now: time.Now, logger: logger}
}

func (h *OrderStatusHandler) Handle(ctx context.Context, e *events.OrderEvent) error {
	order := e.Order
	at := h.now().UTC()

	changed, err := h.orders.UpdateStatus(ctx, order.ID, e.Status, at)
	if errors.Is(err, repository.ErrInvalidTransition) {
		h.logger.Warn("Refusing order status change",
			zap.String("order_ref", order.Ref),
			zap.String("from", order.Status),
			zap.String("to", e.Status),
		)
		e.StopPropagation()
		return nil
	}
	if err != nil {
		return err
	}

	e.Changed = changed
	if !changed {
		h.logger.Info("Order already in requested status", zap.String("order_ref", order.Ref), zap.String("status", e.Status))
		return nil
	}

	order.Status = e.Status
	switch e.Status {
	case models.StatusPaid:
		if order.PaidAt == nil {
			order.PaidAt = &at
		}
	case models.StatusCanceled:
		order.CanceledAt = &at
	}
	h.logger.Info("Order status updated", zap.String("order_ref", order.Ref), zap.String("status", e.Status))
	return nil
}
