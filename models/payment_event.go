package models

import "time"

const (
	EventPaymentSucceeded       = "payment_succeeded"
	EventPaymentFailed          = "payment_failed"
	EventCheckoutSessionCreated = "checkout_session_created"
	EventCheckoutSessionFailed  = "checkout_session_failed"
)

// PaymentEvent is published to SNS or Kafka for downstream services.
type PaymentEvent struct {
	Type           string    `json:"type"`
	OrderID        string    `json:"order_id"`
	OrderRef       string    `json:"order_ref"`
	TransactionRef string    `json:"transaction_ref,omitempty"`
	CheckoutURL    string    `json:"checkout_url,omitempty"`
	Status         string    `json:"status"`
	Amount         int64     `json:"amount"`   // smallest currency unit
	Currency       string    `json:"currency"` // "eur", "usd"
	Timestamp      time.Time `json:"timestamp"`
}

// PaymentRequest asks for a hosted checkout session for an order that was
// placed elsewhere.
type PaymentRequest struct {
	OrderRef       string `json:"order_ref" validate:"required,max=64"`
	IdempotencyKey string `json:"idempotency_key,omitempty" validate:"omitempty,max=255"`
}
