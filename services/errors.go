package services

import (
	"errors"
	"net/http"
)

var (
	ErrUnexpectedEventType = errors.New("unexpected event type")
	ErrInvalidEventPayload = errors.New("invalid event payload")
	ErrNoPaymentIntent     = errors.New("no payment intent attached to this session")
	ErrEmptyCart           = errors.New("Sorry, your cart is empty. There's nothing to pay.")
	ErrOrderAlreadyPaid    = errors.New("This order has already been paid.")
)

// ServiceError is a typed error with an HTTP status code.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string { return e.Message }

var ErrPaymentNotAvailable = &ServiceError{
	StatusCode: http.StatusBadRequest,
	Message:    "Your connection is not secured. Check that 'https' is present at the beginning of the site's address.",
}
