package paymentlog

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/stripe/stripe-go/v80"
)

// ErrAmountMismatch is returned when the processor-side amount differs from
// the order amount.
var ErrAmountMismatch = errors.New(kindTable[KindAmountMismatch].userMessage)

type Kind int

const (
	KindCardDeclined Kind = iota
	KindRateLimited
	KindInvalidRequest
	KindAuthentication
	KindNetwork
	KindProcessor
	KindAmountMismatch
	KindUnexpected
)

type kindInfo struct {
	name        string
	detail      string
	userMessage string
}

var kindTable = [...]kindInfo{
	KindCardDeclined:   {"card_declined", "Card declined.", "Your card has been declined."},
	KindRateLimited:    {"rate_limited", "Too many requests.", "Too many requests too quickly."},
	KindInvalidRequest: {"invalid_request", "Invalid parameters.", "Invalid parameters were supplied to Stripe."},
	KindAuthentication: {"authentication", "Authentication failed: API key changed?", "Authentication with Stripe failed. Please contact administrators."},
	KindNetwork:        {"network", "Network communication failed.", "Network communication failed."},
	KindProcessor:      {"processor", "", "An error occurred with Stripe."},
	KindAmountMismatch: {"amount_mismatch", "Amounts are different.", "The payment mean does not have the same amount as your cart. Please reload and try again."},
	KindUnexpected:     {"unexpected", "", "An error occurred during payment."},
}

func (k Kind) info() kindInfo {
	if k < 0 || int(k) >= len(kindTable) {
		return kindTable[KindUnexpected]
	}
	return kindTable[k]
}

func (k Kind) String() string {
	return k.info().name
}

// UserMessage is the text shown to the shopper on the failure page.
func (k Kind) UserMessage() string {
	return k.info().userMessage
}

// OperatorMessage is the line written to the payment log.
func (k Kind) OperatorMessage(orderRef string, err error) string {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	switch k {
	case KindUnexpected:
		return fmt.Sprintf("Error paying order %s with Stripe but maybe unrelated with it. Message: %s", orderRef, msg)
	case KindProcessor:
		return fmt.Sprintf("Error paying order %s with Stripe. Message: %s", orderRef, msg)
	}
	return fmt.Sprintf("Error paying order %s with Stripe. %s Message: %s", orderRef, k.info().detail, msg)
}

// Classify maps an error from the payment path to its kind.
func Classify(err error) Kind {
	if err == nil {
		return KindUnexpected
	}
	if errors.Is(err, ErrAmountMismatch) {
		return KindAmountMismatch
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch {
		case stripeErr.HTTPStatusCode == http.StatusTooManyRequests:
			return KindRateLimited
		case stripeErr.HTTPStatusCode == http.StatusUnauthorized:
			return KindAuthentication
		case stripeErr.Type == stripe.ErrorTypeCard:
			return KindCardDeclined
		case stripeErr.Type == stripe.ErrorTypeInvalidRequest:
			return KindInvalidRequest
		}
		return KindProcessor
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return KindNetwork
	}
	return KindUnexpected
}
