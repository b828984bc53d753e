package models

// SessionState is the checkout state attached to one browser session. It is
// passed into the intent service and returned updated; storing it between
// requests is up to the caller.
type SessionState struct {
	PaymentIntentID string `json:"payment_intent_id,omitempty"`
	ClientSecret    string `json:"client_secret,omitempty"`
	CustomerID      string `json:"customer_id,omitempty"`
	Amount          int64  `json:"amount,omitempty"`
	Currency        string `json:"currency,omitempty"`
}

func (s SessionState) HasIntent() bool {
	return s.PaymentIntentID != ""
}

func (s SessionState) IsEmpty() bool {
	return s == SessionState{}
}
