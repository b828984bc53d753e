package models

const (
	StatusNotPaid    = "not_paid"
	StatusPaid       = "paid"
	StatusProcessing = "processing"
	StatusSent       = "sent"
	StatusCanceled   = "canceled"
	StatusRefunded   = "refunded"
)

// OrderStatus is a row of the status catalog. Status changes are requested
// by code and resolved against this table.
type OrderStatus struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Code  string `gorm:"type:varchar(20);uniqueIndex;not null" json:"code"`
	Title string `gorm:"type:varchar(100)" json:"title"`
}

// DefaultStatuses seeds the catalog on start-up.
var DefaultStatuses = []OrderStatus{
	{Code: StatusNotPaid, Title: "Not paid"},
	{Code: StatusPaid, Title: "Paid"},
	{Code: StatusProcessing, Title: "Processing"},
	{Code: StatusSent, Title: "Sent"},
	{Code: StatusCanceled, Title: "Canceled"},
	{Code: StatusRefunded, Title: "Refunded"},
}

var validNext = map[string]map[string]bool{
	StatusNotPaid:    {StatusPaid: true, StatusCanceled: true},
	StatusCanceled:   {StatusPaid: true}, // card retried on the same payment intent
	StatusPaid:       {StatusProcessing: true, StatusRefunded: true},
	StatusProcessing: {StatusSent: true, StatusRefunded: true},
	StatusSent:       {StatusRefunded: true},
}

// CanTransition reports whether an order may move from one status to another.
// Same-status moves are not transitions; callers treat them as no-ops.
func CanTransition(from, to string) bool {
	return validNext[from][to]
}
