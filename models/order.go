package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentModuleStripe identifies orders whose payment is handled by this service.
const PaymentModuleStripe = "stripe"

// Order amounts are stored in minor currency units.
type Order struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Ref            string         `gorm:"uniqueIndex;not null" json:"ref"`
	CustomerEmail  string         `gorm:"type:varchar(255)" json:"customer_email"`
	Amount         int64          `gorm:"not null" json:"amount"`
	Postage        int64          `gorm:"not null;default:0" json:"postage"`
	Currency       string         `gorm:"type:varchar(10);not null" json:"currency"`
	Status         string         `gorm:"type:varchar(20);not null;default:'not_paid'" json:"status"`
	TransactionRef *string        `gorm:"uniqueIndex" json:"transaction_ref,omitempty"`
	PaymentModule  string         `gorm:"type:varchar(50);not null" json:"payment_module"`
	PaidAt         *time.Time     `json:"paid_at,omitempty"`
	CanceledAt     *time.Time     `json:"canceled_at,omitempty"`
	Items          []OrderItem    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

type OrderItem struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID    uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductRef string    `gorm:"type:varchar(100)" json:"product_ref"`
	Title      string    `gorm:"type:varchar(255);not null" json:"title"`
	Quantity   int64     `gorm:"not null" json:"quantity"`
	UnitAmount int64     `gorm:"not null" json:"unit_amount"` // taxed
}

// IsPaid mirrors the storefront's notion of a paid order: anything that
// went through payment and has not been canceled or refunded.
func (o *Order) IsPaid() bool {
	switch o.Status {
	case StatusPaid, StatusProcessing, StatusSent:
		return true
	}
	return false
}

func (o *Order) IsStripe() bool {
	return o.PaymentModule == PaymentModuleStripe
}

// TransactionRefValue returns the transaction reference or "" when unset.
func (o *Order) TransactionRefValue() string {
	if o.TransactionRef == nil {
		return ""
	}
	return *o.TransactionRef
}
