package repository

import "errors"

var (
	ErrOrderNotFound          = errors.New("order not found")
	ErrStatusNotFound         = errors.New("order status not found")
	ErrInvalidTransition      = errors.New("invalid order status transition")
	ErrTransactionRefConflict = errors.New("transaction reference already assigned to another order")
)
