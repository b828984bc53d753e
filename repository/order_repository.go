package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yashrajoria/stripe-payment-service/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderRepository defines data-access operations for orders.
type OrderRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByRef(ctx context.Context, ref string) (*models.Order, error)
	FindByTransactionRef(ctx context.Context, transactionRef string) (*models.Order, error)
	SetTransactionRef(ctx context.Context, orderID uuid.UUID, transactionRef string) error
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status string, at time.Time) (bool, error)
}

type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) OrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var o models.Order
	if err := r.db.WithContext(ctx).Preload("Items").First(&o, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "id", id.String())
	}
	return &o, nil
}

func (r *GormOrderRepository) FindByRef(ctx context.Context, ref string) (*models.Order, error) {
	var o models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("ref = ?", ref).
		First(&o).Error; err != nil {
		return nil, notFound(err, "ref", ref)
	}
	return &o, nil
}

func (r *GormOrderRepository) FindByTransactionRef(ctx context.Context, transactionRef string) (*models.Order, error) {
	var o models.Order
	if err := r.db.WithContext(ctx).
		Where("transaction_ref = ?", transactionRef).
		First(&o).Error; err != nil {
		return nil, notFound(err, "transaction_ref", transactionRef)
	}
	return &o, nil
}

// SetTransactionRef assigns a processor id to an order. An id already held by
// a different order is refused with ErrTransactionRefConflict; assigning the
// id an order already holds is a no-op.
func (r *GormOrderRepository) SetTransactionRef(ctx context.Context, orderID uuid.UUID, transactionRef string) error {
	var existing models.Order
	err := r.db.WithContext(ctx).Where("transaction_ref = ?", transactionRef).First(&existing).Error
	switch {
	case err == nil && existing.ID != orderID:
		return fmt.Errorf("%w: %s held by order %s", ErrTransactionRefConflict, transactionRef, existing.ID)
	case err == nil:
		return nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}

	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("transaction_ref", transactionRef)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: id=%s", ErrOrderNotFound, orderID)
	}
	return nil
}

// UpdateStatus moves an order to status under a row lock. It returns false
// without writing when the order already has that status, and
// ErrInvalidTransition when the move is not allowed.
func (r *GormOrderRepository) UpdateStatus(ctx context.Context, orderID uuid.UUID, status string, at time.Time) (bool, error) {
	changed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o models.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&o, "id = ?", orderID).Error; err != nil {
			return notFound(err, "id", orderID.String())
		}
		if o.Status == status {
			return nil
		}
		if !models.CanTransition(o.Status, status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, status)
		}

		updates := map[string]interface{}{"status": status}
		switch status {
		case models.StatusPaid:
			if o.PaidAt == nil {
				updates["paid_at"] = at
			}
		case models.StatusCanceled:
			updates["canceled_at"] = at
		}
		if err := tx.Model(&o).Updates(updates).Error; err != nil {
			return err
		}
		changed = true
		return nil
	})
	return changed, err
}

func notFound(err error, field, value string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s=%s", ErrOrderNotFound, field, value)
	}
	return err
}
