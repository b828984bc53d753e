package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/yashrajoria/stripe-payment-service/models"
	"gorm.io/gorm"
)

type OrderStatusRepository interface {
	FindByCode(ctx context.Context, code string) (*models.OrderStatus, error)
	Seed(ctx context.Context) error
}

type GormOrderStatusRepository struct {
	db *gorm.DB
}

func NewGormOrderStatusRepository(db *gorm.DB) OrderStatusRepository {
	return &GormOrderStatusRepository{db: db}
}

func (r *GormOrderStatusRepository) FindByCode(ctx context.Context, code string) (*models.OrderStatus, error) {
	var s models.OrderStatus
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrStatusNotFound, code)
		}
		return nil, err
	}
	return &s, nil
}

// Seed inserts the default statuses that are missing.
func (r *GormOrderStatusRepository) Seed(ctx context.Context) error {
	for _, s := range models.DefaultStatuses {
		status := s
		if err := r.db.WithContext(ctx).
			Where(models.OrderStatus{Code: status.Code}).
			FirstOrCreate(&status).Error; err != nil {
			return fmt.Errorf("seed status %s: %w", status.Code, err)
		}
	}
	return nil
}
