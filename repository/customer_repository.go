package repository

import (
	"context"
	"errors"
	"math"
	"time"

	"reservation-service/apperrors"
	"reservation-service/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCustomerRepository implements CustomerRepository using GORM.
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a new GormCustomerRepository.
func NewGormCustomerRepository(db *gorm.DB) CustomerRepository {
	return &GormCustomerRepository{db: db}
}

func (r *GormCustomerRepository) Create(ctx context.Context, customer *models.Customer) error {
	return translate(r.db.WithContext(ctx).Create(customer).Error, "customer")
}

func (r *GormCustomerRepository) FindByID(ctx context.Context, id uint) (*models.Customer, error) {
	var c models.Customer
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, translate(err, "customer")
	}
	return &c, nil
}

func (r *GormCustomerRepository) FindByUserID(ctx context.Context, userID string) (*models.Customer, error) {
	var c models.Customer
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&c).Error; err != nil {
		return nil, translate(err, "customer")
	}
	return &c, nil
}

func (r *GormCustomerRepository) LockByID(ctx context.Context, id uint) (*models.Customer, error) {
	var c models.Customer
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&c, id).Error
	if err != nil {
		return nil, translate(err, "customer")
	}
	return &c, nil
}

// Deduct subtracts amount only if the balance covers it.
func (r *GormCustomerRepository) Deduct(ctx context.Context, id uint, amount int64) error {
	if amount < 0 {
		return apperrors.InvalidInput("amount must not be negative", nil)
	}
	res := r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ? AND wallet_balance >= ?", id, amount).
		UpdateColumn("wallet_balance", gorm.Expr("wallet_balance - ?", amount))
	if res.Error != nil {
		return translate(res.Error, "customer")
	}
	if res.RowsAffected == 1 {
		return nil
	}

	c, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return apperrors.InsufficientFunds(amount, c.WalletBalance)
}

func (r *GormCustomerRepository) Credit(ctx context.Context, id uint, amount int64) error {
	if amount < 0 {
		return apperrors.InvalidInput("amount must not be negative", nil)
	}
	res := r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ? AND wallet_balance <= ?", id, math.MaxInt64-amount).
		UpdateColumn("wallet_balance", gorm.Expr("wallet_balance + ?", amount))
	if res.Error != nil {
		return translate(res.Error, "customer")
	}
	if res.RowsAffected == 1 {
		return nil
	}

	c, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := c.Credit(amount); err != nil {
		return err
	}
	return apperrors.Conflict(errors.New("wallet balance changed during credit"))
}

func (r *GormCustomerRepository) UpdateSubscription(ctx context.Context, id uint, tier models.Tier, end *time.Time) error {
	if !tier.Valid() {
		return apperrors.InvalidInput("unknown subscription tier", errors.New(string(tier)))
	}
	res := r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"subscription_tier":     tier,
			"subscription_end_time": end,
		})
	if res.Error != nil {
		return translate(res.Error, "customer")
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("customer")
	}
	return nil
}
