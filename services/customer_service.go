package services

import (
	"context"
	"time"

	"reservation-service/apperrors"
	"reservation-service/models"
	"reservation-service/repository"

	"go.uber.org/zap"
)

const subscriptionPeriod = 30 * 24 * time.Hour

// upgradeCosts lists the only allowed subscription moves.
var upgradeCosts = map[[2]models.Tier]int64{
	{models.TierFree, models.TierPlus}:    50000,
	{models.TierPlus, models.TierPremium}: 150000,
	{models.TierFree, models.TierPremium}: 200000,
}

// UpgradeCost returns the price of moving from one tier to another.
func UpgradeCost(from, to models.Tier) (int64, bool) {
	cost, ok := upgradeCosts[[2]models.Tier{from, to}]
	return cost, ok
}

// CustomerService manages wallets and subscriptions.
type CustomerService interface {
	GetProfile(ctx context.Context, userID string) (*models.Customer, error)
	ChargeWallet(ctx context.Context, userID string, amount int64) (*models.Customer, error)
	UpgradeSubscription(ctx context.Context, userID string, target models.Tier) (*models.Customer, error)
}

type customerServiceImpl struct {
	store  repository.Store
	now    func() time.Time
	logger *zap.Logger
}

// NewCustomerService creates a new CustomerService. A nil clock means time.Now.
func NewCustomerService(store repository.Store, clock func() time.Time, logger *zap.Logger) CustomerService {
	if clock == nil {
		clock = time.Now
	}
	return &customerServiceImpl{store: store, now: clock, logger: logger}
}

func (s *customerServiceImpl) GetProfile(ctx context.Context, userID string) (*models.Customer, error) {
	return s.store.Customers().FindByUserID(ctx, userID)
}

func (s *customerServiceImpl) ChargeWallet(ctx context.Context, userID string, amount int64) (*models.Customer, error) {
	if amount <= 0 {
		return nil, apperrors.InvalidInput("amount must be positive", nil)
	}
	if amount > models.MaxTopUp {
		return nil, apperrors.InvalidInput("amount exceeds the top-up limit", nil)
	}

	var updated *models.Customer
	err := s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		c, err := tx.Customers().FindByUserID(ctx, userID)
		if err != nil {
			return err
		}
		if err := tx.Customers().Credit(ctx, c.ID, amount); err != nil {
			return err
		}
		updated, err = tx.Customers().FindByID(ctx, c.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Wallet charged", zap.String("user_id", userID), zap.Int64("amount", amount))
	return updated, nil
}

// UpgradeSubscription charges the upgrade price and starts a fresh 30-day period.
// The starting tier is the one in force now, so an expired plan upgrades from free.
func (s *customerServiceImpl) UpgradeSubscription(ctx context.Context, userID string, target models.Tier) (*models.Customer, error) {
	var updated *models.Customer
	err := s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		found, err := tx.Customers().FindByUserID(ctx, userID)
		if err != nil {
			return err
		}
		c, err := tx.Customers().LockByID(ctx, found.ID)
		if err != nil {
			return err
		}

		now := s.now()
		from := c.EffectiveTier(now)
		cost, ok := UpgradeCost(from, target)
		if !ok {
			return apperrors.InvalidTransition(string(from), string(target))
		}
		if err := tx.Customers().Deduct(ctx, c.ID, cost); err != nil {
			return err
		}
		end := now.Add(subscriptionPeriod)
		if err := tx.Customers().UpdateSubscription(ctx, c.ID, target, &end); err != nil {
			return err
		}
		updated, err = tx.Customers().FindByID(ctx, c.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Subscription upgraded",
		zap.String("user_id", userID),
		zap.String("tier", string(target)))
	return updated, nil
}
