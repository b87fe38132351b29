package models

import (
	"math"
	"time"

	"reservation-service/apperrors"
)

// Tier is a subscription level.
type Tier string

const (
	TierFree    Tier = "free"
	TierPlus    Tier = "plus"
	TierPremium Tier = "premium"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPlus, TierPremium:
		return true
	}
	return false
}

// Customer holds the wallet and subscription of an external user.
type Customer struct {
	ID                  uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID              string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"user_id" validate:"required,max=64"`
	SubscriptionTier    Tier       `gorm:"type:varchar(20);not null;default:'free'" json:"subscription_tier" validate:"required,oneof=free plus premium"`
	WalletBalance       int64      `gorm:"not null;default:0;check:chk_customers_wallet_balance,wallet_balance >= 0" json:"wallet_balance" validate:"gte=0"`
	SubscriptionEndTime *time.Time `json:"subscription_end_time,omitempty"`
	CreatedAt           time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// NewCustomer validates and builds a Customer.
func NewCustomer(userID string, tier Tier, walletBalance int64, subscriptionEnd *time.Time) (*Customer, error) {
	c := &Customer{
		UserID:              userID,
		SubscriptionTier:    tier,
		WalletBalance:       walletBalance,
		SubscriptionEndTime: subscriptionEnd,
	}
	if err := check("customer", c); err != nil {
		return nil, err
	}
	return c, nil
}

// EffectiveTier returns the tier in force at now. A paid tier past its end time counts as free.
func (c *Customer) EffectiveTier(now time.Time) Tier {
	if c.SubscriptionTier == TierFree || !c.SubscriptionTier.Valid() {
		return TierFree
	}
	if c.SubscriptionEndTime != nil && c.SubscriptionEndTime.Before(now) {
		return TierFree
	}
	return c.SubscriptionTier
}

// Deduct removes amount from the wallet.
func (c *Customer) Deduct(amount int64) error {
	if amount < 0 {
		return apperrors.InvalidInput("amount must not be negative", nil)
	}
	if c.WalletBalance < amount {
		return apperrors.InsufficientFunds(amount, c.WalletBalance)
	}
	c.WalletBalance -= amount
	return nil
}

// Credit adds amount to the wallet. A credit the balance cannot hold is rejected.
func (c *Customer) Credit(amount int64) error {
	if amount < 0 {
		return apperrors.InvalidInput("amount must not be negative", nil)
	}
	if amount > math.MaxInt64-c.WalletBalance {
		return apperrors.InvalidInput("credit would overflow the wallet balance", nil)
	}
	c.WalletBalance += amount
	return nil
}
