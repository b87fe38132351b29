// Package policy decides whether a customer may reserve a book and at what price.
// Evaluate is pure: the caller supplies a snapshot taken under the customer row lock.
package policy

import (
	"fmt"

	"reservation-service/apperrors"
	"reservation-service/models"
)

// Rules holds every threshold the engine applies.
type Rules struct {
	DailyRate           int64
	MaxDaysDefault      int
	MaxDaysPremium      int
	MaxActiveDefault    int64
	MaxActivePremium    int64
	WaiverPaidThreshold int64
	WaiverWindowDays    int
	LoyaltyMinCompleted int64
	LoyaltyWindowDays   int
	LoyaltyDiscountPct  int64
	RefundCapAtPrice    bool
}

// DefaultRules returns the production thresholds.
func DefaultRules() Rules {
	return Rules{
		DailyRate:           1000,
		MaxDaysDefault:      7,
		MaxDaysPremium:      14,
		MaxActiveDefault:    5,
		MaxActivePremium:    10,
		WaiverPaidThreshold: 300000,
		WaiverWindowDays:    60,
		LoyaltyMinCompleted: 3,
		LoyaltyWindowDays:   30,
		LoyaltyDiscountPct:  30,
		RefundCapAtPrice:    false,
	}
}

// Snapshot is the customer state the engine evaluates.
type Snapshot struct {
	Tier               models.Tier
	WalletBalance      int64
	ActiveCount        int64
	PaidInWaiverWindow int64
	CompletedInWindow  int64
}

// Quote is an approved reservation price.
type Quote struct {
	Cost       int64 `json:"cost"`
	BaseCost   int64 `json:"base_cost"`
	Waived     bool  `json:"waived"`
	Discounted bool  `json:"discounted"`
	MaxDays    int   `json:"max_days"`
	MaxActive  int64 `json:"max_active"`
}

// Engine applies Rules.
type Engine struct {
	rules Rules
}

// NewEngine builds an engine over rules.
func NewEngine(rules Rules) *Engine {
	return &Engine{rules: rules}
}

// Rules returns the thresholds in force.
func (e *Engine) Rules() Rules {
	return e.rules
}

// MaxDays returns the duration limit for tier.
func (e *Engine) MaxDays(tier models.Tier) int {
	if tier == models.TierPremium {
		return e.rules.MaxDaysPremium
	}
	return e.rules.MaxDaysDefault
}

// MaxActive returns the concurrent reservation limit for tier.
func (e *Engine) MaxActive(tier models.Tier) int64 {
	if tier == models.TierPremium {
		return e.rules.MaxActivePremium
	}
	return e.rules.MaxActiveDefault
}

// Evaluate runs the checks in order and returns the first failure.
func (e *Engine) Evaluate(s Snapshot, days int) (Quote, error) {
	if s.Tier == models.TierFree || !s.Tier.Valid() {
		return Quote{}, apperrors.PolicyDenied(apperrors.ReasonTierIneligible,
			"free tier customers cannot reserve books", nil)
	}

	if days <= 0 {
		return Quote{}, apperrors.PolicyDenied(apperrors.ReasonInvalidDuration,
			"reservation must last at least one day",
			map[string]int64{"requested_days": int64(days)})
	}

	maxDays := e.MaxDays(s.Tier)
	if days > maxDays {
		return Quote{}, apperrors.PolicyDenied(apperrors.ReasonDurationExceeded,
			fmt.Sprintf("%s tier can reserve for at most %d days", s.Tier, maxDays),
			map[string]int64{"max_days": int64(maxDays), "requested_days": int64(days)})
	}

	maxActive := e.MaxActive(s.Tier)
	if s.ActiveCount >= maxActive {
		return Quote{}, apperrors.PolicyDenied(apperrors.ReasonActiveLimitExceeded,
			fmt.Sprintf("%s tier can hold at most %d active reservations", s.Tier, maxActive),
			map[string]int64{"max_active": maxActive, "active": s.ActiveCount})
	}

	q := Quote{
		BaseCost:  e.rules.DailyRate * int64(days),
		MaxDays:   maxDays,
		MaxActive: maxActive,
	}
	q.Cost = q.BaseCost
	switch {
	case s.PaidInWaiverWindow > e.rules.WaiverPaidThreshold:
		q.Cost = 0
		q.Waived = true
	case s.CompletedInWindow > e.rules.LoyaltyMinCompleted:
		q.Cost = q.BaseCost * (100 - e.rules.LoyaltyDiscountPct) / 100
		q.Discounted = true
	}

	if s.WalletBalance < q.Cost {
		return Quote{}, apperrors.InsufficientFunds(q.Cost, s.WalletBalance)
	}
	return q, nil
}

// Refund returns what cancelling r gives back: whole days times the daily rate.
// With RefundCapAtPrice set it never exceeds the price paid.
func (e *Engine) Refund(r *models.Reservation) int64 {
	if r.Status != models.StatusActive {
		return 0
	}
	refund := r.WholeDays() * e.rules.DailyRate
	if refund < 0 {
		refund = 0
	}
	if e.rules.RefundCapAtPrice && refund > r.Price {
		refund = r.Price
	}
	return refund
}
