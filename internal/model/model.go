// Package model defines the core domain types shared across the rewards
// engine. All monetary and points values use shopspring/decimal — never
// float64 for money.
package model

import (
	"errors"

	"github.com/shopspring/decimal"
)

// PayoutSource identifies which program a payout was granted under.
// An account may hold one payout per source per reward date.
type PayoutSource string

const (
	SourceLPReward PayoutSource = "lp_reward"
	SourceRaffle   PayoutSource = "raffle"
)

// Order sides as captured in activity snapshots.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

var (
	// ErrAlreadyPaid is returned when persisting a payout whose
	// (account_id, reward_date, source) key already exists in the ledger.
	ErrAlreadyPaid = errors.New("model: payout already recorded for account/date/source")

	// ErrParamsNotFound is returned when no reward parameters exist for
	// the requested reward date.
	ErrParamsNotFound = errors.New("model: no reward parameters for date")
)

// ActivitySnapshot is one open order observed at scoring time.
// Immutable once captured; the scoring engine treats it as read-only input.
type ActivitySnapshot struct {
	AccountID    string          `json:"account_id" db:"account_id"`
	Side         string          `json:"side" db:"side"` // "buy" or "sell"
	LimitPrice   decimal.Decimal `json:"limit_price" db:"limit_price"`
	OpenQuantity decimal.Decimal `json:"open_quantity" db:"open_quantity"`
	HoursOnBook  decimal.Decimal `json:"hours_on_book" db:"hours_on_book"`
}

// RewardParams is the incentive policy for one reward date.
// Owned by program configuration; read-only to the scoring engine.
type RewardParams struct {
	RewardDate             string          `json:"reward_date" db:"reward_date"`
	ReferencePrice         decimal.Decimal `json:"reference_price" db:"reference_price"`
	MaxEligibleDistanceBps decimal.Decimal `json:"max_eligible_distance_bps" db:"max_eligible_distance_bps"`
	MaxPriceMultiplier     decimal.Decimal `json:"max_price_multiplier" db:"max_price_multiplier"`
	TimeDivisor            decimal.Decimal `json:"time_divisor" db:"time_divisor"`
	RewardsPool            decimal.Decimal `json:"rewards_pool" db:"rewards_pool"`
	ScoringVersion         int             `json:"scoring_version" db:"scoring_version"`
}

// ScoredEntry is an account's total points for one reward date.
// Derived; recomputed fresh on each pipeline run, never persisted directly.
type ScoredEntry struct {
	AccountID  string          `json:"account_id"`
	RewardDate string          `json:"reward_date"`
	Points     decimal.Decimal `json:"points"`
}

// Allocation is one account's slice of the reward pool for a date.
// Share is in [0, 1]; Payout is truncated to 2 decimal places so that
// the sum of payouts never exceeds the pool.
type Allocation struct {
	Ranking    int             `json:"ranking"`
	AccountID  string          `json:"account_id"`
	Points     decimal.Decimal `json:"points"`
	Share      decimal.Decimal `json:"share"`
	Payout     decimal.Decimal `json:"payout"`
	RewardDate string          `json:"reward_date"`
}

// PayoutRecord is an immutable row in the payout ledger. The tuple
// (AccountID, RewardDate, Source) is the idempotency key for the whole
// distribution pipeline: written once, never mutated or deleted.
// Points and Share ride along for audit; raffle rows carry zero points.
type PayoutRecord struct {
	AccountID  string          `json:"account_id" db:"account_id"`
	Points     decimal.Decimal `json:"points" db:"points"`
	Share      decimal.Decimal `json:"share" db:"share"`
	Payout     decimal.Decimal `json:"payout" db:"payout"`
	RewardDate string          `json:"reward_date" db:"reward_date"`
	PaidInTxID string          `json:"paid_in_tx_id" db:"paid_in_tx_id"`
	Source     PayoutSource    `json:"source" db:"source"`
}

// PayoutKey is the uniqueness key of the payout ledger.
type PayoutKey struct {
	AccountID  string
	RewardDate string
	Source     PayoutSource
}

// Key returns the record's idempotency key.
func (r PayoutRecord) Key() PayoutKey {
	return PayoutKey{AccountID: r.AccountID, RewardDate: r.RewardDate, Source: r.Source}
}
