// Package scoring implements the liquidity scoring policies: pure
// functions mapping an open-order snapshot plus eligibility parameters
// to a points value for one reward period.
//
// Orders resting too far from the reference price earn nothing; eligible
// orders earn in proportion to size and time on book, with newer policy
// versions additionally weighting price proximity. Policies are versioned
// strategies because the formula has evolved over the program's life and
// historical dates must re-score under the policy that was in force.
//
// All values use shopspring/decimal — never float64 for money.
// Scoring depends only on its explicit inputs (no clock, no I/O), so it
// is safe to re-run against historical snapshots, e.g. to recompute
// rollover points for orders spanning a period boundary.
package scoring

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tidemark/rewards-engine/internal/model"
)

// DefaultVersion is the scoring policy applied when the reward
// parameters do not pin one.
const DefaultVersion = 2

// ErrUnknownVersion is returned when no policy exists for the requested
// scoring version.
var ErrUnknownVersion = errors.New("scoring: unknown scoring version")

// maxCreditedHours caps reward accrual per order per day regardless of
// how long the order has actually rested.
var maxCreditedHours = decimal.NewFromInt(24)

var (
	bpsPerUnit = decimal.NewFromInt(10000)
	one        = decimal.NewFromInt(1)
)

// Scorer is one versioned scoring policy. Implementations must be pure:
// same inputs, same points, no side effects.
type Scorer interface {
	// Score computes points earned by one open order snapshot.
	// Returns zero for ineligible orders; never negative.
	Score(s model.ActivitySnapshot, p model.RewardParams) decimal.Decimal

	// Version identifies the policy.
	Version() int
}

var registry = map[int]Scorer{
	1: V1{},
	2: V2{},
}

// ForVersion returns the scoring policy for a version number.
func ForVersion(v int) (Scorer, error) {
	if s, ok := registry[v]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownVersion, v)
}

// Versions returns the known policy versions in ascending order.
func Versions() []int {
	vs := make([]int, 0, len(registry))
	for v := range registry {
		vs = append(vs, v)
	}
	sort.Ints(vs)
	return vs
}

// priceDistanceBps computes the order's distance from the reference
// price in basis points: |limit - ref| / ref * 10000.
func priceDistanceBps(limitPrice, referencePrice decimal.Decimal) decimal.Decimal {
	if referencePrice.LessThanOrEqual(decimal.Zero) {
		// Degenerate reference price; treat everything as out of range.
		return bpsPerUnit.Mul(bpsPerUnit)
	}
	return limitPrice.Sub(referencePrice).Abs().Div(referencePrice).Mul(bpsPerUnit)
}

// effectiveHours returns time on book clamped to the daily accrual cap.
func effectiveHours(hoursOnBook decimal.Decimal) decimal.Decimal {
	if hoursOnBook.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	if hoursOnBook.GreaterThan(maxCreditedHours) {
		return maxCreditedHours
	}
	return hoursOnBook
}

// V1 is the original policy: eligibility-gated, size × time accrual with
// no price weighting.
type V1 struct{}

func (V1) Version() int { return 1 }

func (V1) Score(s model.ActivitySnapshot, p model.RewardParams) decimal.Decimal {
	if p.TimeDivisor.LessThanOrEqual(decimal.Zero) || s.OpenQuantity.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	if priceDistanceBps(s.LimitPrice, p.ReferencePrice).GreaterThan(p.MaxEligibleDistanceBps) {
		return decimal.Zero
	}
	return s.OpenQuantity.Mul(effectiveHours(s.HoursOnBook)).Div(p.TimeDivisor)
}

// V2 is the current policy. Eligible orders earn a price scale factor
// that decreases linearly from MaxPriceMultiplier at the reference price
// down to 1 at the eligibility boundary, so tighter quotes score higher:
//
//	scale = maxMult - (maxMult - 1) * distance/maxDistance
//	points = open_quantity * scale * min(hours_on_book, 24) / time_divisor
type V2 struct{}

func (V2) Version() int { return 2 }

func (V2) Score(s model.ActivitySnapshot, p model.RewardParams) decimal.Decimal {
	if p.TimeDivisor.LessThanOrEqual(decimal.Zero) || s.OpenQuantity.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	dist := priceDistanceBps(s.LimitPrice, p.ReferencePrice)
	if dist.GreaterThan(p.MaxEligibleDistanceBps) {
		return decimal.Zero
	}
	scale := priceScaleFactor(dist, p.MaxEligibleDistanceBps, p.MaxPriceMultiplier)
	return s.OpenQuantity.Mul(scale).Mul(effectiveHours(s.HoursOnBook)).Div(p.TimeDivisor)
}

// priceScaleFactor interpolates the multiplier over [0, maxDistance].
// Clamped to [1, maxMultiplier]; a maxMultiplier below 1 degrades to a
// flat 1 so the factor stays positive.
func priceScaleFactor(dist, maxDistance, maxMultiplier decimal.Decimal) decimal.Decimal {
	if maxMultiplier.LessThanOrEqual(one) || maxDistance.LessThanOrEqual(decimal.Zero) {
		return one
	}
	scale := maxMultiplier.Sub(maxMultiplier.Sub(one).Mul(dist).Div(maxDistance))
	if scale.LessThan(one) {
		return one
	}
	if scale.GreaterThan(maxMultiplier) {
		return maxMultiplier
	}
	return scale
}

// ScoreAll scores every snapshot under the given policy and folds the
// results into per-account entries for the reward date. Output is sorted
// by account for determinism; accounts whose orders all scored zero are
// still present with zero points (the allocator filters them).
func ScoreAll(scorer Scorer, snapshots []model.ActivitySnapshot, p model.RewardParams) []model.ScoredEntry {
	totals := make(map[string]decimal.Decimal)
	for _, s := range snapshots {
		totals[s.AccountID] = totals[s.AccountID].Add(scorer.Score(s, p))
	}

	entries := make([]model.ScoredEntry, 0, len(totals))
	for account, points := range totals {
		entries = append(entries, model.ScoredEntry{
			AccountID:  account,
			RewardDate: p.RewardDate,
			Points:     points,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].AccountID < entries[j].AccountID
	})
	return entries
}
