// Package alloc converts scored entries into ranked, proportional
// payouts from a fixed reward pool, and partitions the result into
// payment-rail-sized batches.
//
// Payouts are truncated, never rounded: truncation is the only rounding
// mode under which the sum of payouts provably stays within the pool.
//
// All monetary values use shopspring/decimal — never float64 for money.
package alloc

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tidemark/rewards-engine/internal/model"
)

// PayoutScale is the number of decimal places payouts are truncated to.
const PayoutScale int32 = 2

// Allocate distributes pool proportionally among entries with positive
// points. Entries with zero points are excluded from the total and
// receive nothing. Ranking is dense: equal points share a rank, the next
// distinct points value takes the immediately following rank number,
// and ties are ordered by ascending account ID for determinism.
//
// An empty or fully-ineligible input yields an empty list, not an error.
func Allocate(entries []model.ScoredEntry, pool decimal.Decimal) []model.Allocation {
	eligible := make([]model.ScoredEntry, 0, len(entries))
	totalPoints := decimal.Zero
	for _, e := range entries {
		if e.Points.GreaterThan(decimal.Zero) {
			eligible = append(eligible, e)
			totalPoints = totalPoints.Add(e.Points)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	sort.Slice(eligible, func(i, j int) bool {
		if !eligible[i].Points.Equal(eligible[j].Points) {
			return eligible[i].Points.GreaterThan(eligible[j].Points)
		}
		return eligible[i].AccountID < eligible[j].AccountID
	})

	allocations := make([]model.Allocation, 0, len(eligible))
	rank := 0
	var prevPoints decimal.Decimal
	for i, e := range eligible {
		if i == 0 || !e.Points.Equal(prevPoints) {
			rank++
			prevPoints = e.Points
		}
		share := e.Points.Div(totalPoints)
		allocations = append(allocations, model.Allocation{
			Ranking:    rank,
			AccountID:  e.AccountID,
			Points:     e.Points,
			Share:      share,
			Payout:     share.Mul(pool).Truncate(PayoutScale),
			RewardDate: e.RewardDate,
		})
	}
	return allocations
}

// Batch partitions items into order-preserving batches of at most size
// elements. The batch size is driven by the payment rail's
// per-transaction recipient limit. Every item appears in exactly one
// batch; m items yield ceil(m/size) batches.
func Batch[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) == 0 {
		return nil
	}
	batches := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}

// Total sums the payouts of a set of allocations.
func Total(allocations []model.Allocation) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocations {
		total = total.Add(a.Payout)
	}
	return total
}
