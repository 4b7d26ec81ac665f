// Package raffle draws fixed-amount bonus winners from the accounts that
// earned points in a reward period.
//
// Sampling is uniform without replacement. The randomness source is
// injected and need not be cryptographically secure: the requirement is
// fairness (uniform, independent draws), not unpredictability to an
// adversary — winners are published and payouts are operator-confirmed.
package raffle

import (
	"math/rand"

	"github.com/shopspring/decimal"

	"github.com/tidemark/rewards-engine/internal/model"
)

// Draw picks up to k distinct winners uniformly without replacement from
// the allocations with positive points. If k meets or exceeds the
// candidate pool, every candidate wins. Each winner receives the flat
// amount with source=raffle and zero audit points, keyed independently
// of the proportional lp_reward payout for the same date.
func Draw(allocations []model.Allocation, k int, flat decimal.Decimal, rng *rand.Rand) []model.PayoutRecord {
	if k <= 0 {
		return nil
	}

	bag := make([]model.Allocation, 0, len(allocations))
	for _, a := range allocations {
		if a.Points.GreaterThan(decimal.Zero) {
			bag = append(bag, a)
		}
	}

	winners := make([]model.PayoutRecord, 0, min(k, len(bag)))
	for len(winners) < k && len(bag) > 0 {
		idx := rng.Intn(len(bag))
		picked := bag[idx]
		bag[idx] = bag[len(bag)-1]
		bag = bag[:len(bag)-1]

		winners = append(winners, model.PayoutRecord{
			AccountID:  picked.AccountID,
			Points:     decimal.Zero,
			Share:      decimal.Zero,
			Payout:     flat,
			RewardDate: picked.RewardDate,
			Source:     model.SourceRaffle,
		})
	}
	return winners
}
