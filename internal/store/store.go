// Package store defines the persistence interfaces for the rewards
// engine. Implementations include PostgreSQL (source of truth) and
// in-memory (for testing and dry-run development).
package store

import (
	"context"

	"github.com/tidemark/rewards-engine/internal/model"
)

// ActivityLedger is the read-only query surface over captured order
// activity and program configuration for a reward period.
type ActivityLedger interface {
	// Params returns the reward parameters for a date.
	// Returns model.ErrParamsNotFound if none are configured.
	Params(ctx context.Context, rewardDate string) (model.RewardParams, error)

	// Snapshots returns the open-order activity snapshots captured for
	// a date. An empty result is normal (no activity, no rewards).
	Snapshots(ctx context.Context, rewardDate string) ([]model.ActivitySnapshot, error)
}

// PayoutLedger is the durable, append-only payout store.
type PayoutLedger interface {
	// SavePayouts writes one batch of payout records inside a single
	// atomic transaction — all rows or none. A pre-existing row for any
	// record's (account_id, reward_date, source) key fails the whole
	// batch with model.ErrAlreadyPaid.
	SavePayouts(ctx context.Context, records []model.PayoutRecord) error
}

// Store combines both ledgers. PostgreSQL backs production; the memory
// implementation backs tests.
type Store interface {
	ActivityLedger
	PayoutLedger
}
