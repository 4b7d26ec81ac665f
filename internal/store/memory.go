package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/tidemark/rewards-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	params    map[string]model.RewardParams
	snapshots map[string][]model.ActivitySnapshot
	payouts   map[model.PayoutKey]model.PayoutRecord
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		params:    make(map[string]model.RewardParams),
		snapshots: make(map[string][]model.ActivitySnapshot),
		payouts:   make(map[model.PayoutKey]model.PayoutRecord),
	}
}

// SetParams configures reward parameters for a date.
func (s *MemoryStore) SetParams(p model.RewardParams) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params[p.RewardDate] = p
}

// AddSnapshots appends activity snapshots for a date.
func (s *MemoryStore) AddSnapshots(rewardDate string, snaps ...model.ActivitySnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[rewardDate] = append(s.snapshots[rewardDate], snaps...)
}

func (s *MemoryStore) Params(_ context.Context, rewardDate string) (model.RewardParams, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.params[rewardDate]
	if !ok {
		return model.RewardParams{}, fmt.Errorf("%w: %s", model.ErrParamsNotFound, rewardDate)
	}
	return p, nil
}

func (s *MemoryStore) Snapshots(_ context.Context, rewardDate string) ([]model.ActivitySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps := s.snapshots[rewardDate]
	out := make([]model.ActivitySnapshot, len(snaps))
	copy(out, snaps)
	return out, nil
}

// SavePayouts mirrors the Postgres transaction contract: every key is
// checked before any row is inserted, so a duplicate anywhere in the
// batch (against the ledger or within the batch itself) writes nothing.
func (s *MemoryStore) SavePayouts(_ context.Context, records []model.PayoutRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[model.PayoutKey]bool, len(records))
	for _, r := range records {
		key := r.Key()
		if _, exists := s.payouts[key]; exists || seen[key] {
			return fmt.Errorf("%w: %s/%s/%s", model.ErrAlreadyPaid,
				r.AccountID, r.RewardDate, r.Source)
		}
		seen[key] = true
	}
	for _, r := range records {
		s.payouts[r.Key()] = r
	}
	return nil
}

// Payouts returns all persisted records for a date, in no particular order.
func (s *MemoryStore) Payouts(rewardDate string) []model.PayoutRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.PayoutRecord
	for key, r := range s.payouts {
		if key.RewardDate == rewardDate {
			out = append(out, r)
		}
	}
	return out
}
