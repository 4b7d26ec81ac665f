package store

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tidemark/rewards-engine/internal/model"
)

// d is a test helper for creating decimals from float64.
func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func record(account, date string, source model.PayoutSource) model.PayoutRecord {
	return model.PayoutRecord{
		AccountID:  account,
		Points:     d(100),
		Share:      d(0.5),
		Payout:     d(15),
		RewardDate: date,
		PaidInTxID: "tx-1",
		Source:     source,
	}
}

func TestMemoryStore_ParamsNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Params(context.Background(), "2024-03-01")
	if !errors.Is(err, model.ErrParamsNotFound) {
		t.Errorf("expected ErrParamsNotFound, got %v", err)
	}
}

func TestMemoryStore_ParamsRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	s.SetParams(model.RewardParams{
		RewardDate:     "2024-03-01",
		ReferencePrice: d(1),
		RewardsPool:    d(500),
		ScoringVersion: 2,
	})

	p, err := s.Params(context.Background(), "2024-03-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.RewardsPool.Equal(d(500)) || p.ScoringVersion != 2 {
		t.Errorf("params did not round-trip: %+v", p)
	}
}

func TestMemoryStore_SnapshotsEmpty(t *testing.T) {
	s := NewMemoryStore()
	snaps, err := s.Snapshots(context.Background(), "2024-03-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snaps) != 0 {
		t.Errorf("expected no snapshots, got %d", len(snaps))
	}
}

func TestMemoryStore_SavePayouts(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	err := s.SavePayouts(ctx, []model.PayoutRecord{
		record("alice", "2024-03-01", model.SourceLPReward),
		record("bob", "2024-03-01", model.SourceLPReward),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(s.Payouts("2024-03-01")); got != 2 {
		t.Errorf("expected 2 payouts, got %d", got)
	}
}

func TestMemoryStore_DuplicateKeyConflicts(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.SavePayouts(ctx, []model.PayoutRecord{
		record("alice", "2024-03-01", model.SourceLPReward),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := s.SavePayouts(ctx, []model.PayoutRecord{
		record("alice", "2024-03-01", model.SourceLPReward),
	})
	if !errors.Is(err, model.ErrAlreadyPaid) {
		t.Errorf("expected ErrAlreadyPaid, got %v", err)
	}
}

func TestMemoryStore_DistinctSourcesCoexist(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.SavePayouts(ctx, []model.PayoutRecord{
		record("alice", "2024-03-01", model.SourceLPReward),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.SavePayouts(ctx, []model.PayoutRecord{
		record("alice", "2024-03-01", model.SourceRaffle),
	}); err != nil {
		t.Fatalf("same account/date under a different source should not conflict: %v", err)
	}
	if got := len(s.Payouts("2024-03-01")); got != 2 {
		t.Errorf("expected 2 payouts, got %d", got)
	}
}

func TestMemoryStore_SaveIsAllOrNothing(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.SavePayouts(ctx, []model.PayoutRecord{
		record("bob", "2024-03-01", model.SourceLPReward),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Batch contains one fresh row and one conflicting row: neither may land.
	err := s.SavePayouts(ctx, []model.PayoutRecord{
		record("alice", "2024-03-01", model.SourceLPReward),
		record("bob", "2024-03-01", model.SourceLPReward),
	})
	if !errors.Is(err, model.ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid, got %v", err)
	}
	if got := len(s.Payouts("2024-03-01")); got != 1 {
		t.Errorf("expected rollback to leave 1 payout, got %d", got)
	}
}

func TestMemoryStore_InBatchDuplicateConflicts(t *testing.T) {
	s := NewMemoryStore()
	err := s.SavePayouts(context.Background(), []model.PayoutRecord{
		record("alice", "2024-03-01", model.SourceLPReward),
		record("alice", "2024-03-01", model.SourceLPReward),
	})
	if !errors.Is(err, model.ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid for in-batch duplicate, got %v", err)
	}
	if got := len(s.Payouts("2024-03-01")); got != 0 {
		t.Errorf("expected nothing persisted, got %d", got)
	}
}
