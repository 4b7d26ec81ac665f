package alloc

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tidemark/rewards-engine/internal/model"
)

// d is a test helper for creating decimals from float64.
func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func entry(account string, points float64) model.ScoredEntry {
	return model.ScoredEntry{AccountID: account, RewardDate: "2024-03-01", Points: d(points)}
}

// --- Allocation tests ---

func TestAllocate_ProportionalExample(t *testing.T) {
	// points [100, 50, 50], pool 30.00 → shares [0.5, 0.25, 0.25],
	// payouts [15.00, 7.50, 7.50], ranks [1, 2, 2].
	allocs := Allocate([]model.ScoredEntry{
		entry("bob", 50),
		entry("alice", 100),
		entry("carol", 50),
	}, d(30))

	if len(allocs) != 3 {
		t.Fatalf("expected 3 allocations, got %d", len(allocs))
	}

	expected := []struct {
		account string
		rank    int
		share   float64
		payout  float64
	}{
		{"alice", 1, 0.5, 15.00},
		{"bob", 2, 0.25, 7.50},
		{"carol", 2, 0.25, 7.50},
	}
	for i, want := range expected {
		got := allocs[i]
		if got.AccountID != want.account {
			t.Errorf("pos %d: expected account %s, got %s", i, want.account, got.AccountID)
		}
		if got.Ranking != want.rank {
			t.Errorf("%s: expected rank %d, got %d", want.account, want.rank, got.Ranking)
		}
		if !got.Share.Equal(d(want.share)) {
			t.Errorf("%s: expected share %v, got %s", want.account, want.share, got.Share)
		}
		if !got.Payout.Equal(d(want.payout)) {
			t.Errorf("%s: expected payout %v, got %s", want.account, want.payout, got.Payout)
		}
	}
}

func TestAllocate_ZeroPointsExcluded(t *testing.T) {
	allocs := Allocate([]model.ScoredEntry{
		entry("alice", 100),
		entry("idle", 0),
	}, d(30))

	if len(allocs) != 1 {
		t.Fatalf("expected 1 allocation, got %d", len(allocs))
	}
	if allocs[0].AccountID != "alice" {
		t.Errorf("expected alice, got %s", allocs[0].AccountID)
	}
	// idle contributed nothing to the total: alice takes the whole pool.
	if !allocs[0].Share.Equal(d(1)) {
		t.Errorf("expected share 1, got %s", allocs[0].Share)
	}
	if !allocs[0].Payout.Equal(d(30)) {
		t.Errorf("expected payout 30, got %s", allocs[0].Payout)
	}
}

func TestAllocate_EmptyInput(t *testing.T) {
	if got := Allocate(nil, d(100)); len(got) != 0 {
		t.Errorf("expected empty output for empty input, got %d", len(got))
	}
	if got := Allocate([]model.ScoredEntry{entry("idle", 0)}, d(100)); len(got) != 0 {
		t.Errorf("expected empty output when all points are zero, got %d", len(got))
	}
}

func TestAllocate_SharesSumToOne(t *testing.T) {
	allocs := Allocate([]model.ScoredEntry{
		entry("a", 1), entry("b", 1), entry("c", 1),
	}, d(100))

	total := decimal.Zero
	for _, a := range allocs {
		total = total.Add(a.Share)
	}
	epsilon := decimal.New(1, -12)
	if total.Sub(d(1)).Abs().GreaterThan(epsilon) {
		t.Errorf("shares should sum to 1 within epsilon, got %s", total)
	}
}

func TestAllocate_NeverOverpays(t *testing.T) {
	// 1/3 shares truncate down; the sum must stay within the pool.
	pools := []decimal.Decimal{d(100), d(0.01), d(10.07), d(333.33)}
	entries := []model.ScoredEntry{
		entry("a", 1), entry("b", 1), entry("c", 1),
		entry("e", 7), entry("f", 13),
	}
	for _, pool := range pools {
		allocs := Allocate(entries, pool)
		total := Total(allocs)
		if total.GreaterThan(pool) {
			t.Errorf("pool %s: total payout %s exceeds pool", pool, total)
		}
	}
}

func TestAllocate_TruncatesNotRounds(t *testing.T) {
	// 2/3 of 10 = 6.666... → 6.66, never 6.67.
	allocs := Allocate([]model.ScoredEntry{
		entry("a", 2), entry("b", 1),
	}, d(10))
	if !allocs[0].Payout.Equal(d(6.66)) {
		t.Errorf("expected 6.66, got %s", allocs[0].Payout)
	}
}

func TestAllocate_DenseRank(t *testing.T) {
	allocs := Allocate([]model.ScoredEntry{
		entry("d", 10),
		entry("a", 50),
		entry("c", 50),
		entry("b", 70),
	}, d(100))

	// b(70)→1, a(50)→2, c(50)→2, d(10)→3. No gap after the tie.
	wantRanks := map[string]int{"b": 1, "a": 2, "c": 2, "d": 3}
	wantOrder := []string{"b", "a", "c", "d"}
	for i, a := range allocs {
		if a.AccountID != wantOrder[i] {
			t.Errorf("pos %d: expected %s, got %s", i, wantOrder[i], a.AccountID)
		}
		if a.Ranking != wantRanks[a.AccountID] {
			t.Errorf("%s: expected rank %d, got %d", a.AccountID, wantRanks[a.AccountID], a.Ranking)
		}
	}
}

func TestAllocate_TiesBreakByAccountAscending(t *testing.T) {
	first := Allocate([]model.ScoredEntry{entry("zed", 10), entry("amy", 10)}, d(10))
	second := Allocate([]model.ScoredEntry{entry("amy", 10), entry("zed", 10)}, d(10))

	for i := range first {
		if first[i].AccountID != second[i].AccountID {
			t.Fatalf("ordering not deterministic under input permutation")
		}
	}
	if first[0].AccountID != "amy" {
		t.Errorf("expected amy first on tie, got %s", first[0].AccountID)
	}
}

// --- Batching tests ---

func TestBatch_CeilDivision(t *testing.T) {
	allocs := make([]model.Allocation, 5)
	for i := range allocs {
		allocs[i].Ranking = i + 1
	}

	batches := Batch(allocs, 2)
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	sizes := []int{2, 2, 1}
	for i, want := range sizes {
		if len(batches[i]) != want {
			t.Errorf("batch %d: expected size %d, got %d", i, want, len(batches[i]))
		}
	}

	// Union in order equals the original list.
	pos := 0
	for _, b := range batches {
		for _, a := range b {
			if a.Ranking != allocs[pos].Ranking {
				t.Fatalf("batch union out of order at %d", pos)
			}
			pos++
		}
	}
}

func TestBatch_Degenerate(t *testing.T) {
	if got := Batch([]model.Allocation{}, 20); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
	if got := Batch(make([]model.Allocation, 3), 0); got != nil {
		t.Errorf("expected nil for non-positive size, got %v", got)
	}
	if got := Batch(make([]model.Allocation, 3), 10); len(got) != 1 || len(got[0]) != 3 {
		t.Errorf("expected single batch of 3, got %v", got)
	}
}
