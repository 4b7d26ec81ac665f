// Package pipeline drives the reward distribution workflow: compute
// allocations for a period, partition them into payment batches, gate
// each batch on operator confirmation, and persist confirmed batches
// idempotently to the payout ledger.
//
// The pipeline owns all prompting and I/O; the computation core
// (scoring, allocation, raffle) stays pure and is called synchronously.
// Batches are processed strictly in sequence — the next batch does not
// start until the current one is persisted or skipped.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tidemark/rewards-engine/internal/alloc"
	"github.com/tidemark/rewards-engine/internal/cache"
	"github.com/tidemark/rewards-engine/internal/metrics"
	"github.com/tidemark/rewards-engine/internal/model"
	"github.com/tidemark/rewards-engine/internal/scoring"
	"github.com/tidemark/rewards-engine/internal/store"
)

// DefaultBatchSize is the payment rail's per-transaction recipient limit:
// the downstream sender starts splitting transfers past ~20 recipients,
// so batching here keeps one reference per on-rail transaction.
const DefaultBatchSize = 20

// SkipKeyword is the operator input that declines a batch.
const SkipKeyword = "skip"

// readTTL bounds staleness of cached params/snapshot reads within and
// across closely spaced runs of the same date.
const readTTL = 5 * time.Minute

// BatchState is the lifecycle state of one payment batch.
type BatchState string

const (
	StateComputed  BatchState = "computed"
	StatePending   BatchState = "batch_pending"
	StateConfirmed BatchState = "batch_confirmed"
	StatePersisted BatchState = "batch_persisted"
	StateSkipped   BatchState = "skipped"
)

// Prompter blocks for one line of operator input. The distribution loop
// has no other suspension point and no timeout: the process waits as
// long as the operator does.
type Prompter interface {
	Prompt(query string) (string, error)
}

// BatchResult records the terminal state of one batch after a run.
type BatchResult struct {
	Index      int
	Size       int
	State      BatchState
	Total      decimal.Decimal
	PaidInTxID string
}

// Pipeline wires the computation core to the ledgers and the operator.
// Construct with New; all dependencies are injected, nothing is global.
type Pipeline struct {
	store     store.Store
	cache     cache.Cache
	prompter  Prompter
	out       io.Writer
	log       *slog.Logger
	batchSize int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithBatchSize overrides the payment batch size.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// New creates a pipeline. The prompter may be nil only if every run is a
// dry run.
func New(st store.Store, c cache.Cache, prompter Prompter, out io.Writer, log *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:     st,
		cache:     c,
		prompter:  prompter,
		out:       out,
		log:       log,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ComputeOptions override stored program configuration for one run.
type ComputeOptions struct {
	// Pool overrides reward_params.rewards_pool when non-nil.
	Pool *decimal.Decimal

	// ScoringVersion overrides the stored policy version when > 0.
	ScoringVersion int
}

// Compute scores the date's activity snapshots under the configured
// policy version and allocates the reward pool proportionally. Reads go
// through the query cache; scoring and allocation are pure. A date with
// no eligible activity yields an empty allocation list and no error.
func (p *Pipeline) Compute(ctx context.Context, rewardDate string, opts ComputeOptions) (model.RewardParams, []model.Allocation, error) {
	params, err := cache.WithCache(ctx, p.cache, "params:"+rewardDate, readTTL,
		func(ctx context.Context) (model.RewardParams, error) {
			return p.store.Params(ctx, rewardDate)
		})
	if err != nil {
		metrics.AllocationRuns.WithLabelValues("error").Inc()
		return model.RewardParams{}, nil, err
	}

	snapshots, err := cache.WithCache(ctx, p.cache, "snapshots:"+rewardDate, readTTL,
		func(ctx context.Context) ([]model.ActivitySnapshot, error) {
			return p.store.Snapshots(ctx, rewardDate)
		})
	if err != nil {
		metrics.AllocationRuns.WithLabelValues("error").Inc()
		return model.RewardParams{}, nil, err
	}

	version := params.ScoringVersion
	if opts.ScoringVersion > 0 {
		version = opts.ScoringVersion
	}
	if version == 0 {
		version = scoring.DefaultVersion
	}
	scorer, err := scoring.ForVersion(version)
	if err != nil {
		metrics.AllocationRuns.WithLabelValues("error").Inc()
		return model.RewardParams{}, nil, err
	}

	pool := params.RewardsPool
	if opts.Pool != nil {
		pool = *opts.Pool
	}

	entries := scoring.ScoreAll(scorer, snapshots, params)
	allocations := alloc.Allocate(entries, pool)

	outcome := "ok"
	if len(allocations) == 0 {
		outcome = "empty"
	}
	metrics.AllocationRuns.WithLabelValues(outcome).Inc()

	p.log.Info("allocations computed",
		"reward_date", rewardDate,
		"scoring_version", version,
		"snapshots", len(snapshots),
		"eligible_accounts", len(allocations),
		"pool", pool.String(),
		"total_payout", alloc.Total(allocations).String(),
	)
	return params, allocations, nil
}

// Distribute partitions records into batches and walks each batch
// through the confirm-and-persist loop:
//
//	Computed → BatchPending → BatchConfirmed → BatchPersisted, or Skipped.
//
// Every batch is printed up front so the operator can stage payments
// before confirming any of them. In dry-run mode the walk stops after
// printing: no prompts, no writes.
//
// A duplicate idempotency key fails the batch's transaction atomically
// and aborts the run with model.ErrAlreadyPaid — the date (or part of
// it) has already been paid, and that needs a human decision, not a
// retry. Transient persistence failures keep the batch confirmed and
// re-prompt, so the operator can retry with the same or a corrected
// reference.
func (p *Pipeline) Distribute(ctx context.Context, records []model.PayoutRecord, dryRun bool) ([]BatchResult, error) {
	log := p.log.With("run_id", uuid.NewString())

	batches := alloc.Batch(records, p.batchSize)
	results := make([]BatchResult, len(batches))

	for i, batch := range batches {
		results[i] = BatchResult{
			Index: i + 1,
			Size:  len(batch),
			State: StateComputed,
			Total: recordTotal(batch),
		}
	}

	// Print out all batches at the start; makes the payment run easier
	// to stage on the rail side.
	for i, batch := range batches {
		fmt.Fprintf(p.out, "Batch %d/%d total=%s\n", i+1, len(batches), results[i].Total.String())
		for _, r := range batch {
			fmt.Fprintf(p.out, "%s,%s\n", r.AccountID, r.Payout.String())
		}
		fmt.Fprintln(p.out)
	}

	if dryRun {
		fmt.Fprintln(p.out, "Skip saving due to dry run")
		return results, nil
	}

	for i, batch := range batches {
		results[i].State = StatePending

		for {
			txID, err := p.promptReference(i+1, len(batches))
			if err != nil {
				return results, err
			}
			if strings.EqualFold(txID, SkipKeyword) {
				results[i].State = StateSkipped
				metrics.BatchesSkipped.Inc()
				log.Info("batch skipped", "batch", i+1, "of", len(batches))
				fmt.Fprintln(p.out, "skipping")
				break
			}

			results[i].State = StateConfirmed
			results[i].PaidInTxID = txID
			fmt.Fprintf(p.out, "Batch total: %s, paid in %s\n", results[i].Total.String(), txID)
			if _, err := p.prompter.Prompt("Press [ENTER] to save: "); err != nil {
				return results, err
			}

			for j := range batch {
				batch[j].PaidInTxID = txID
			}
			err = p.store.SavePayouts(ctx, batch)
			if errors.Is(err, model.ErrAlreadyPaid) {
				metrics.PersistenceConflicts.Inc()
				log.Error("batch already paid", "batch", i+1, "err", err)
				fmt.Fprintln(p.out, "already paid, aborting")
				return results, err
			}
			if err != nil {
				// Transaction rolled back; nothing was written. Stay on
				// this batch and let the operator retry.
				log.Error("batch persistence failed", "batch", i+1, "err", err)
				fmt.Fprintf(p.out, "save failed (%v), batch not persisted — retry\n", err)
				continue
			}

			results[i].State = StatePersisted
			metrics.BatchesPersisted.Inc()
			metrics.PayoutsPersisted.WithLabelValues(string(batch[0].Source)).Add(float64(len(batch)))
			log.Info("batch persisted",
				"batch", i+1,
				"of", len(batches),
				"rows", len(batch),
				"total", results[i].Total.String(),
				"paid_in_tx_id", txID,
			)
			break
		}
	}

	return results, nil
}

// promptReference blocks until the operator supplies a non-empty
// transaction reference or the skip keyword. Empty input re-prompts
// indefinitely; there is no cancellation path short of killing the
// process.
func (p *Pipeline) promptReference(batchNum, batchCount int) (string, error) {
	for {
		answer, err := p.prompter.Prompt(
			fmt.Sprintf("Payment TX ID (Batch %d/%d), %q to skip: ", batchNum, batchCount, SkipKeyword))
		if err != nil {
			return "", fmt.Errorf("read operator input: %w", err)
		}
		answer = strings.TrimSpace(answer)
		if answer != "" {
			return answer, nil
		}
	}
}

// RecordsFromAllocations converts proportional allocations into
// lp_reward ledger rows. PaidInTxID is assigned per batch at persist
// time.
func RecordsFromAllocations(allocations []model.Allocation) []model.PayoutRecord {
	records := make([]model.PayoutRecord, 0, len(allocations))
	for _, a := range allocations {
		records = append(records, model.PayoutRecord{
			AccountID:  a.AccountID,
			Points:     a.Points,
			Share:      a.Share,
			Payout:     a.Payout,
			RewardDate: a.RewardDate,
			Source:     model.SourceLPReward,
		})
	}
	return records
}

func recordTotal(records []model.PayoutRecord) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Payout)
	}
	return total
}
