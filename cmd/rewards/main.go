// Command rewards runs the liquidity-incentive reward engine: it scores
// a day's order activity, allocates the reward pool proportionally, and
// drives the operator-gated batch payment workflow.
//
// Usage:
//
//	rewards compute    --reward-date=2024-03-01 [--pool=500] [--scoring-version=2]
//	rewards distribute --reward-date=2024-03-01 [--pool=500] [--batch-size=20] [--dry-run]
//	rewards raffle     --reward-date=2024-03-01 [--winners=4] [--amount=25] [--dry-run]
//
// Environment:
//
//	DATABASE_URL  Postgres connection string (required)
//	REDIS_URL     optional shared query-cache backend
//	METRICS_ADDR  optional listen address for /health and /metrics
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	flag "github.com/spf13/pflag"

	"github.com/tidemark/rewards-engine/internal/cache"
	"github.com/tidemark/rewards-engine/internal/metrics"
	"github.com/tidemark/rewards-engine/internal/period"
	"github.com/tidemark/rewards-engine/internal/pipeline"
	"github.com/tidemark/rewards-engine/internal/raffle"
	"github.com/tidemark/rewards-engine/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := run(os.Args[1:]); err != nil {
		slog.Error("run failed", "err", err)
		os.Exit(1)
	}
}

func usage() string {
	return "usage: rewards <compute|distribute|raffle> [flags]"
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%s", usage())
	}

	switch cmd := args[0]; cmd {
	case "compute":
		return runCompute(args[1:])
	case "distribute":
		return runDistribute(args[1:])
	case "raffle":
		return runRaffle(args[1:])
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage())
	}
}

// commonFlags are the flags shared by every subcommand.
type commonFlags struct {
	rewardDate string
	dryRun     bool
}

func registerCommon(fs *flag.FlagSet) *commonFlags {
	c := &commonFlags{}
	fs.StringVar(&c.rewardDate, "reward-date", "", "reward date (YYYY-MM-DD, required)")
	fs.BoolVar(&c.dryRun, "dry-run", false, "print projected output without prompting or persisting")
	return c
}

// parsePool parses an optional pool override. Empty means "use the
// stored reward_params pool".
func parsePool(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	pool, err := decimal.NewFromString(s)
	if err != nil || pool.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("invalid pool %q: must be a positive decimal", s)
	}
	return &pool, nil
}

// setup builds the pipeline and its dependencies from the environment.
// The returned close func releases the connection pool.
func setup(prompter pipeline.Prompter, opts ...pipeline.Option) (*pipeline.Pipeline, func(), error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	cleanup := []func(){pool.Close}
	st := store.NewPostgresStore(pool)

	var qc cache.Cache = cache.NewMemory()
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		qc = cache.NewRedis(rdb, "rewards")
		slog.Info("Redis query cache enabled")
	}

	if addr := os.Getenv("METRICS_ADDR"); addr != "" {
		go serveMetrics(addr)
	}

	p := pipeline.New(st, qc, prompter, os.Stdout, slog.Default(), opts...)
	return p, func() {
		for _, fn := range cleanup {
			fn()
		}
	}, nil
}

// serveMetrics exposes /health and /metrics while the pipeline runs.
// Useful when a long confirm loop should stay observable.
func serveMetrics(addr string) {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"rewards-engine"}`))
	})
	r.Handle("/metrics", metrics.Handler())

	slog.Info("metrics listening", "addr", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		slog.Error("metrics server error", "err", err)
	}
}

func runCompute(args []string) error {
	fs := flag.NewFlagSet("compute", flag.ContinueOnError)
	common := registerCommon(fs)
	poolFlag := fs.String("pool", "", "reward pool override (default: stored reward_params)")
	versionFlag := fs.Int("scoring-version", 0, "scoring policy override (default: stored reward_params)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	date, err := period.Parse(common.rewardDate)
	if err != nil {
		return err
	}
	poolOverride, err := parsePool(*poolFlag)
	if err != nil {
		return err
	}

	p, closeFn, err := setup(nil)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := context.Background()
	params, allocations, err := p.Compute(ctx, date.String(), pipeline.ComputeOptions{
		Pool:           poolOverride,
		ScoringVersion: *versionFlag,
	})
	if err != nil {
		return err
	}

	pool := params.RewardsPool
	if poolOverride != nil {
		pool = *poolOverride
	}

	fmt.Printf("ranking,account_id,points,share,payout\n")
	total := decimal.Zero
	for _, a := range allocations {
		total = total.Add(a.Payout)
		fmt.Printf("%d,%s,%s,%s,%s\n",
			a.Ranking, a.AccountID, a.Points.String(), a.Share.StringFixed(6), a.Payout.String())
	}
	fmt.Printf("\nLP REWARDS %s (TOTAL: %s of pool %s)\n", date, total.String(), pool.String())
	return nil
}

func runDistribute(args []string) error {
	fs := flag.NewFlagSet("distribute", flag.ContinueOnError)
	common := registerCommon(fs)
	poolFlag := fs.String("pool", "", "reward pool override (default: stored reward_params)")
	versionFlag := fs.Int("scoring-version", 0, "scoring policy override (default: stored reward_params)")
	batchSize := fs.Int("batch-size", pipeline.DefaultBatchSize, "accounts per payment batch")
	if err := fs.Parse(args); err != nil {
		return err
	}

	date, err := period.Parse(common.rewardDate)
	if err != nil {
		return err
	}
	poolOverride, err := parsePool(*poolFlag)
	if err != nil {
		return err
	}

	prompter := pipeline.NewIOPrompter(os.Stdin, os.Stdout)
	p, closeFn, err := setup(prompter, pipeline.WithBatchSize(*batchSize))
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := context.Background()
	_, allocations, err := p.Compute(ctx, date.String(), pipeline.ComputeOptions{
		Pool:           poolOverride,
		ScoringVersion: *versionFlag,
	})
	if err != nil {
		return err
	}
	if len(allocations) == 0 {
		fmt.Println("no eligible participants, nothing to distribute")
		return nil
	}

	records := pipeline.RecordsFromAllocations(allocations)
	results, err := p.Distribute(ctx, records, common.dryRun)
	if err != nil {
		return err
	}

	for _, r := range results {
		fmt.Printf("batch %d: %s (%d rows, total %s)\n", r.Index, r.State, r.Size, r.Total.String())
	}
	return nil
}

func runRaffle(args []string) error {
	fs := flag.NewFlagSet("raffle", flag.ContinueOnError)
	common := registerCommon(fs)
	winnersFlag := fs.Int("winners", 4, "number of raffle winners to draw")
	amountFlag := fs.String("amount", "25", "flat payout per raffle winner")
	if err := fs.Parse(args); err != nil {
		return err
	}

	date, err := period.Parse(common.rewardDate)
	if err != nil {
		return err
	}
	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("invalid amount %q: must be a positive decimal", *amountFlag)
	}
	if *winnersFlag <= 0 {
		return fmt.Errorf("invalid winners %d: must be positive", *winnersFlag)
	}

	prompter := pipeline.NewIOPrompter(os.Stdin, os.Stdout)
	p, closeFn, err := setup(prompter)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := context.Background()
	_, allocations, err := p.Compute(ctx, date.String(), pipeline.ComputeOptions{})
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	winners := raffle.Draw(allocations, *winnersFlag, amount, rng)
	if len(winners) == 0 {
		fmt.Println("no eligible participants, no raffle")
		return nil
	}
	metrics.RaffleWinners.Add(float64(len(winners)))

	fmt.Printf("RAFFLE WINNERS %s\n", date)
	for _, w := range winners {
		fmt.Printf("%s,%s\n", w.AccountID, w.Payout.String())
	}
	fmt.Println()

	results, err := p.Distribute(ctx, winners, common.dryRun)
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Printf("batch %d: %s (%d rows, total %s)\n", r.Index, r.State, r.Size, r.Total.String())
	}
	return nil
}
