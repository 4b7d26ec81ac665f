package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tidemark/rewards-engine/internal/model"
)

// uniqueViolation is the SQLSTATE for a unique constraint violation.
const uniqueViolation = "23505"

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Params(ctx context.Context, rewardDate string) (model.RewardParams, error) {
	var p model.RewardParams
	var refPrice, maxDist, maxMult, timeDiv, pool string

	err := s.pool.QueryRow(ctx,
		`SELECT reward_date::TEXT,
		        reference_price::TEXT, max_eligible_distance_bps::TEXT,
		        max_price_multiplier::TEXT, time_divisor::TEXT,
		        rewards_pool::TEXT, scoring_version
		 FROM reward_params WHERE reward_date = $1`, rewardDate).
		Scan(&p.RewardDate, &refPrice, &maxDist, &maxMult, &timeDiv, &pool, &p.ScoringVersion)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.RewardParams{}, fmt.Errorf("%w: %s", model.ErrParamsNotFound, rewardDate)
	}
	if err != nil {
		return model.RewardParams{}, fmt.Errorf("get reward params %s: %w", rewardDate, err)
	}

	p.ReferencePrice, _ = decimal.NewFromString(refPrice)
	p.MaxEligibleDistanceBps, _ = decimal.NewFromString(maxDist)
	p.MaxPriceMultiplier, _ = decimal.NewFromString(maxMult)
	p.TimeDivisor, _ = decimal.NewFromString(timeDiv)
	p.RewardsPool, _ = decimal.NewFromString(pool)

	return p, nil
}

func (s *PostgresStore) Snapshots(ctx context.Context, rewardDate string) ([]model.ActivitySnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT account_id, side,
		        limit_price::TEXT, open_quantity::TEXT, hours_on_book::TEXT
		 FROM order_snapshots
		 WHERE snapshot_date = $1
		 ORDER BY account_id, limit_price`, rewardDate)
	if err != nil {
		return nil, fmt.Errorf("get snapshots %s: %w", rewardDate, err)
	}
	defer rows.Close()

	var snapshots []model.ActivitySnapshot
	for rows.Next() {
		var snap model.ActivitySnapshot
		var limitPrice, openQty, hours string
		if err := rows.Scan(&snap.AccountID, &snap.Side, &limitPrice, &openQty, &hours); err != nil {
			return nil, err
		}
		snap.LimitPrice, _ = decimal.NewFromString(limitPrice)
		snap.OpenQuantity, _ = decimal.NewFromString(openQty)
		snap.HoursOnBook, _ = decimal.NewFromString(hours)
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

// SavePayouts writes the batch in one transaction. Any failure rolls the
// whole batch back; a unique violation on the (account_id, reward_date,
// source) key surfaces as model.ErrAlreadyPaid.
func (s *PostgresStore) SavePayouts(ctx context.Context, records []model.PayoutRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin payout tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range records {
		_, err := tx.Exec(ctx,
			`INSERT INTO reward_payouts (account_id, points, share, payout, reward_date, paid_in_tx_id, source)
			 VALUES ($1, $2::NUMERIC, $3::NUMERIC, $4::NUMERIC, $5, $6, $7)`,
			r.AccountID, r.Points.String(), r.Share.String(), r.Payout.String(),
			r.RewardDate, r.PaidInTxID, string(r.Source),
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return fmt.Errorf("%w: %s/%s/%s", model.ErrAlreadyPaid,
					r.AccountID, r.RewardDate, r.Source)
			}
			return fmt.Errorf("insert payout %s/%s/%s: %w", r.AccountID, r.RewardDate, r.Source, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit payout tx: %w", err)
	}
	return nil
}
