package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"ticket-pricing/internal/pricing"
)

const (
	lockPriceTestKeySQL = `SELECT pg_advisory_xact_lock(hashtextextended($1::TEXT || '/' || $2::TEXT, 0));`

	deactivateActiveSQL = `UPDATE price_tests
    SET is_active = FALSE, ended_at = $3
    WHERE item_id = $1 AND region = $2 AND is_active;`

	insertVariantSQL = `INSERT INTO price_tests (
        id,
        item_id,
        region,
        variant,
        currency,
        price_minor,
        is_active,
        started_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    );`

	topVariantSQL = `SELECT
        item_id,
        region,
        variant,
        currency,
        price_minor,
        impressions,
        conversions,
        conversion_rate::TEXT,
        revenue_minor
    FROM price_test_stats
    WHERE item_id = $1 AND region = $2
    ORDER BY conversion_rate DESC, revenue_minor DESC
    LIMIT 1;`

	listTestsSQL = `SELECT
        id::TEXT,
        item_id,
        region,
        variant,
        currency,
        price_minor,
        is_active,
        started_at,
        ended_at
    FROM price_tests
    WHERE item_id = $1
      AND ($2::TEXT = '' OR region = $2::TEXT)
      AND ($3::BOOLEAN OR is_active)
    ORDER BY started_at DESC, variant;`
)

// WithinTx runs fn in one transaction holding a transaction-scoped advisory
// lock on (itemID, region), so concurrent propose/adopt calls for the same key
// apply one after the other.
func (s *Store) WithinTx(ctx context.Context, itemID, region string, fn func(tx pricing.PriceTestTx) error) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	return pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, lockPriceTestKeySQL, itemID, region); err != nil {
			return fmt.Errorf("lock price test %s/%s: %w", itemID, region, err)
		}
		return fn(&priceTestTx{tx: tx})
	})
}

// ListTests lists variants for an item, optionally scoped to a region.
func (s *Store) ListTests(ctx context.Context, itemID, region string, includeEnded bool) ([]pricing.PriceTest, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listTestsSQL, itemID, region, includeEnded)
	if queryErr != nil {
		return nil, fmt.Errorf("list price tests: %w", queryErr)
	}
	defer rows.Close()

	tests := make([]pricing.PriceTest, 0)
	for rows.Next() {
		var t pricing.PriceTest
		if err := rows.Scan(
			&t.ID,
			&t.ItemID,
			&t.Region,
			&t.Variant,
			&t.Currency,
			&t.PriceMinor,
			&t.IsActive,
			&t.StartedAt,
			&t.EndedAt,
		); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return tests, nil
}

// TopVariant reads the stats view outside of a transaction.
func (s *Store) TopVariant(ctx context.Context, itemID, region string) (pricing.VariantStat, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return pricing.VariantStat{}, false, err
	}
	return topVariant(ctx, pool, itemID, region)
}

type priceTestTx struct {
	tx pgx.Tx
}

func (t *priceTestTx) TopVariant(ctx context.Context, itemID, region string) (pricing.VariantStat, bool, error) {
	return topVariant(ctx, t.tx, itemID, region)
}

func (t *priceTestTx) DeactivateActive(ctx context.Context, itemID, region string, endedAt time.Time) (int64, error) {
	tag, err := t.tx.Exec(ctx, deactivateActiveSQL, itemID, region, endedAt)
	if err != nil {
		return 0, fmt.Errorf("deactivate price tests: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (t *priceTestTx) InsertVariants(ctx context.Context, variants []pricing.PriceTest) error {
	batch := &pgx.Batch{}
	for _, v := range variants {
		batch.Queue(insertVariantSQL, v.ID, v.ItemID, v.Region, v.Variant, v.Currency, v.PriceMinor, v.IsActive, v.StartedAt)
	}

	results := t.tx.SendBatch(ctx, batch)
	for _, v := range variants {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("insert price test %s: %w", v.Variant, err)
		}
	}
	return results.Close()
}

func (t *priceTestTx) UpsertOverride(ctx context.Context, override pricing.Override) error {
	return upsertOverride(ctx, t.tx, override)
}

func topVariant(ctx context.Context, q querier, itemID, region string) (pricing.VariantStat, bool, error) {
	var (
		stat    pricing.VariantStat
		rateStr string
	)
	err := q.QueryRow(ctx, topVariantSQL, itemID, region).Scan(
		&stat.ItemID,
		&stat.Region,
		&stat.Variant,
		&stat.Currency,
		&stat.PriceMinor,
		&stat.Impressions,
		&stat.Conversions,
		&rateStr,
		&stat.RevenueMinor,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return pricing.VariantStat{}, false, nil
	}
	if err != nil {
		return pricing.VariantStat{}, false, fmt.Errorf("top variant: %w", err)
	}

	rate, convErr := decimal.NewFromString(rateStr)
	if convErr != nil {
		return pricing.VariantStat{}, false, fmt.Errorf("parse conversion rate: %w", convErr)
	}
	stat.ConversionRate = rate
	return stat, true, nil
}

var (
	_ pricing.PriceTestStore = (*Store)(nil)
	_ pricing.StatsView      = (*Store)(nil)
	_ pricing.PriceTestTx    = (*priceTestTx)(nil)
)
