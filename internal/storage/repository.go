package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"ticket-pricing/internal/pricing"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	getItemSQL = `SELECT id, kind, base_currency, base_price_minor, quantity_remaining
    FROM priceable_items
    WHERE id = $1;`

	getOverrideSQL = `SELECT price_minor
    FROM price_overrides
    WHERE item_id = $1 AND currency = $2;`

	upsertOverrideSQL = `INSERT INTO price_overrides (item_id, currency, price_minor, updated_at)
    VALUES ($1, $2, $3, now())
    ON CONFLICT (item_id, currency) DO UPDATE
    SET price_minor = EXCLUDED.price_minor,
        updated_at  = EXCLUDED.updated_at;`

	getQuoteSQL = `SELECT base_currency, rates, updated_at
    FROM currency_rates
    WHERE base_currency = $1;`

	listQuotesSQL = `SELECT base_currency, rates, updated_at
    FROM currency_rates
    ORDER BY base_currency;`

	getSettingsSQL = `SELECT supported_currencies, buffer_bps, cny_rounding_mode
    FROM pricing_settings
    WHERE id = 1;`

	getCouponSQL = `SELECT
        code,
        percent_off::TEXT,
        amount_off_minor,
        currency,
        valid_from,
        valid_to,
        max_redemptions,
        per_user_limit,
        applies_to,
        active
    FROM coupons
    WHERE code = $1;`

	countRedemptionsSQL = `SELECT
        COUNT(*),
        COUNT(*) FILTER (WHERE $2::TEXT <> '' AND user_id = $2::TEXT)
    FROM coupon_redemptions
    WHERE coupon_code = $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store implements every pricing collaborator over PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// a failed unlock is released with the session anyway
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// GetItem loads a ticket or offer.
func (s *Store) GetItem(ctx context.Context, id string) (pricing.Item, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return pricing.Item{}, false, err
	}

	var (
		item     pricing.Item
		kind     string
		quantity *int64
	)
	err = pool.QueryRow(ctx, getItemSQL, id).Scan(&item.ID, &kind, &item.BaseCurrency, &item.BasePriceMinor, &quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return pricing.Item{}, false, nil
	}
	if err != nil {
		return pricing.Item{}, false, fmt.Errorf("get item: %w", err)
	}
	item.Kind = pricing.ItemKind(kind)
	item.QuantityRemaining = quantity
	return item, true, nil
}

// GetOverride returns the override for (itemID, currency) if one exists.
func (s *Store) GetOverride(ctx context.Context, itemID, currency string) (int64, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, false, err
	}
	var price int64
	err = pool.QueryRow(ctx, getOverrideSQL, itemID, currency).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get override: %w", err)
	}
	return price, true, nil
}

// UpsertOverride writes an override outside of a price test transaction.
func (s *Store) UpsertOverride(ctx context.Context, override pricing.Override) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	return upsertOverride(ctx, pool, override)
}

func upsertOverride(ctx context.Context, q querier, override pricing.Override) error {
	if _, err := q.Exec(ctx, upsertOverrideSQL, override.ItemID, override.Currency, override.PriceMinor); err != nil {
		return fmt.Errorf("upsert override: %w", err)
	}
	return nil
}

// GetQuote loads the FX quote row for base.
func (s *Store) GetQuote(ctx context.Context, base string) (pricing.Quote, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return pricing.Quote{}, false, err
	}

	var row quoteRow
	err = pool.QueryRow(ctx, getQuoteSQL, base).Scan(&row.Base, &row.Rates, &row.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return pricing.Quote{}, false, nil
	}
	if err != nil {
		return pricing.Quote{}, false, fmt.Errorf("get quote: %w", err)
	}

	quote, err := row.toQuote()
	if err != nil {
		return pricing.Quote{}, false, err
	}
	return quote, true, nil
}

// ListQuotes returns every stored quote row.
func (s *Store) ListQuotes(ctx context.Context) ([]pricing.Quote, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listQuotesSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list quotes: %w", queryErr)
	}
	defer rows.Close()

	quotes := make([]pricing.Quote, 0)
	for rows.Next() {
		var row quoteRow
		if err := rows.Scan(&row.Base, &row.Rates, &row.UpdatedAt); err != nil {
			return nil, err
		}
		quote, convErr := row.toQuote()
		if convErr != nil {
			return nil, convErr
		}
		quotes = append(quotes, quote)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return quotes, nil
}

// GetSettings loads the singleton settings row.
func (s *Store) GetSettings(ctx context.Context) (pricing.Settings, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return pricing.Settings{}, false, err
	}

	var (
		settings pricing.Settings
		mode     string
	)
	err = pool.QueryRow(ctx, getSettingsSQL).Scan(&settings.SupportedCurrencies, &settings.BufferBps, &mode)
	if errors.Is(err, pgx.ErrNoRows) {
		return pricing.Settings{}, false, nil
	}
	if err != nil {
		return pricing.Settings{}, false, fmt.Errorf("get settings: %w", err)
	}
	settings.CNYRoundingMode = pricing.RoundingMode(mode)
	return settings, true, nil
}

// GetCoupon loads a coupon by canonical code.
func (s *Store) GetCoupon(ctx context.Context, code string) (pricing.Coupon, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return pricing.Coupon{}, false, err
	}

	var (
		coupon   pricing.Coupon
		percent  *string
		currency *string
	)
	err = pool.QueryRow(ctx, getCouponSQL, pricing.CanonicalCode(code)).Scan(
		&coupon.Code,
		&percent,
		&coupon.AmountOffMinor,
		&currency,
		&coupon.ValidFrom,
		&coupon.ValidTo,
		&coupon.MaxRedemptions,
		&coupon.PerUserLimit,
		&coupon.AppliesTo,
		&coupon.Active,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return pricing.Coupon{}, false, nil
	}
	if err != nil {
		return pricing.Coupon{}, false, fmt.Errorf("get coupon: %w", err)
	}

	if percent != nil {
		pct, convErr := decimal.NewFromString(*percent)
		if convErr != nil {
			return pricing.Coupon{}, false, fmt.Errorf("parse percent_off: %w", convErr)
		}
		coupon.PercentOff = &pct
	}
	if currency != nil {
		coupon.Currency = *currency
	}
	return coupon, true, nil
}

// CountRedemptions counts redemptions of code overall and by userID.
func (s *Store) CountRedemptions(ctx context.Context, code, userID string) (int64, int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, 0, err
	}
	var total, perUser int64
	if scanErr := pool.QueryRow(ctx, countRedemptionsSQL, pricing.CanonicalCode(code), userID).Scan(&total, &perUser); scanErr != nil {
		return 0, 0, fmt.Errorf("count redemptions: %w", scanErr)
	}
	return total, perUser, nil
}

var (
	_ pricing.ItemStore     = (*Store)(nil)
	_ pricing.RateStore     = (*Store)(nil)
	_ pricing.OverrideStore = (*Store)(nil)
	_ pricing.SettingsStore = (*Store)(nil)
	_ pricing.CouponStore   = (*Store)(nil)
	_ AdvisoryLocker        = (*Store)(nil)
)
