package service

import (
	"context"
	"fmt"
	"time"

	"ticket-pricing/internal/alerting"
	"ticket-pricing/internal/pricing"
	"ticket-pricing/internal/scheduler"
)

// QuoteStatus is the freshness of one stored quote row.
type QuoteStatus struct {
	Base      string        `json:"base_currency"`
	UpdatedAt time.Time     `json:"updated_at"`
	Age       time.Duration `json:"age"`
	Stale     bool          `json:"stale"`
}

// FreshnessReport summarises quote ages at a point in time.
type FreshnessReport struct {
	CheckedAt time.Time     `json:"checked_at"`
	MaxAge    time.Duration `json:"max_age"`
	Quotes    []QuoteStatus `json:"quotes"`
	Stale     int           `json:"stale"`
}

// CheckRateFreshness flags quote rows older than the configured max age.
// It only reads; refreshing rates happens elsewhere.
func (s *Pricing) CheckRateFreshness(ctx context.Context) (FreshnessReport, error) {
	if s.stores.Quotes == nil {
		return FreshnessReport{}, fmt.Errorf("quote store not configured")
	}
	quotes, err := s.stores.Quotes.ListQuotes(ctx)
	if err != nil {
		return FreshnessReport{}, fmt.Errorf("list quotes: %w", err)
	}

	now := s.now()
	report := FreshnessReport{
		CheckedAt: now,
		MaxAge:    s.opts.MaxQuoteAge,
		Quotes:    make([]QuoteStatus, 0, len(quotes)),
	}
	for _, q := range quotes {
		age := pricing.QuoteAge(q, now)
		stale := s.opts.MaxQuoteAge > 0 && age > s.opts.MaxQuoteAge
		if stale {
			report.Stale++
		}
		report.Quotes = append(report.Quotes, QuoteStatus{
			Base:      q.Base,
			UpdatedAt: q.UpdatedAt,
			Age:       age,
			Stale:     stale,
		})
	}
	return report, nil
}

// RunWatch drives WatchTick from the scheduler until ctx ends.
func (s *Pricing) RunWatch(ctx context.Context, sched *scheduler.Scheduler) error {
	if sched == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return sched.Run(ctx, s.WatchTick)
}

// WatchTick 执行一次报价新鲜度检查。多实例部署时只有拿到 advisory lock 的实例执行。
func (s *Pricing) WatchTick(ctx context.Context, bucket time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("bucket", bucket).Msg("skip bucket because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	report, err := s.CheckRateFreshness(ctx)
	if err != nil {
		return err
	}

	s.logger.Info().Time("bucket", bucket).
		Int("quotes", len(report.Quotes)).
		Int("stale", report.Stale).
		Msg("quote freshness checked")

	if report.Stale == 0 || s.notifier == nil {
		return nil
	}

	note := alerting.Notification{
		Event:    alerting.EventStaleQuotes,
		At:       report.CheckedAt,
		MaxAge:   report.MaxAge,
		Channels: s.opts.Channels,
	}
	for _, q := range report.Quotes {
		if q.Stale {
			note.Stale = append(note.Stale, alerting.StaleQuote{Base: q.Base, UpdatedAt: q.UpdatedAt, Age: q.Age})
		}
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to dispatch stale quote alert")
	}
	return nil
}

func (s *Pricing) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.opts.LockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.opts.LockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
