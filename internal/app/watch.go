package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"ticket-pricing/internal/service"
)

// WatchRates runs the quote freshness watch until SIGINT/SIGTERM.
func (a *App) WatchRates(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched, err := a.newScheduler(true)
	if err != nil {
		return err
	}

	return a.withService(ctx, func(svc *service.Pricing) error {
		a.Logger.Info().
			Dur("interval", a.Config.Watch.Interval).
			Dur("max_quote_age", a.Config.Watch.MaxQuoteAge).
			Msg("starting quote freshness watch")

		err := svc.RunWatch(ctx, sched)
		if err != nil && !errors.Is(err, context.Canceled) {
			a.Logger.Error().Err(err).Msg("quote watch terminated with error")
			return err
		}
		a.Logger.Info().Msg("quote watch stopped")
		return nil
	})
}

// CheckRates prints a one-off freshness report.
func (a *App) CheckRates(ctx context.Context) error {
	return a.withService(ctx, func(svc *service.Pricing) error {
		report, err := svc.CheckRateFreshness(ctx)
		if err != nil {
			return err
		}
		return a.printJSON(report)
	})
}
