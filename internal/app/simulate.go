package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ticket-pricing/internal/alerting"
)

// SimulateAlert 发送一条样例告警, 用于验证告警通道配置。
func (a *App) SimulateAlert(ctx context.Context, event string) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("未配置任何告警通道")
	}

	note, err := sampleNotification(alerting.Event(event), time.Now().UTC(), a.Config.Watch.MaxQuoteAge)
	if err != nil {
		return err
	}
	note.Channels = a.Config.Alerting.Channels
	note.AdditionalMsg = "(simulated)"

	if err := notifier.Notify(ctx, note); err != nil {
		return fmt.Errorf("dispatch simulated alert: %w", err)
	}
	a.Logger.Info().Str("event", event).Msg("模拟告警已发送")
	return nil
}

func sampleNotification(event alerting.Event, now time.Time, maxAge time.Duration) (alerting.Notification, error) {
	switch event {
	case alerting.EventWinnerAdopted:
		return alerting.Notification{
			Event:          event,
			At:             now,
			ItemID:         "sample-item",
			Region:         "US",
			Variant:        "B",
			Currency:       "USD",
			PriceMinor:     1999,
			ConversionRate: decimal.RequireFromString("0.042"),
			Deactivated:    3,
		}, nil
	case alerting.EventStaleQuotes:
		age := maxAge + time.Hour
		return alerting.Notification{
			Event:  event,
			At:     now,
			MaxAge: maxAge,
			Stale:  []alerting.StaleQuote{{Base: "USD", UpdatedAt: now.Add(-age), Age: age}},
		}, nil
	default:
		return alerting.Notification{}, fmt.Errorf("unknown event %q", event)
	}
}
