package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/rs/zerolog"

	"ticket-pricing/internal/alerting"
	"ticket-pricing/internal/config"
	"ticket-pricing/internal/scheduler"
	"ticket-pricing/internal/service"
	"ticket-pricing/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	// Out receives command results; logs go to the logger.
	Out io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Alerting.Enabled {
		return nil
	}
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.Timeout, a.Logger)
	}
	return alerting.NewLogNotifier(a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, errors.New("database.dsn 未配置")
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newService(store *storage.Store) *service.Pricing {
	opts := service.Options{
		Defaults:       a.Config.DefaultSettings(),
		MaxQuoteAge:    a.Config.Watch.MaxQuoteAge,
		LockKey:        a.Config.Watch.AdvisoryLockKey,
		NotifyAdoption: a.Config.Alerting.NotifyAdoption,
		Channels:       a.Config.Alerting.Channels,
	}
	stores := service.Stores{
		Items:     store,
		Overrides: store,
		Rates:     store,
		Quotes:    store,
		Settings:  store,
		Tests:     store,
		Coupons:   store,
	}
	return service.New(opts, stores, a.newNotifier(), a.Logger)
}

func (a *App) newScheduler(runOnStart bool) (*scheduler.Scheduler, error) {
	return scheduler.New(scheduler.Options{
		Interval:      a.Config.Watch.Interval,
		AlignToBucket: a.Config.Watch.AlignToBucket,
		StartupDelay:  a.Config.Watch.StartupDelay,
		RunOnStart:    runOnStart,
	}, a.Logger)
}

// withService opens the store, runs fn and closes the store.
func (a *App) withService(ctx context.Context, fn func(svc *service.Pricing) error) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(a.newService(store))
}

func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ExportOptions hold parameters for exporting price test history.
type ExportOptions struct {
	ItemID   string
	Region   string
	CSVPath  string
	XLSXPath string
	PNGPath  string
	MaxRows  int
}

// TestsOptions configure the tests listing command.
type TestsOptions struct {
	ItemID string
	Region string
	All    bool
}
