package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"ticket-pricing/internal/pricing"
)

func TestLoadDefaults(t *testing.T) {
	chdirTest(t, t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("默认配置加载失败: %v", err)
	}
	if cfg.Pricing.BufferBps != 150 {
		t.Fatalf("buffer_bps 默认值应为 150, 实际 %d", cfg.Pricing.BufferBps)
	}
	if cfg.Watch.MaxQuoteAge != 36*time.Hour {
		t.Fatalf("max_quote_age 默认值不正确: %s", cfg.Watch.MaxQuoteAge)
	}
	settings := cfg.DefaultSettings()
	if settings.CNYRoundingMode != pricing.RoundingYuan {
		t.Fatalf("cny_rounding_mode 默认值应为 yuan, 实际 %s", settings.CNYRoundingMode)
	}
	if settings.SupportedCurrencies[0] != "USD" {
		t.Fatalf("首个币种应为 USD: %v", settings.SupportedCurrencies)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	chdirTest(t, dir)
	path := filepath.Join(dir, "pricing.yaml")
	body := []byte(`
pricing:
  supported_currencies: [eur, usd, cny]
  buffer_bps: 200
  cny_rounding_mode: FEN99
http:
  addr: ":9090"
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PRICING_WATCH_MAX_QUOTE_AGE", "2h")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	settings := cfg.DefaultSettings()
	if settings.SupportedCurrencies[0] != "EUR" || len(settings.SupportedCurrencies) != 3 {
		t.Fatalf("币种列表不正确: %v", settings.SupportedCurrencies)
	}
	if settings.CNYRoundingMode != pricing.RoundingFen99 {
		t.Fatalf("cny_rounding_mode 应为 fen99, 实际 %s", settings.CNYRoundingMode)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Fatalf("http.addr 不正确: %s", cfg.HTTP.Addr)
	}
	if cfg.Watch.MaxQuoteAge != 2*time.Hour {
		t.Fatalf("环境变量应覆盖 max_quote_age, 实际 %s", cfg.Watch.MaxQuoteAge)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Pricing: PricingConfig{SupportedCurrencies: []string{"USD"}, BufferBps: 0, CNYRoundingMode: "yuan"},
			Watch:   WatchConfig{Interval: time.Minute, MaxQuoteAge: time.Hour},
			Export:  ExportConfig{MaxRows: 10},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"negative buffer", func(c *Config) { c.Pricing.BufferBps = -1 }},
		{"bad rounding mode", func(c *Config) { c.Pricing.CNYRoundingMode = "jiao" }},
		{"no currencies", func(c *Config) { c.Pricing.SupportedCurrencies = nil }},
		{"bad currency", func(c *Config) { c.Pricing.SupportedCurrencies = []string{"DOLLAR"} }},
		{"zero interval", func(c *Config) { c.Watch.Interval = 0 }},
		{"bad gin mode", func(c *Config) { c.HTTP.Mode = "prod" }},
		{"telegram without token", func(c *Config) { c.Alerting.Telegram.Enabled = true }},
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("基础配置应通过校验: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("应返回校验错误")
			}
		})
	}
}

// chdirTest changes the working directory for the duration of the test,
// mirroring testing.T.Chdir (Go 1.24+) for older toolchains.
func chdirTest(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir %s: %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore cwd %s: %v", prev, err)
		}
	})
}
