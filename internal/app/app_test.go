package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"ticket-pricing/internal/alerting"
	"ticket-pricing/internal/config"
	"ticket-pricing/internal/pricing"
	"ticket-pricing/internal/service"
)

func sampleTests() []pricing.PriceTest {
	first := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(7 * 24 * time.Hour)
	ended := second
	return []pricing.PriceTest{
		{ID: "t1", ItemID: "sku-1", Region: "US", Variant: "A", Currency: "USD", PriceMinor: 1799, StartedAt: first, EndedAt: &ended},
		{ID: "t2", ItemID: "sku-1", Region: "US", Variant: "B", Currency: "USD", PriceMinor: 1999, StartedAt: first, EndedAt: &ended},
		{ID: "t3", ItemID: "sku-1", Region: "US", Variant: "A", Currency: "USD", PriceMinor: 1899, IsActive: true, StartedAt: second},
		{ID: "t4", ItemID: "sku-1", Region: "US", Variant: "B", Currency: "USD", PriceMinor: 2099, IsActive: true, StartedAt: second},
	}
}

func TestWriteTestsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "tests.csv")
	if err := writeTestsCSV(path, sampleTests()); err != nil {
		t.Fatalf("写入 CSV 失败: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 5 {
		t.Fatalf("应有 1 行表头 + 4 行数据, 实际 %d", len(records))
	}
	if records[1][6] != "17.99" || records[1][9] == "" {
		t.Fatalf("首行数据不正确: %v", records[1])
	}
	if records[4][9] != "" {
		t.Fatalf("进行中的测试不应有 ended_at: %v", records[4])
	}
}

func TestWriteTestsXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tests.xlsx")
	if err := writeTestsXLSX(path, sampleTests()); err != nil {
		t.Fatalf("写入 XLSX 失败: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if sheets := f.GetSheetList(); len(sheets) != 1 || sheets[0] != testsSheet {
		t.Fatalf("工作表不正确: %v", sheets)
	}
	header, err := f.GetCellValue(testsSheet, "D1")
	if err != nil || header != "variant" {
		t.Fatalf("表头不正确: %q (%v)", header, err)
	}
	price, err := f.GetCellValue(testsSheet, "F3")
	if err != nil || price != "1999" {
		t.Fatalf("价格单元格不正确: %q (%v)", price, err)
	}
}

func TestWriteTestsPNG(t *testing.T) {
	dir := t.TempDir()

	if err := writeTestsPNG(filepath.Join(dir, "single.png"), sampleTests()[:2]); err == nil {
		t.Fatal("只有一个批次时应报错")
	}

	path := filepath.Join(dir, "tests.png")
	if err := writeTestsPNG(path, sampleTests()); err != nil {
		t.Fatalf("渲染 PNG 失败: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		t.Fatalf("PNG 文件应非空: %v", err)
	}
}

func TestWriteTestsTable(t *testing.T) {
	var buf bytes.Buffer
	if err := writeTestsTable(&buf, sampleTests()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "20.99 USD") || !strings.Contains(out, "Variant") {
		t.Fatalf("表格输出不正确:\n%s", out)
	}

	buf.Reset()
	if err := writeTestsTable(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "no price tests found") {
		t.Fatalf("空列表提示不正确: %q", buf.String())
	}
}

func TestDiscountWithoutDatabase(t *testing.T) {
	var buf bytes.Buffer
	a := &App{Config: testConfig(), Logger: zerolog.Nop(), Out: &buf}
	price := int64(1999)
	amount := int64(500)

	err := a.Discount(context.Background(), service.DiscountRequest{
		PriceMinor: &price,
		Currency:   "USD",
		Coupon:     pricing.Coupon{Code: "FIVE", AmountOffMinor: &amount, Currency: "USD"},
	})
	if err != nil {
		t.Fatalf("无需数据库的折扣预览应成功: %v", err)
	}
	if !strings.Contains(buf.String(), `"total_minor_units": 1499`) {
		t.Fatalf("输出不正确: %s", buf.String())
	}
}

func TestCommandsRequireDatabase(t *testing.T) {
	a := &App{Config: testConfig(), Logger: zerolog.Nop(), Out: &bytes.Buffer{}}
	if err := a.Resolve(context.Background(), "sku-1", "USD"); err == nil || !strings.Contains(err.Error(), "database.dsn") {
		t.Fatalf("未配置数据库时应报错, 实际 %v", err)
	}
}

func TestSampleNotification(t *testing.T) {
	now := time.Now().UTC()
	note, err := sampleNotification(alerting.EventStaleQuotes, now, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(note.Stale) != 1 || note.Stale[0].Age <= time.Hour {
		t.Fatalf("样例报价应已过期: %#v", note.Stale)
	}
	if _, err := sampleNotification("bogus", now, time.Hour); err == nil {
		t.Fatal("未知事件应报错")
	}
}

func TestSimulateAlertRequiresAlerting(t *testing.T) {
	a := &App{Config: testConfig(), Logger: zerolog.Nop(), Out: &bytes.Buffer{}}
	if err := a.SimulateAlert(context.Background(), string(alerting.EventWinnerAdopted)); err == nil {
		t.Fatal("alerting 未启用时应报错")
	}

	a.Config.Alerting.Enabled = true
	if err := a.SimulateAlert(context.Background(), string(alerting.EventWinnerAdopted)); err != nil {
		t.Fatalf("日志通道应发送成功: %v", err)
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Pricing: config.PricingConfig{SupportedCurrencies: []string{"USD", "EUR"}, BufferBps: 150, CNYRoundingMode: "yuan"},
		Watch:   config.WatchConfig{Interval: time.Minute, MaxQuoteAge: time.Hour},
		Export:  config.ExportConfig{MaxRows: 100},
	}
}
