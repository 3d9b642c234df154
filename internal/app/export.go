package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/xuri/excelize/v2"

	"ticket-pricing/internal/pricing"
	"ticket-pricing/internal/service"
)

const testsSheet = "PriceTests"

var exportHeader = []string{"id", "item_id", "region", "variant", "currency", "price_minor_units", "price", "is_active", "started_at", "ended_at"}

// Export writes the price test history of an item as CSV, XLSX and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.XLSXPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv, --xlsx or --png must be provided")
	}
	opts.MaxRows = a.Config.ResolveMaxRows(opts.MaxRows)

	return a.withService(ctx, func(svc *service.Pricing) error {
		tests, err := svc.ListTests(ctx, opts.ItemID, opts.Region, true)
		if err != nil {
			return err
		}
		if len(tests) == 0 {
			a.Logger.Info().Str("item_id", opts.ItemID).Msg("no price tests found for export")
			return nil
		}

		// ListTests is newest first; exports read oldest first.
		sort.SliceStable(tests, func(i, j int) bool { return tests[i].StartedAt.Before(tests[j].StartedAt) })
		if len(tests) > opts.MaxRows {
			tests = tests[len(tests)-opts.MaxRows:]
		}
		a.Logger.Info().Str("item_id", opts.ItemID).Int("rows", len(tests)).Msg("exporting price tests")

		if opts.CSVPath != "" {
			if err := writeTestsCSV(opts.CSVPath, tests); err != nil {
				return err
			}
		}
		if opts.XLSXPath != "" {
			if err := writeTestsXLSX(opts.XLSXPath, tests); err != nil {
				return err
			}
		}
		if opts.PNGPath != "" {
			if err := writeTestsPNG(opts.PNGPath, tests); err != nil {
				return err
			}
		}
		return nil
	})
}

func testRecord(t pricing.PriceTest) []string {
	ended := ""
	if t.EndedAt != nil {
		ended = t.EndedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		t.ID,
		t.ItemID,
		t.Region,
		t.Variant,
		t.Currency,
		strconv.FormatInt(t.PriceMinor, 10),
		formatMinor(t.PriceMinor),
		strconv.FormatBool(t.IsActive),
		t.StartedAt.UTC().Format(time.RFC3339),
		ended,
	}
}

func writeTestsCSV(path string, tests []pricing.PriceTest) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(exportHeader); err != nil {
		return err
	}
	for _, t := range tests {
		if err := writer.Write(testRecord(t)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeTestsXLSX(path string, tests []pricing.PriceTest) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(testsSheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for col, header := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(testsSheet, cell, header); err != nil {
			return err
		}
		if err := f.SetCellStyle(testsSheet, cell, cell, headerStyle); err != nil {
			return err
		}
	}

	for row, t := range tests {
		record := testRecord(t)
		for col, value := range record {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return err
			}
			var v any = value
			// numeric cell
			if exportHeader[col] == "price_minor_units" {
				v = t.PriceMinor
			}
			if err := f.SetCellValue(testsSheet, cell, v); err != nil {
				return err
			}
		}
	}

	last, err := excelize.ColumnNumberToName(len(exportHeader))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(testsSheet, "A", last, 18); err != nil {
		return err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	return f.SaveAs(path)
}

func writeTestsPNG(path string, tests []pricing.PriceTest) error {
	series := make(map[string]*chart.TimeSeries)
	starts := make(map[time.Time]struct{})
	for _, t := range tests {
		s, ok := series[t.Variant]
		if !ok {
			s = &chart.TimeSeries{Name: "Variant " + t.Variant}
			series[t.Variant] = s
		}
		s.XValues = append(s.XValues, t.StartedAt)
		s.YValues = append(s.YValues, float64(t.PriceMinor)/pricing.MinorPerMajor)
		starts[t.StartedAt] = struct{}{}
	}
	if len(starts) < 2 {
		return errors.New("png export needs at least two price test batches")
	}

	if err := ensureDir(path); err != nil {
		return err
	}

	variants := make([]string, 0, len(series))
	for v := range series {
		variants = append(variants, v)
	}
	sort.Strings(variants)

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           fmt.Sprintf("Price (%s)", tests[len(tests)-1].Currency),
			ValueFormatter: priceFormatter,
		},
	}
	for _, v := range variants {
		graph.Series = append(graph.Series, *series[v])
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
