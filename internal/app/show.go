package app

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"ticket-pricing/internal/pricing"
	"ticket-pricing/internal/service"
)

// ShowTests prints the price test variants of an item as a table.
func (a *App) ShowTests(ctx context.Context, opts TestsOptions) error {
	return a.withService(ctx, func(svc *service.Pricing) error {
		tests, err := svc.ListTests(ctx, opts.ItemID, opts.Region, opts.All)
		if err != nil {
			return err
		}
		return writeTestsTable(a.Out, tests)
	})
}

func writeTestsTable(out io.Writer, tests []pricing.PriceTest) error {
	if len(tests) == 0 {
		_, err := fmt.Fprintln(out, "no price tests found")
		return err
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Started (UTC)\tRegion\tVariant\tPrice\tActive\tEnded (UTC)")

	for _, t := range tests {
		ended := "-"
		if t.EndedAt != nil {
			ended = t.EndedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s %s\t%t\t%s\n",
			t.StartedAt.UTC().Format(time.RFC3339),
			t.Region,
			t.Variant,
			formatMinor(t.PriceMinor),
			t.Currency,
			t.IsActive,
			ended,
		)
	}

	return writer.Flush()
}

func formatMinor(minor int64) string {
	return decimal.New(minor, 0).Div(decimal.NewFromInt(pricing.MinorPerMajor)).StringFixed(2)
}
