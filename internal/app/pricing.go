package app

import (
	"context"

	"ticket-pricing/internal/pricing"
	"ticket-pricing/internal/service"
)

// Resolve prints the localized price of an item.
func (a *App) Resolve(ctx context.Context, itemID, currency string) error {
	return a.withService(ctx, func(svc *service.Pricing) error {
		res, err := svc.ResolvePrice(ctx, itemID, currency)
		if err != nil {
			return err
		}
		return a.printJSON(res)
	})
}

// Breakdown prints every intermediate value of a resolution.
func (a *App) Breakdown(ctx context.Context, itemID, currency string) error {
	return a.withService(ctx, func(svc *service.Pricing) error {
		trace, err := svc.ResolveBreakdown(ctx, itemID, currency)
		if err != nil {
			return err
		}
		return a.printJSON(trace)
	})
}

// Discount previews a coupon shape. Without an item id no database is needed.
func (a *App) Discount(ctx context.Context, req service.DiscountRequest) error {
	if req.ItemID == "" {
		svc := service.New(service.Options{Defaults: a.Config.DefaultSettings()}, service.Stores{}, nil, a.Logger)
		d, err := svc.PreviewDiscount(ctx, req)
		if err != nil {
			return err
		}
		return a.printJSON(d)
	}
	return a.withService(ctx, func(svc *service.Pricing) error {
		d, err := svc.PreviewDiscount(ctx, req)
		if err != nil {
			return err
		}
		return a.printJSON(d)
	})
}

// Quote prices an item with a coupon code for a user.
func (a *App) Quote(ctx context.Context, req service.CouponQuoteRequest) error {
	return a.withService(ctx, func(svc *service.Pricing) error {
		q, err := svc.QuoteWithCoupon(ctx, req)
		if err != nil {
			return err
		}
		return a.printJSON(q)
	})
}

// Propose starts a new price test batch.
func (a *App) Propose(ctx context.Context, req pricing.ProposeRequest) error {
	return a.withService(ctx, func(svc *service.Pricing) error {
		set, err := svc.ProposeVariants(ctx, req)
		if err != nil {
			return err
		}
		return a.printJSON(set)
	})
}

// Adopt promotes the winning variant of a price test.
func (a *App) Adopt(ctx context.Context, itemID, region string) error {
	return a.withService(ctx, func(svc *service.Pricing) error {
		res, err := svc.AdoptWinner(ctx, itemID, region)
		if err != nil {
			return err
		}
		return a.printJSON(res)
	})
}
