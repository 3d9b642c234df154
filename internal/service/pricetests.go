package service

import (
	"context"
	"fmt"
	"strings"

	"ticket-pricing/internal/alerting"
	"ticket-pricing/internal/pricing"
)

// ProposeVariants starts a new A/B/C batch for an existing item. An empty
// currency defaults to the item's base currency.
func (s *Pricing) ProposeVariants(ctx context.Context, req pricing.ProposeRequest) (pricing.VariantSet, error) {
	if s.tests == nil {
		return pricing.VariantSet{}, fmt.Errorf("price test store not configured")
	}

	req.ItemID = strings.TrimSpace(req.ItemID)
	if req.ItemID == "" {
		return pricing.VariantSet{}, fmt.Errorf("%w: item id is required", pricing.ErrInvalidInput)
	}
	item, ok, err := s.stores.Items.GetItem(ctx, req.ItemID)
	if err != nil {
		return pricing.VariantSet{}, fmt.Errorf("load item %s: %w", req.ItemID, err)
	}
	if !ok {
		return pricing.VariantSet{}, fmt.Errorf("%w: item %s", pricing.ErrNotFound, req.ItemID)
	}

	req.Currency = pricing.NormalizeCode(req.Currency)
	if req.Currency == "" {
		req.Currency = pricing.NormalizeCode(item.BaseCurrency)
	}
	settings, err := s.Settings(ctx)
	if err != nil {
		return pricing.VariantSet{}, err
	}
	if len(settings.SupportedCurrencies) > 0 && !settings.Supports(req.Currency) {
		return pricing.VariantSet{}, fmt.Errorf("%w: currency %s is not supported", pricing.ErrInvalidInput, req.Currency)
	}

	set, err := s.tests.ProposeVariants(ctx, req)
	if err != nil {
		return pricing.VariantSet{}, err
	}

	s.logger.Info().
		Str("item_id", set.Mid.ItemID).
		Str("region", set.Mid.Region).
		Str("currency", set.Mid.Currency).
		Int64("low", set.Low.PriceMinor).
		Int64("mid", set.Mid.PriceMinor).
		Int64("high", set.High.PriceMinor).
		Int64("deactivated", set.Deactivated).
		Msg("price test proposed")
	return set, nil
}

// AdoptWinner promotes the best variant to a permanent override and, when
// configured, announces it.
func (s *Pricing) AdoptWinner(ctx context.Context, itemID, region string) (pricing.AdoptResult, error) {
	if s.tests == nil {
		return pricing.AdoptResult{}, fmt.Errorf("price test store not configured")
	}

	result, err := s.tests.AdoptWinner(ctx, itemID, region)
	if err != nil {
		return pricing.AdoptResult{}, err
	}

	w := result.Winner
	s.logger.Info().
		Str("item_id", w.ItemID).
		Str("region", w.Region).
		Str("variant", w.Variant).
		Int64("price_minor", w.PriceMinor).
		Str("conversion_rate", w.ConversionRate.String()).
		Int64("deactivated", result.Deactivated).
		Msg("price test winner adopted")

	if s.opts.NotifyAdoption && s.notifier != nil {
		note := alerting.Notification{
			Event:          alerting.EventWinnerAdopted,
			At:             s.now(),
			ItemID:         w.ItemID,
			Region:         w.Region,
			Variant:        w.Variant,
			Currency:       w.Currency,
			PriceMinor:     w.PriceMinor,
			ConversionRate: w.ConversionRate,
			Deactivated:    result.Deactivated,
			Channels:       s.opts.Channels,
		}
		if err := s.notifier.Notify(ctx, note); err != nil {
			s.logger.Error().Err(err).Str("item_id", w.ItemID).Msg("failed to dispatch adoption notice")
		}
	}
	return result, nil
}

// ListTests lists variants of an item, optionally per region.
func (s *Pricing) ListTests(ctx context.Context, itemID, region string, includeEnded bool) ([]pricing.PriceTest, error) {
	if s.tests == nil {
		return nil, fmt.Errorf("price test store not configured")
	}
	if strings.TrimSpace(itemID) == "" {
		return nil, fmt.Errorf("%w: item id is required", pricing.ErrInvalidInput)
	}
	return s.tests.ListTests(ctx, itemID, region, includeEnded)
}
