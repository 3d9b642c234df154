// Package httpapi exposes the pricing service over HTTP with gin.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ticket-pricing/internal/pricing"
	"ticket-pricing/internal/service"
	"ticket-pricing/internal/version"
)

// Pricing is the subset of the service the API serves.
type Pricing interface {
	ResolvePrice(ctx context.Context, itemID, currency string) (pricing.Result, error)
	ResolveBreakdown(ctx context.Context, itemID, currency string) (pricing.Breakdown, error)
	PreviewDiscount(ctx context.Context, req service.DiscountRequest) (pricing.Discount, error)
	QuoteWithCoupon(ctx context.Context, req service.CouponQuoteRequest) (service.CouponQuote, error)
	ProposeVariants(ctx context.Context, req pricing.ProposeRequest) (pricing.VariantSet, error)
	AdoptWinner(ctx context.Context, itemID, region string) (pricing.AdoptResult, error)
	ListTests(ctx context.Context, itemID, region string, includeEnded bool) ([]pricing.PriceTest, error)
}

// Handler holds route dependencies.
type Handler struct {
	svc    Pricing
	logger zerolog.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(svc Pricing, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.Version})
	})
	SetupRoutes(r.Group("/api/v1"), svc, logger)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	return r
}

// SetupRoutes registers the pricing routes on r.
func SetupRoutes(r *gin.RouterGroup, svc Pricing, logger zerolog.Logger) *Handler {
	h := &Handler{svc: svc, logger: logger.With().Str("component", "http").Logger()}

	prices := r.Group("/prices")
	{
		prices.GET("/:item", h.GetPrice)
		prices.GET("/:item/breakdown", h.GetBreakdown)
	}

	r.POST("/discounts/preview", h.PreviewDiscount)
	r.POST("/quotes", h.CreateQuote)

	// 价格测试管理
	admin := r.Group("/admin")
	{
		admin.POST("/price-tests", h.ProposeVariants)
		admin.POST("/price-tests/adopt", h.AdoptWinner)
		admin.GET("/price-tests", h.ListTests)
	}
	return h
}

// GetPrice handles GET /prices/:item?currency=.
func (h *Handler) GetPrice(c *gin.Context) {
	res, err := h.svc.ResolvePrice(c.Request.Context(), c.Param("item"), c.Query("currency"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetBreakdown handles GET /prices/:item/breakdown?currency=.
func (h *Handler) GetBreakdown(c *gin.Context) {
	trace, err := h.svc.ResolveBreakdown(c.Request.Context(), c.Param("item"), c.Query("currency"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, trace)
}

// PreviewDiscount handles POST /discounts/preview.
func (h *Handler) PreviewDiscount(c *gin.Context) {
	var req service.DiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	d, err := h.svc.PreviewDiscount(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// CreateQuote handles POST /quotes.
func (h *Handler) CreateQuote(c *gin.Context) {
	var req service.CouponQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	q, err := h.svc.QuoteWithCoupon(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

type proposeBody struct {
	ItemID              string  `json:"item_id"`
	Region              string  `json:"region"`
	Currency            string  `json:"currency"`
	BaseSuggestionMinor int64   `json:"base_suggestion_minor_units"`
	SpreadPct           float64 `json:"spread_pct"`
}

// ProposeVariants handles POST /admin/price-tests.
func (h *Handler) ProposeVariants(c *gin.Context) {
	var body proposeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	set, err := h.svc.ProposeVariants(c.Request.Context(), pricing.ProposeRequest{
		ItemID:              body.ItemID,
		Region:              body.Region,
		Currency:            body.Currency,
		BaseSuggestionMinor: body.BaseSuggestionMinor,
		SpreadPct:           body.SpreadPct,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, set)
}

type adoptBody struct {
	ItemID string `json:"item_id"`
	Region string `json:"region"`
}

// AdoptWinner handles POST /admin/price-tests/adopt.
func (h *Handler) AdoptWinner(c *gin.Context) {
	var body adoptBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	res, err := h.svc.AdoptWinner(c.Request.Context(), body.ItemID, body.Region)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ListTests handles GET /admin/price-tests?item_id=&region=&all=.
func (h *Handler) ListTests(c *gin.Context) {
	includeEnded := false
	if raw := c.Query("all"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "all must be a boolean"})
			return
		}
		includeEnded = v
	}
	tests, err := h.svc.ListTests(c.Request.Context(), c.Query("item_id"), c.Query("region"), includeEnded)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tests": tests})
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// StatusFor maps a service error onto an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, pricing.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pricing.ErrNoResults):
		return http.StatusConflict
	case errors.Is(err, pricing.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, pricing.ErrCouponInvalid), errors.Is(err, pricing.ErrCurrencyMismatch):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	l := logger.With().Str("component", "http").Logger()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if strings.HasPrefix(c.Request.URL.Path, "/healthz") {
			return
		}
		l.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request served")
	}
}
