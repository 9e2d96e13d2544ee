package pricing

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"tradeexecutor/src/gateway"
	"tradeexecutor/src/market"
	"tradeexecutor/src/metrics"
)

// OptionMeta carries the secondary provider's identifiers for an option.
type OptionMeta struct {
	OptionID          string
	UnderlyingStockID string
	MarketType        int
}

// SecondaryProvider is the scraped quote source used after the broker.
type SecondaryProvider interface {
	OptionDetail(ctx context.Context, optionID, underlyingStockID string, marketType int) (*gateway.Quote, error)
	QuoteBySymbol(ctx context.Context, symbol string) (*gateway.Quote, error)
}

// Result describes the resolved price and the step that produced it.
type Result struct {
	Price  decimal.Decimal
	Bid    decimal.Decimal
	Ask    decimal.Decimal
	Source string
}

var two = decimal.NewFromInt(2)

// Cascade resolves a tradable price by walking its sources in a fixed
// order and caching the first positive answer.
type Cascade struct {
	gw        gateway.Gateway
	secondary SecondaryProvider
	cache     *Cache
	logger    *logrus.Entry
}

func NewCascade(gw gateway.Gateway, secondary SecondaryProvider, cache *Cache, logger *logrus.Entry) *Cascade {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if cache == nil {
		cache = NewCache(Config{})
	}
	return &Cascade{
		gw:        gw,
		secondary: secondary,
		cache:     cache,
		logger:    logger.WithField("component", "price_cascade"),
	}
}

func (c *Cascade) Cache() *Cache { return c.cache }

// GetPrice returns the current price for symbol. ok is false only when
// every source failed; callers then skip price validation.
func (c *Cascade) GetPrice(ctx context.Context, symbol string, meta *OptionMeta) (decimal.Decimal, bool) {
	res, ok := c.Resolve(ctx, symbol, meta)
	if !ok {
		return decimal.Zero, false
	}
	return res.Price, true
}

func (c *Cascade) Resolve(ctx context.Context, symbol string, meta *OptionMeta) (Result, bool) {
	log := c.logger.WithField("symbol", symbol)

	if e, ok := c.cache.Get(symbol); ok {
		metrics.PriceLookups.WithLabelValues("cache").Inc()
		return Result{Price: e.Price, Bid: e.Bid, Ask: e.Ask, Source: "cache(" + string(e.Source) + ")"}, true
	}

	steps := []struct {
		name  string
		src   Source
		fetch func(context.Context) (*gateway.Quote, error)
	}{
		{"primary_quote", SourcePrimary, func(ctx context.Context) (*gateway.Quote, error) {
			return c.primaryQuote(ctx, symbol)
		}},
		{"primary_depth", SourcePrimary, func(ctx context.Context) (*gateway.Quote, error) {
			return c.depthQuote(ctx, symbol)
		}},
		{"secondary_detail", SourceSecondary, func(ctx context.Context) (*gateway.Quote, error) {
			return c.secondaryDetail(ctx, meta)
		}},
		{"primary_generic", SourcePrimary, func(ctx context.Context) (*gateway.Quote, error) {
			return firstQuote(c.gw.Quotes(ctx, []string{symbol}))
		}},
		{"secondary_symbol", SourceSecondary, func(ctx context.Context) (*gateway.Quote, error) {
			if c.secondary == nil {
				return nil, errSkipped
			}
			return c.secondary.QuoteBySymbol(ctx, symbol)
		}},
	}

	for _, step := range steps {
		if ctx.Err() != nil {
			log.WithError(ctx.Err()).Warn("Price lookup aborted")
			return Result{}, false
		}

		q, err := step.fetch(ctx)
		if err != nil {
			if !errors.Is(err, errSkipped) {
				log.WithError(err).WithField("source", step.name).Warn("Price source failed, trying next")
			}
			continue
		}
		if q == nil {
			continue
		}

		price, label := pickPrice(*q)
		if !price.IsPositive() {
			log.WithField("source", step.name).Debug("Price source returned no positive price")
			continue
		}

		mid := price
		if q.Bid.IsPositive() && q.Ask.IsPositive() {
			mid = q.Bid.Add(q.Ask).Div(two)
		}
		c.cache.Set(symbol, Entry{
			Price:           price,
			Bid:             q.Bid,
			Ask:             q.Ask,
			Mid:             mid,
			UnderlyingPrice: q.UnderlyingPrice,
			Source:          step.src,
		})

		metrics.PriceLookups.WithLabelValues(step.name).Inc()
		log.WithFields(map[string]interface{}{
			"source": step.name + "-" + label,
			"price":  price.String(),
		}).Debug("Price resolved")

		return Result{Price: price, Bid: q.Bid, Ask: q.Ask, Source: step.name + "-" + label}, true
	}

	metrics.PriceLookups.WithLabelValues("none").Inc()
	log.Warn("No price source returned a positive price")
	return Result{}, false
}

var errSkipped = errors.New("price source not applicable")

// pickPrice prefers last trade, then bid/ask midpoint, then ask, then bid.
func pickPrice(q gateway.Quote) (decimal.Decimal, string) {
	switch {
	case q.Last.IsPositive():
		return q.Last, "last"
	case q.Bid.IsPositive() && q.Ask.IsPositive():
		return q.Bid.Add(q.Ask).Div(two), "mid"
	case q.Ask.IsPositive():
		return q.Ask, "ask"
	case q.Bid.IsPositive():
		return q.Bid, "bid"
	default:
		return decimal.Zero, "none"
	}
}

func (c *Cascade) primaryQuote(ctx context.Context, symbol string) (*gateway.Quote, error) {
	if market.IsOption(symbol) {
		return firstQuote(c.gw.OptionQuotes(ctx, []string{symbol}))
	}
	return firstQuote(c.gw.Quotes(ctx, []string{symbol}))
}

func (c *Cascade) depthQuote(ctx context.Context, symbol string) (*gateway.Quote, error) {
	d, err := c.gw.Depth(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if d == nil || len(d.Bids) == 0 || len(d.Asks) == 0 {
		return nil, nil
	}

	bid, ask := d.Bids[0].Price, d.Asks[0].Price
	if !bid.IsPositive() || !ask.IsPositive() {
		return nil, nil
	}
	// Depth only yields a midpoint.
	return &gateway.Quote{Symbol: symbol, Bid: bid, Ask: ask}, nil
}

func (c *Cascade) secondaryDetail(ctx context.Context, meta *OptionMeta) (*gateway.Quote, error) {
	if c.secondary == nil || meta == nil || meta.OptionID == "" || meta.UnderlyingStockID == "" {
		return nil, errSkipped
	}
	return c.secondary.OptionDetail(ctx, meta.OptionID, meta.UnderlyingStockID, meta.MarketType)
}

func firstQuote(quotes []gateway.Quote, err error) (*gateway.Quote, error) {
	if err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		return nil, nil
	}
	q := quotes[0]
	return &q, nil
}
