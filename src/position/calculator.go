// Package position derives how much of a symbol can still be traded once
// in-flight orders are accounted for.
package position

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"tradeexecutor/src/gateway"
	"tradeexecutor/src/orderstatus"
)

type Type string

const (
	Long  Type = "LONG"
	Short Type = "SHORT"
	None  Type = "NONE"
)

// Snapshot is recomputed on every call.
type Snapshot struct {
	Symbol            string
	ActualQuantity    decimal.Decimal
	PendingQuantity   decimal.Decimal
	AvailableQuantity decimal.Decimal
	PositionType      Type
}

type PositionSource interface {
	StockPositions(ctx context.Context, symbols []string) ([]gateway.Position, error)
}

type OrderSource interface {
	Get(ctx context.Context) ([]gateway.Order, error)
}

type Calculator struct {
	positions PositionSource
	orders    OrderSource
	logger    *logrus.Entry
}

func NewCalculator(positions PositionSource, orders OrderSource, logger *logrus.Entry) *Calculator {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Calculator{
		positions: positions,
		orders:    orders,
		logger:    logger.WithField("component", "position_calculator"),
	}
}

// CalculateAvailablePosition never fails: any lookup error yields an
// all-zero snapshot, which callers read as nothing available.
func (c *Calculator) CalculateAvailablePosition(ctx context.Context, symbol string) Snapshot {
	empty := Snapshot{
		Symbol:            symbol,
		ActualQuantity:    decimal.Zero,
		PendingQuantity:   decimal.Zero,
		AvailableQuantity: decimal.Zero,
		PositionType:      None,
	}

	positions, err := c.positions.StockPositions(ctx, []string{symbol})
	if err != nil {
		c.logger.WithError(err).WithField("symbol", symbol).Error("Position query failed")
		return empty
	}

	actual := decimal.Zero
	for _, p := range positions {
		if strings.EqualFold(p.Symbol, symbol) {
			actual = actual.Add(p.Quantity)
		}
	}

	orders, err := c.orders.Get(ctx)
	if err != nil {
		c.logger.WithError(err).WithField("symbol", symbol).Error("Open orders query failed")
		return empty
	}

	pendingBuy, pendingSell := pendingBySide(orders, symbol)

	snap := Snapshot{
		Symbol:          symbol,
		ActualQuantity:  actual,
		PendingQuantity: decimal.Zero,
		PositionType:    None,
	}

	switch {
	case actual.IsPositive():
		snap.PositionType = Long
		snap.PendingQuantity = pendingSell
		snap.AvailableQuantity = floorZero(actual.Sub(pendingSell))
	case actual.IsNegative():
		snap.PositionType = Short
		snap.PendingQuantity = pendingBuy
		snap.AvailableQuantity = floorZero(actual.Abs().Sub(pendingBuy))
	default:
		snap.AvailableQuantity = decimal.Zero
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol":    symbol,
		"type":      snap.PositionType,
		"actual":    snap.ActualQuantity.String(),
		"pending":   snap.PendingQuantity.String(),
		"available": snap.AvailableQuantity.String(),
	}).Debug("Available position calculated")

	return snap
}

// pendingBySide sums unfilled quantity of still-working orders for symbol.
// Sells consume a long; buys consume a short.
func pendingBySide(orders []gateway.Order, symbol string) (buy, sell decimal.Decimal) {
	buy, sell = decimal.Zero, decimal.Zero
	for _, o := range orders {
		if !strings.EqualFold(o.Symbol, symbol) || !orderstatus.IsPending(o.Status) {
			continue
		}
		switch strings.ToLower(o.Side) {
		case "buy":
			buy = buy.Add(o.Unfilled())
		case "sell":
			sell = sell.Add(o.Unfilled())
		}
	}
	return buy, sell
}

func floorZero(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}
