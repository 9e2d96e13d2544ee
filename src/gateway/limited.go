package gateway

import (
	"context"
	"time"
)

// Limited routes every Gateway method through a RateLimiter.
type Limited struct {
	next    Gateway
	limiter *RateLimiter
}

var _ Gateway = (*Limited)(nil)

func NewLimited(next Gateway, limiter *RateLimiter) *Limited {
	return &Limited{next: next, limiter: limiter}
}

// Unwrap returns the underlying client, used for capability detection.
func (g *Limited) Unwrap() Gateway { return g.next }

func (g *Limited) SubmitOrder(ctx context.Context, req SubmitRequest) (string, error) {
	var id string
	err := g.limiter.Do(ctx, func(ctx context.Context) error {
		var err error
		id, err = g.next.SubmitOrder(ctx, req)
		return err
	})
	return id, err
}

func (g *Limited) CancelOrder(ctx context.Context, orderID string) error {
	return g.limiter.Do(ctx, func(ctx context.Context) error {
		return g.next.CancelOrder(ctx, orderID)
	})
}

func (g *Limited) ReplaceOrder(ctx context.Context, req ReplaceRequest) error {
	return g.limiter.Do(ctx, func(ctx context.Context) error {
		return g.next.ReplaceOrder(ctx, req)
	})
}

func (g *Limited) OrderDetail(ctx context.Context, orderID string) (*OrderDetail, error) {
	var out *OrderDetail
	err := g.limiter.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.next.OrderDetail(ctx, orderID)
		return err
	})
	return out, err
}

func (g *Limited) TodayOrders(ctx context.Context, symbol string) ([]Order, error) {
	var out []Order
	err := g.limiter.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.next.TodayOrders(ctx, symbol)
		return err
	})
	return out, err
}

func (g *Limited) HistoryOrders(ctx context.Context, symbol string, start, end time.Time) ([]Order, error) {
	var out []Order
	err := g.limiter.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.next.HistoryOrders(ctx, symbol, start, end)
		return err
	})
	return out, err
}

func (g *Limited) AccountBalances(ctx context.Context, currency string) ([]AccountBalance, error) {
	var out []AccountBalance
	err := g.limiter.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.next.AccountBalances(ctx, currency)
		return err
	})
	return out, err
}

func (g *Limited) StockPositions(ctx context.Context, symbols []string) ([]Position, error) {
	var out []Position
	err := g.limiter.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.next.StockPositions(ctx, symbols)
		return err
	})
	return out, err
}

func (g *Limited) Quotes(ctx context.Context, symbols []string) ([]Quote, error) {
	var out []Quote
	err := g.limiter.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.next.Quotes(ctx, symbols)
		return err
	})
	return out, err
}

func (g *Limited) OptionQuotes(ctx context.Context, symbols []string) ([]Quote, error) {
	var out []Quote
	err := g.limiter.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.next.OptionQuotes(ctx, symbols)
		return err
	})
	return out, err
}

func (g *Limited) Depth(ctx context.Context, symbol string) (*Depth, error) {
	var out *Depth
	err := g.limiter.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.next.Depth(ctx, symbol)
		return err
	})
	return out, err
}

func (g *Limited) StaticInfo(ctx context.Context, symbols []string) ([]StaticInfo, error) {
	var out []StaticInfo
	err := g.limiter.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.next.StaticInfo(ctx, symbols)
		return err
	})
	return out, err
}
