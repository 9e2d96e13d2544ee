package gateway

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
)

// Gateway is the typed surface of the external brokerage.
type Gateway interface {
	SubmitOrder(ctx context.Context, req SubmitRequest) (string, error)
	CancelOrder(ctx context.Context, orderID string) error
	ReplaceOrder(ctx context.Context, req ReplaceRequest) error
	OrderDetail(ctx context.Context, orderID string) (*OrderDetail, error)
	TodayOrders(ctx context.Context, symbol string) ([]Order, error)
	HistoryOrders(ctx context.Context, symbol string, start, end time.Time) ([]Order, error)
	AccountBalances(ctx context.Context, currency string) ([]AccountBalance, error)
	StockPositions(ctx context.Context, symbols []string) ([]Position, error)
	Quotes(ctx context.Context, symbols []string) ([]Quote, error)
	OptionQuotes(ctx context.Context, symbols []string) ([]Quote, error)
	Depth(ctx context.Context, symbol string) (*Depth, error)
	StaticInfo(ctx context.Context, symbols []string) ([]StaticInfo, error)
}

// PushSource is implemented by gateways able to stream order changes.
// The returned stop func is safe to call more than once.
type PushSource interface {
	SubscribeOrderChanges(ctx context.Context) (<-chan PushEvent, func(), error)
}

// Capabilities is resolved once at startup.
type Capabilities struct {
	Push PushSource
}

var ErrNilGateway = errors.New("gateway is nil")

// CheckCapabilities inspects the concrete client once so callers never
// check for optional methods per call.
func CheckCapabilities(g Gateway) (Capabilities, error) {
	if g == nil {
		return Capabilities{}, ErrNilGateway
	}

	caps := Capabilities{}
	for cur := g; cur != nil; {
		if ps, ok := cur.(PushSource); ok {
			caps.Push = ps
			break
		}
		u, ok := cur.(interface{ Unwrap() Gateway })
		if !ok {
			break
		}
		cur = u.Unwrap()
	}

	logger.WithFields(map[string]interface{}{
		"component": "gateway",
		"push":      caps.Push != nil,
	}).Info("Gateway capabilities resolved")

	return caps, nil
}
