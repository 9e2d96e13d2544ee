package connectors

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/longportapp/openapi-go/config"
	"github.com/longportapp/openapi-go/quote"
	"github.com/longportapp/openapi-go/trade"
	logger "github.com/sirupsen/logrus"

	"tradeexecutor/src/gateway"
	"tradeexecutor/src/mapper"
)

const longportPrivateTopic = "private"

// LongportClient implements gateway.Gateway and gateway.PushSource on top of
// the Longport OpenAPI SDK.
type LongportClient struct {
	tradeCtx *trade.TradeContext
	quoteCtx *quote.QuoteContext

	mu         sync.Mutex
	subs       map[uint64]chan gateway.PushEvent
	nextSub    uint64
	subscribed bool
}

var (
	_ gateway.Gateway    = (*LongportClient)(nil)
	_ gateway.PushSource = (*LongportClient)(nil)
)

func NewLongportClient(appKey, appSecret, accessToken string) (*LongportClient, error) {
	if appKey == "" || appSecret == "" || accessToken == "" {
		return nil, errors.New("longport credentials are not configured")
	}

	conf, err := config.New(config.WithConfigKey(appKey, appSecret, accessToken))
	if err != nil {
		return nil, fmt.Errorf("longport config: %w", err)
	}

	tradeContext, err := trade.NewFromCfg(conf)
	if err != nil {
		return nil, fmt.Errorf("longport trade context: %w", err)
	}

	quoteContext, err := quote.NewFromCfg(conf)
	if err != nil {
		_ = tradeContext.Close()
		return nil, fmt.Errorf("longport quote context: %w", err)
	}

	c := &LongportClient{
		tradeCtx: tradeContext,
		quoteCtx: quoteContext,
		subs:     make(map[uint64]chan gateway.PushEvent),
	}
	tradeContext.OnTrade(c.onTrade)
	return c, nil
}

func (c *LongportClient) Close() error {
	var errs []error
	if c.tradeCtx != nil {
		errs = append(errs, c.tradeCtx.Close())
	}
	if c.quoteCtx != nil {
		errs = append(errs, c.quoteCtx.Close())
	}
	return errors.Join(errs...)
}

// wrap annotates broker errors with the readable code name.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if code, ok := ErrorCode(err); ok {
		return fmt.Errorf("longport %s [%s]: %w", op, GetErrorMsg(code), err)
	}
	return fmt.Errorf("longport %s: %w", op, err)
}

func (c *LongportClient) SubmitOrder(ctx context.Context, req gateway.SubmitRequest) (string, error) {
	orderID, err := c.tradeCtx.SubmitOrder(ctx, mapper.MapSubmitRequest(req))
	if err != nil {
		return "", wrap("submit order", err)
	}
	return orderID, nil
}

func (c *LongportClient) CancelOrder(ctx context.Context, orderID string) error {
	return wrap("cancel order", c.tradeCtx.CancelOrder(ctx, orderID))
}

func (c *LongportClient) ReplaceOrder(ctx context.Context, req gateway.ReplaceRequest) error {
	return wrap("replace order", c.tradeCtx.ReplaceOrder(ctx, mapper.MapReplaceRequest(req)))
}

func (c *LongportClient) OrderDetail(ctx context.Context, orderID string) (*gateway.OrderDetail, error) {
	d, err := c.tradeCtx.OrderDetail(ctx, orderID)
	if err != nil {
		return nil, wrap("order detail", err)
	}
	return mapper.MapLongportOrderDetail(&d), nil
}

func (c *LongportClient) TodayOrders(ctx context.Context, symbol string) ([]gateway.Order, error) {
	orders, err := c.tradeCtx.TodayOrders(ctx, &trade.GetTodayOrders{Symbol: symbol})
	if err != nil {
		return nil, wrap("today orders", err)
	}
	return mapper.MapLongportOrders(orders), nil
}

func (c *LongportClient) HistoryOrders(ctx context.Context, symbol string, start, end time.Time) ([]gateway.Order, error) {
	orders, _, err := c.tradeCtx.HistoryOrders(ctx, &trade.GetHistoryOrders{
		Symbol:  symbol,
		StartAt: start.Unix(),
		EndAt:   end.Unix(),
	})
	if err != nil {
		return nil, wrap("history orders", err)
	}
	return mapper.MapLongportOrders(orders), nil
}

func (c *LongportClient) AccountBalances(ctx context.Context, currency string) ([]gateway.AccountBalance, error) {
	balances, err := c.tradeCtx.AccountBalance(ctx, &trade.GetAccountBalance{Currency: trade.Currency(currency)})
	if err != nil {
		return nil, wrap("account balance", err)
	}
	return mapper.MapLongportBalances(balances), nil
}

func (c *LongportClient) StockPositions(ctx context.Context, symbols []string) ([]gateway.Position, error) {
	channels, err := c.tradeCtx.StockPositions(ctx, symbols)
	if err != nil {
		return nil, wrap("stock positions", err)
	}
	return mapper.MapLongportPositions(channels), nil
}

func (c *LongportClient) Quotes(ctx context.Context, symbols []string) ([]gateway.Quote, error) {
	quotes, err := c.quoteCtx.Quote(ctx, symbols)
	if err != nil {
		return nil, wrap("quote", err)
	}
	return mapper.MapLongportQuotes(quotes), nil
}

func (c *LongportClient) OptionQuotes(ctx context.Context, symbols []string) ([]gateway.Quote, error) {
	quotes, err := c.quoteCtx.OptionQuote(ctx, symbols)
	if err != nil {
		return nil, wrap("option quote", err)
	}
	return mapper.MapLongportOptionQuotes(quotes), nil
}

func (c *LongportClient) Depth(ctx context.Context, symbol string) (*gateway.Depth, error) {
	depth, err := c.quoteCtx.Depth(ctx, symbol)
	if err != nil {
		return nil, wrap("depth", err)
	}
	return mapper.MapLongportDepth(depth), nil
}

func (c *LongportClient) StaticInfo(ctx context.Context, symbols []string) ([]gateway.StaticInfo, error) {
	infos, err := c.quoteCtx.StaticInfo(ctx, symbols)
	if err != nil {
		return nil, wrap("static info", err)
	}
	return mapper.MapLongportStaticInfo(infos), nil
}

// SubscribeOrderChanges streams private order events. The first subscriber
// opens the broker topic and the last stop closes it.
func (c *LongportClient) SubscribeOrderChanges(ctx context.Context) (<-chan gateway.PushEvent, func(), error) {
	c.mu.Lock()
	if !c.subscribed {
		if _, err := c.tradeCtx.Subscribe(ctx, []string{longportPrivateTopic}); err != nil {
			c.mu.Unlock()
			return nil, nil, wrap("subscribe", err)
		}
		c.subscribed = true
	}
	id := c.nextSub
	c.nextSub++
	ch := make(chan gateway.PushEvent, 64)
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()

			delete(c.subs, id)
			close(ch)
			if len(c.subs) > 0 || !c.subscribed {
				return
			}
			c.subscribed = false
			if _, err := c.tradeCtx.Unsubscribe(context.Background(), []string{longportPrivateTopic}); err != nil {
				logger.WithField("connector", "longport").WithError(err).Warn("Failed to unsubscribe private topic")
			}
		})
	}
	return ch, stop, nil
}

func (c *LongportClient) onTrade(e *trade.PushEvent) {
	ev, ok := mapper.MapLongportPush(e)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
			logger.WithFields(map[string]interface{}{
				"connector": "longport",
				"orderID":   ev.OrderID,
			}).Warn("Order push subscriber is slow, dropping event")
		}
	}
}
