package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"tradeexecutor/src/database"
	"tradeexecutor/src/externalmodel"
	"tradeexecutor/src/gateway"
	"tradeexecutor/src/model"
	"tradeexecutor/src/ordercache"
	"tradeexecutor/src/position"
	"tradeexecutor/src/pricing"
	"tradeexecutor/src/reconcile"
	"tradeexecutor/src/repository"
	"tradeexecutor/src/risk"
	"tradeexecutor/src/submission"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

// usRegularSession is a Tuesday 10:00 New York time.
var usRegularSession = time.Date(2025, 3, 4, 15, 0, 0, 0, time.UTC)

// stubGateway is an in-memory broker. fill decides what a submitted order
// looks like in the next order book read.
type stubGateway struct {
	gateway.Gateway

	mu        sync.Mutex
	quotes    map[string]gateway.Quote
	quoteErr  error
	positions []gateway.Position
	balances  []gateway.AccountBalance
	lotSize   int64
	orders    []gateway.Order
	submitted []gateway.SubmitRequest
	submitErr func(req gateway.SubmitRequest) error
	fill      func(id string, req gateway.SubmitRequest) gateway.Order
	fees      decimal.Decimal
	cancels   int
	nextID    int
}

func (s *stubGateway) SubmitOrder(ctx context.Context, req gateway.SubmitRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted = append(s.submitted, req)
	if s.submitErr != nil {
		if err := s.submitErr(req); err != nil {
			return "", err
		}
	}
	s.nextID++
	id := fmt.Sprintf("ord-%d", s.nextID)

	o := gateway.Order{
		OrderID:   id,
		Symbol:    req.Symbol,
		Side:      req.Side,
		OrderType: req.OrderType,
		Status:    "NewStatus",
		Quantity:  decimal.NewFromInt(int64(req.Quantity)),
	}
	if s.fill != nil {
		o = s.fill(id, req)
	}
	s.orders = append(s.orders, o)
	return id, nil
}

func (s *stubGateway) StaticInfo(ctx context.Context, symbols []string) ([]gateway.StaticInfo, error) {
	return []gateway.StaticInfo{{Symbol: symbols[0], LotSize: s.lotSize}}, nil
}

func (s *stubGateway) TodayOrders(ctx context.Context, symbol string) ([]gateway.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]gateway.Order, len(s.orders))
	copy(out, s.orders)
	return out, nil
}

func (s *stubGateway) OrderDetail(ctx context.Context, orderID string) (*gateway.OrderDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.OrderID == orderID {
			return &gateway.OrderDetail{Order: o, Fees: s.fees}, nil
		}
	}
	return nil, errors.New("order not found")
}

func (s *stubGateway) CancelOrder(ctx context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels++
	for i := range s.orders {
		if s.orders[i].OrderID == orderID {
			s.orders[i].Status = "CanceledStatus"
			return nil
		}
	}
	return errors.New("order not found")
}

func (s *stubGateway) StockPositions(ctx context.Context, symbols []string) ([]gateway.Position, error) {
	return s.positions, nil
}

func (s *stubGateway) AccountBalances(ctx context.Context, currency string) ([]gateway.AccountBalance, error) {
	return s.balances, nil
}

func (s *stubGateway) Quotes(ctx context.Context, symbols []string) ([]gateway.Quote, error) {
	if s.quoteErr != nil {
		return nil, s.quoteErr
	}
	q, ok := s.quotes[symbols[0]]
	if !ok {
		return nil, nil
	}
	return []gateway.Quote{q}, nil
}

func (s *stubGateway) OptionQuotes(ctx context.Context, symbols []string) ([]gateway.Quote, error) {
	return nil, nil
}

func (s *stubGateway) Depth(ctx context.Context, symbol string) (*gateway.Depth, error) {
	return nil, nil
}

func (s *stubGateway) requests() []gateway.SubmitRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]gateway.SubmitRequest, len(s.submitted))
	copy(out, s.submitted)
	return out
}

func filledAt(price string) func(id string, req gateway.SubmitRequest) gateway.Order {
	return func(id string, req gateway.SubmitRequest) gateway.Order {
		q := decimal.NewFromInt(int64(req.Quantity))
		return gateway.Order{
			OrderID:          id,
			Symbol:           req.Symbol,
			Side:             req.Side,
			OrderType:        req.OrderType,
			Status:           "FilledStatus",
			Quantity:         q,
			ExecutedQuantity: q,
			ExecutedPrice:    d(price),
		}
	}
}

type fixture struct {
	db      *gorm.DB
	gw      *stubGateway
	exec    *Executor
	orders  *repository.ExecutionOrderRepository
	signals *repository.StrategySignalRepository
	trades  *repository.AutoTradeRepository
	states  *repository.StrategyInstanceRepository
	book    *ordercache.TodayOrders
	waiter  *FillWaiter
}

func newFixture(t *testing.T, gw *stubGateway) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database.Models()...))

	if gw.lotSize == 0 {
		gw.lotSize = 1
	}

	book := ordercache.New(gw, ordercache.Config{TTL: time.Minute, RefreshTimeout: time.Second}, nil)
	cascade := pricing.NewCascade(gw, nil, nil, nil)
	pipeline := submission.NewPipeline(gw, book, nil)
	calc := position.NewCalculator(gw, book, nil)

	f := &fixture{
		db:      db,
		gw:      gw,
		book:    book,
		orders:  (&repository.ExecutionOrderRepository{}).WithDB(db),
		signals: (&repository.StrategySignalRepository{}).WithDB(db),
		trades:  (&repository.AutoTradeRepository{}).WithDB(db),
		states:  (&repository.StrategyInstanceRepository{}).WithDB(db),
	}

	cfg := Config{FillWaitTimeout: 300 * time.Millisecond, FillPollInterval: 10 * time.Millisecond}
	f.waiter = NewFillWaiter(book, cfg, nil)

	f.exec = NewExecutor(nil, Deps{
		Broker:     gw,
		Prices:     cascade,
		Submitter:  pipeline,
		Positions:  calc,
		Risk:       risk.NewShortValidator(gw, f.states, nil),
		Waiter:     f.waiter,
		Records:    f.orders,
		Trades:     f.trades,
		Signals:    reconcile.NewReconciler(f.orders, f.signals, reconcile.Config{MatchWindow: 30 * time.Minute}, nil),
		Exceptions: (&repository.ExceptionRepository{}).WithDB(db),
	}, cfg)
	f.exec.now = func() time.Time { return usRegularSession }

	return f
}

func (f *fixture) seedSignal(t *testing.T, symbol, signalType string, at time.Time) uint {
	t.Helper()
	s := externalmodel.StrategySignal{
		StrategyID: 7,
		Symbol:     symbol,
		SignalType: signalType,
		Status:     externalmodel.SignalStatusPending,
		CreatedAt:  at,
	}
	require.NoError(t, f.db.Create(&s).Error)
	return s.ID
}

func (f *fixture) signalStatus(t *testing.T, id uint) string {
	t.Helper()
	s, err := f.signals.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, s)
	return s.Status
}

func (f *fixture) executionOrder(t *testing.T, orderID string) *model.ExecutionOrder {
	t.Helper()
	o, err := f.orders.FindByOrderID(context.Background(), orderID)
	require.NoError(t, err)
	require.NotNil(t, o)
	return o
}

func (f *fixture) state(t *testing.T, symbol string) string {
	t.Helper()
	s, _, err := f.states.GetState(context.Background(), 7, symbol)
	require.NoError(t, err)
	return s
}
