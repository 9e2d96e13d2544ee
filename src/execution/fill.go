package execution

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"tradeexecutor/src/gateway"
	"tradeexecutor/src/orderstatus"
)

// OrderBook returns the broker's orders for the trading day. Polling goes
// through the batch query so the gateway queue sees one call per round.
type OrderBook interface {
	Refresh(ctx context.Context) ([]gateway.Order, error)
}

// FillWaiter watches one order until it settles, fed both by polling the
// order book and by pushed order changes.
type FillWaiter struct {
	book     OrderBook
	interval time.Duration
	timeout  time.Duration
	logger   *logrus.Entry

	mu      sync.Mutex
	waiters map[string]map[chan gateway.Order]struct{}
}

func NewFillWaiter(book OrderBook, cfg Config, logger *logrus.Entry) *FillWaiter {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	cfg = cfg.withDefaults()
	return &FillWaiter{
		book:     book,
		interval: cfg.FillPollInterval,
		timeout:  cfg.FillWaitTimeout,
		logger:   logger.WithField("component", "fill_waiter"),
		waiters:  make(map[string]map[chan gateway.Order]struct{}),
	}
}

// Settled reports a full fill or a status the order cannot leave.
func Settled(status string) bool {
	s := orderstatus.Normalize(status)
	return s == orderstatus.Filled || orderstatus.IsTerminal(s)
}

// Notify hands a pushed change to whoever waits on that order.
func (w *FillWaiter) Notify(ev gateway.PushEvent) {
	o := gateway.Order{
		OrderID:          ev.OrderID,
		Symbol:           ev.Symbol,
		Side:             ev.Side,
		Status:           orderstatus.Normalize(ev.Status),
		Quantity:         ev.Quantity,
		ExecutedQuantity: ev.ExecutedQuantity,
		ExecutedPrice:    ev.ExecutedPrice,
		Message:          ev.Message,
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for ch := range w.waiters[ev.OrderID] {
		select {
		case ch <- o:
		default:
		}
	}
}

// Wait returns the last observed state of orderID and whether it settled
// before the timeout. A nil order means it was never seen.
func (w *FillWaiter) Wait(ctx context.Context, orderID string) (*gateway.Order, bool) {
	ch := make(chan gateway.Order, 4)
	w.register(orderID, ch)
	defer w.unregister(orderID, ch)

	deadline := time.NewTimer(w.timeout)
	defer deadline.Stop()
	poll := time.NewTicker(w.interval)
	defer poll.Stop()

	var last *gateway.Order
	if o := w.poll(ctx, orderID); o != nil {
		last = o
		if Settled(o.Status) {
			return o, true
		}
	}

	for {
		select {
		case <-ctx.Done():
			return last, false
		case <-deadline.C:
			w.logger.WithField("order_id", orderID).Warn("Fill wait timed out, status left to reconciliation")
			return last, false
		case o := <-ch:
			last = &o
			if Settled(o.Status) {
				return last, true
			}
		case <-poll.C:
			if o := w.poll(ctx, orderID); o != nil {
				last = o
				if Settled(o.Status) {
					return o, true
				}
			}
		}
	}
}

func (w *FillWaiter) poll(ctx context.Context, orderID string) *gateway.Order {
	orders, err := w.book.Refresh(ctx)
	if err != nil {
		w.logger.WithError(err).WithField("order_id", orderID).Warn("Order book refresh failed, retrying")
		return nil
	}
	for i := range orders {
		if orders[i].OrderID == orderID {
			o := orders[i]
			o.Status = orderstatus.Normalize(o.Status)
			return &o
		}
	}
	return nil
}

func (w *FillWaiter) register(orderID string, ch chan gateway.Order) {
	w.mu.Lock()
	defer w.mu.Unlock()
	set, ok := w.waiters[orderID]
	if !ok {
		set = make(map[chan gateway.Order]struct{})
		w.waiters[orderID] = set
	}
	set[ch] = struct{}{}
}

func (w *FillWaiter) unregister(orderID string, ch chan gateway.Order) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.waiters[orderID], ch)
	if len(w.waiters[orderID]) == 0 {
		delete(w.waiters, orderID)
	}
}
