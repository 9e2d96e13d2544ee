package execution

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"tradeexecutor/src/gateway"
	"tradeexecutor/src/orderstatus"
)

// Publisher receives every order change, e.g. the operator websocket hub.
type Publisher interface {
	Publish(ev gateway.PushEvent)
}

type Invalidator interface {
	Clear()
}

// TradePush consumes the broker's private order-change stream. Each event
// invalidates the order snapshot, wakes fill waiters and is republished.
type TradePush struct {
	source    gateway.PushSource
	orders    Invalidator
	waiter    *FillWaiter
	publisher Publisher
	positions PositionSource
	logger    *logrus.Entry

	mu   sync.Mutex
	stop func()
	done chan struct{}
}

// NewTradePush accepts a nil source; Subscribe then leaves execution on
// polling only.
func NewTradePush(source gateway.PushSource, orders Invalidator, waiter *FillWaiter, publisher Publisher, positions PositionSource, logger *logrus.Entry) *TradePush {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &TradePush{
		source:    source,
		orders:    orders,
		waiter:    waiter,
		publisher: publisher,
		positions: positions,
		logger:    logger.WithField("component", "trade_push"),
	}
}

// Subscribe starts consuming events. Calling it while subscribed is a no-op.
func (t *TradePush) Subscribe(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stop != nil {
		return nil
	}
	if t.source == nil {
		t.logger.Warn("Gateway has no push capability, fills are tracked by polling")
		return nil
	}

	events, stop, err := t.source.SubscribeOrderChanges(ctx)
	if err != nil {
		t.logger.WithError(err).Error("Order push subscription failed, fills are tracked by polling")
		return err
	}

	t.stop = stop
	t.done = make(chan struct{})
	go t.consume(context.WithoutCancel(ctx), events, t.done)

	t.logger.Info("Subscribed to order changes")
	return nil
}

// Unsubscribe stops the stream and waits for the consumer to drain.
// Repeated calls return nil without side effects.
func (t *TradePush) Unsubscribe(ctx context.Context) error {
	t.mu.Lock()
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.mu.Unlock()

	if stop == nil {
		return nil
	}
	stop()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	t.logger.Info("Unsubscribed from order changes")
	return nil
}

func (t *TradePush) consume(ctx context.Context, events <-chan gateway.PushEvent, done chan struct{}) {
	defer close(done)
	for ev := range events {
		t.handle(ctx, ev)
	}
}

func (t *TradePush) handle(ctx context.Context, ev gateway.PushEvent) {
	if ev.OrderID == "" || ev.Symbol == "" {
		t.logger.WithField("event", ev).Warn("Order change without order id or symbol, ignored")
		return
	}
	ev.Status = orderstatus.Normalize(ev.Status)

	log := t.logger.WithFields(logrus.Fields{
		"order_id": ev.OrderID,
		"symbol":   ev.Symbol,
		"status":   ev.Status,
		"executed": ev.ExecutedQuantity.String(),
	})
	log.Info("Order change received")

	if t.orders != nil {
		t.orders.Clear()
	}
	if t.waiter != nil {
		t.waiter.Notify(ev)
	}
	if t.publisher != nil {
		t.publisher.Publish(ev)
	}

	if ev.Status == orderstatus.Rejected {
		log.Warn("Order rejected by broker")
	}

	if t.positions != nil && (orderstatus.IsFilled(ev.Status) || orderstatus.IsTerminal(ev.Status)) {
		snap := t.positions.CalculateAvailablePosition(ctx, ev.Symbol)
		log.WithFields(logrus.Fields{
			"available": snap.AvailableQuantity.String(),
			"pending":   snap.PendingQuantity.String(),
			"position":  snap.PositionType,
		}).Info("Available position recomputed after order change")
	}
}
