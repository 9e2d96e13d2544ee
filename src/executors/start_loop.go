package executors

import (
	"context"
	"errors"
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradeexecutor/src/execution"
	"tradeexecutor/src/gateway"
	"tradeexecutor/src/market"
	"tradeexecutor/src/metrics"
	"tradeexecutor/src/model"
	"tradeexecutor/src/orderstatus"
)

// UnsettledOrders is the audit table view the loop walks.
type UnsettledOrders interface {
	FindUnsettled(ctx context.Context, since time.Time, settled []string, limit int) ([]model.ExecutionOrder, error)
	UpdateStatusWithAutoLog(ctx context.Context, orderID, newStatus, reason string) error
}

// OrderSnapshot is the broker's list of today's orders.
type OrderSnapshot interface {
	Refresh(ctx context.Context) ([]gateway.Order, error)
}

type Settler interface {
	Settle(ctx context.Context, rec *model.ExecutionOrder, order gateway.Order) (execution.Settlement, error)
}

// Summary counts what one pass did.
type Summary struct {
	Visited   int
	Settled   int
	Updated   int
	Unchanged int
	Missing   int
	Failed    int
}

// Loop brings audit rows of orders whose fill was never observed in line
// with the broker.
type Loop struct {
	orders  UnsettledOrders
	book    OrderSnapshot
	settler Settler
	cfg     Config
	logger  *logger.Entry
	now     func() time.Time
}

func NewLoop(orders UnsettledOrders, book OrderSnapshot, settler Settler, cfg Config, log *logger.Entry) *Loop {
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	return &Loop{
		orders:  orders,
		book:    book,
		settler: settler,
		cfg:     cfg,
		logger:  log.WithField("component", "reconcile_loop"),
		now:     time.Now,
	}
}

// settledStatuses are the rows the loop no longer needs to visit.
var settledStatuses = []string{
	orderstatus.Filled,
	orderstatus.Canceled,
	orderstatus.Rejected,
	orderstatus.Expired,
}

// reconcileOnce is swapped in tests.
var reconcileOnce = func(ctx context.Context, l *Loop) (Summary, error) {
	return l.RunOnce(ctx)
}

// StartLoop reconciles immediately and then every LoopPeriod until ctx is
// cancelled. A failed pass is logged and retried on the next tick.
func StartLoop(ctx context.Context, l *Loop) error {
	if l == nil {
		return errors.New("reconcile loop not configured")
	}
	if l.cfg.LoopPeriod <= 0 {
		return fmt.Errorf("invalid reconcile loop period %s", l.cfg.LoopPeriod)
	}

	ticker := time.NewTicker(l.cfg.LoopPeriod)
	defer ticker.Stop()

	l.logger.WithField("period", l.cfg.LoopPeriod.String()).Info("Reconciliation loop started")
	l.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Reconciliation loop stopped")
			return nil
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	sum, err := reconcileOnce(ctx, l)
	if err != nil {
		l.logger.WithError(err).Error("Reconciliation pass failed")
		return
	}
	if sum.Visited > 0 {
		l.logger.WithFields(logger.Fields{
			"visited":   sum.Visited,
			"settled":   sum.Settled,
			"updated":   sum.Updated,
			"unchanged": sum.Unchanged,
			"missing":   sum.Missing,
			"failed":    sum.Failed,
		}).Info("Reconciliation pass finished")
	}
}

// RunOnce visits today's unsettled execution orders once. Orders that
// settled at the broker go through the executor's settlement; others only
// get their normalized status written.
func (l *Loop) RunOnce(ctx context.Context) (Summary, error) {
	var sum Summary

	since := market.TradingDayStart(l.now())
	pending, err := l.orders.FindUnsettled(ctx, since, settledStatuses, l.cfg.BatchSize)
	if err != nil {
		return sum, fmt.Errorf("load unsettled orders: %w", err)
	}
	if len(pending) == 0 {
		return sum, nil
	}

	snapshot, err := l.book.Refresh(ctx)
	if err != nil {
		return sum, fmt.Errorf("load today's orders: %w", err)
	}
	byID := make(map[string]gateway.Order, len(snapshot))
	for _, o := range snapshot {
		byID[o.OrderID] = o
	}

	for i := range pending {
		rec := &pending[i]
		sum.Visited++
		outcome := l.reconcile(ctx, rec, byID)
		metrics.ReconcileOrders.WithLabelValues(outcome).Inc()

		switch outcome {
		case "settled":
			sum.Settled++
		case "updated":
			sum.Updated++
		case "unchanged":
			sum.Unchanged++
		case "missing":
			sum.Missing++
		default:
			sum.Failed++
		}
	}
	return sum, nil
}

func (l *Loop) reconcile(ctx context.Context, rec *model.ExecutionOrder, byID map[string]gateway.Order) string {
	log := l.logger.WithFields(logger.Fields{
		"order_id":    rec.OrderID,
		"strategy_id": rec.StrategyID,
		"symbol":      rec.Symbol,
	})

	order, ok := byID[rec.OrderID]
	if !ok {
		log.Debug("Order not in today's snapshot")
		return "missing"
	}
	status := orderstatus.Normalize(order.Status)

	if execution.Settled(status) {
		st, err := l.settler.Settle(ctx, rec, order)
		if err != nil {
			log.WithError(err).Error("Failed to settle order")
			return "error"
		}
		if st.Skipped {
			return "unchanged"
		}
		return "settled"
	}

	if status == rec.CurrentStatus {
		return "unchanged"
	}
	reason := fmt.Sprintf("reconciled from broker, executed %s", order.ExecutedQuantity)
	if err := l.orders.UpdateStatusWithAutoLog(ctx, rec.OrderID, status, reason); err != nil {
		log.WithError(err).Error("Failed to write reconciled status")
		return "error"
	}
	return "updated"
}
