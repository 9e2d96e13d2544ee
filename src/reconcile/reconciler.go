// Package reconcile links broker order outcomes back to the strategy
// signals that produced them.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tradeexecutor/src/externalmodel"
	"tradeexecutor/src/metrics"
	"tradeexecutor/src/model"
)

var ErrOrderNotFound = errors.New("execution order not found")

type OrderStore interface {
	FindByOrderID(ctx context.Context, orderID string) (*model.ExecutionOrder, error)
	SetSignalID(ctx context.Context, orderID string, signalID uint) error
}

type SignalStore interface {
	UpdateStatus(ctx context.Context, id uint, status string) (bool, error)
	FindPendingInWindow(ctx context.Context, strategyID uint, symbol, signalType string, from, to time.Time) ([]externalmodel.StrategySignal, error)
}

type Reconciler struct {
	orders  OrderStore
	signals SignalStore
	window  time.Duration
	logger  *logrus.Entry
}

func NewReconciler(orders OrderStore, signals SignalStore, cfg Config, logger *logrus.Entry) *Reconciler {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.MatchWindow <= 0 {
		cfg.MatchWindow = 30 * time.Minute
	}
	return &Reconciler{
		orders:  orders,
		signals: signals,
		window:  cfg.MatchWindow,
		logger:  logger.WithField("component", "signal_reconciler"),
	}
}

// SignalRef identifies the signal behind an order or intent. ID wins when
// set; otherwise the signal is searched around At.
type SignalRef struct {
	ID         *uint
	StrategyID uint
	Symbol     string
	Side       string
	At         time.Time
}

// UpdateSignalStatusByOrderID sets status on the signal behind orderID.
// It reports false without error when no single signal could be matched.
func (r *Reconciler) UpdateSignalStatusByOrderID(ctx context.Context, orderID, status string) (bool, error) {
	order, err := r.orders.FindByOrderID(ctx, orderID)
	if err != nil {
		return false, fmt.Errorf("load execution order %s: %w", orderID, err)
	}
	if order == nil {
		return false, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}

	ref := SignalRef{
		ID:         order.SignalID,
		StrategyID: order.StrategyID,
		Symbol:     order.Symbol,
		Side:       order.Side,
		At:         order.CreatedAt,
	}
	log := r.logger.WithField("order_id", orderID)

	signalID, changed, err := r.mark(ctx, ref, status, log)
	if err != nil || signalID == 0 || order.SignalID != nil {
		return changed, err
	}

	if err := r.orders.SetSignalID(ctx, orderID, signalID); err != nil {
		log.WithError(err).WithField("signal_id", signalID).Warn("Failed to backfill signal reference on order")
	}
	return changed, nil
}

// MarkSignal sets status on the signal behind an intent that never became
// a broker order, e.g. one rejected before submission. It returns the
// signal id, zero when nothing matched.
func (r *Reconciler) MarkSignal(ctx context.Context, ref SignalRef, status string) (uint, error) {
	id, _, err := r.mark(ctx, ref, status, r.logger)
	return id, err
}

func (r *Reconciler) mark(ctx context.Context, ref SignalRef, status string, log *logrus.Entry) (uint, bool, error) {
	log = log.WithFields(logrus.Fields{
		"strategy_id": ref.StrategyID,
		"symbol":      ref.Symbol,
		"status":      status,
	})

	if ref.ID != nil {
		changed, err := r.signals.UpdateStatus(ctx, *ref.ID, status)
		if err != nil {
			return 0, false, fmt.Errorf("update signal %d: %w", *ref.ID, err)
		}
		metrics.SignalUpdates.WithLabelValues(status, "direct").Inc()
		log.WithField("signal_id", *ref.ID).Info("Signal status updated from order reference")
		return *ref.ID, changed, nil
	}

	signalType := SignalTypeForSide(ref.Side)
	if signalType == "" {
		metrics.SignalUpdates.WithLabelValues(status, "none").Inc()
		log.WithField("side", ref.Side).Warn("Order side does not map to a signal type, signal left untouched")
		return 0, false, nil
	}

	candidates, err := r.signals.FindPendingInWindow(ctx, ref.StrategyID, ref.Symbol, signalType,
		ref.At.Add(-r.window), ref.At.Add(r.window))
	if err != nil {
		return 0, false, fmt.Errorf("find pending signals for %s: %w", ref.Symbol, err)
	}

	match, ok := PickSignal(candidates, ref.At)
	if !ok {
		metrics.SignalUpdates.WithLabelValues(status, "none").Inc()
		log.WithField("candidates", len(candidates)).Warn("No unambiguous pending signal in window, signal left untouched")
		return 0, false, nil
	}

	changed, err := r.signals.UpdateStatus(ctx, match.ID, status)
	if err != nil {
		return 0, false, fmt.Errorf("update signal %d: %w", match.ID, err)
	}
	metrics.SignalUpdates.WithLabelValues(status, "window").Inc()

	log.WithFields(logrus.Fields{
		"signal_id":  match.ID,
		"signal_age": ref.At.Sub(match.CreatedAt).String(),
	}).Info("Signal status updated from time window match")

	return match.ID, changed, nil
}

// SignalTypeForSide maps an order side (any case, "Buy" or "BUY") to the
// signal type that would have produced it.
func SignalTypeForSide(side string) string {
	switch strings.ToUpper(strings.TrimSpace(side)) {
	case "BUY":
		return externalmodel.SignalTypeBuy
	case "SELL":
		return externalmodel.SignalTypeSell
	}
	return ""
}

// PickSignal chooses the candidate closest before at, or failing that the
// closest after it. Two candidates at the same distance on the chosen side
// make the match ambiguous.
func PickSignal(candidates []externalmodel.StrategySignal, at time.Time) (externalmodel.StrategySignal, bool) {
	var before, after []externalmodel.StrategySignal
	for _, c := range candidates {
		if c.CreatedAt.After(at) {
			after = append(after, c)
		} else {
			before = append(before, c)
		}
	}

	if len(before) > 0 {
		return nearest(before, at)
	}
	return nearest(after, at)
}

func nearest(candidates []externalmodel.StrategySignal, at time.Time) (externalmodel.StrategySignal, bool) {
	if len(candidates) == 0 {
		return externalmodel.StrategySignal{}, false
	}

	best := candidates[0]
	bestDist := absDuration(at.Sub(best.CreatedAt))
	tied := false
	for _, c := range candidates[1:] {
		d := absDuration(at.Sub(c.CreatedAt))
		switch {
		case d < bestDist:
			best, bestDist, tied = c, d, false
		case d == bestDist:
			tied = true
		}
	}
	if tied {
		return externalmodel.StrategySignal{}, false
	}
	return best, true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
