package execution

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"tradeexecutor/src/externalmodel"
	"tradeexecutor/src/gateway"
	"tradeexecutor/src/model"
	"tradeexecutor/src/orderstatus"
	"tradeexecutor/src/risk"
)

// Settlement is what Settle observed and wrote.
type Settlement struct {
	Status  string
	Filled  bool
	Fees    decimal.Decimal
	Skipped bool
}

// Settle books a settled broker order: trade ledger, audit status,
// instance state and signal status. The fill waiter and the reconciliation
// loop both land here, and an order already settled is skipped.
func (e *Executor) Settle(ctx context.Context, rec *model.ExecutionOrder, order gateway.Order) (Settlement, error) {
	status := orderstatus.Normalize(order.Status)
	st := Settlement{Status: status, Filled: order.ExecutedQuantity.IsPositive()}
	if !Settled(status) {
		st.Skipped = true
		return st, nil
	}

	unlock, err := e.Locks.Lock(ctx, "order:"+rec.OrderID)
	if err != nil {
		return st, err
	}
	defer unlock()

	if cur, err := e.Records.FindByOrderID(ctx, rec.OrderID); err == nil && cur != nil && Settled(cur.CurrentStatus) {
		st.Skipped = true
		return st, nil
	}

	log := e.logger.WithFields(logrus.Fields{
		"strategy_id": rec.StrategyID,
		"symbol":      rec.Symbol,
		"order_id":    rec.OrderID,
		"status":      status,
	})
	fail := func(method string, err error) {
		Capture(ctx, e.Exceptions, log, Failure{
			Method:     method,
			StrategyID: rec.StrategyID,
			Symbol:     rec.Symbol,
			OrderID:    rec.OrderID,
			Err:        err,
		})
	}

	st.Fees = e.fees(ctx, rec.OrderID, log)

	if st.Filled {
		if err := e.recordTrade(ctx, rec, order, status, st.Fees); err != nil {
			fail("recordTrade", err)
		}
	}

	reason := fmt.Sprintf("broker status %s, executed %s @ %s", status, order.ExecutedQuantity, order.ExecutedPrice)
	if order.Message != "" {
		reason += ": " + order.Message
	}
	if err := e.Records.UpdateStatusWithAutoLog(ctx, rec.OrderID, status, reason); err != nil {
		fail("updateExecutionStatus", err)
	}

	if err := e.settleState(ctx, rec, order); err != nil {
		fail("settleState", err)
	}

	if e.Signals != nil {
		if _, err := e.Signals.UpdateSignalStatusByOrderID(ctx, rec.OrderID, SignalStatusFor(status, st.Filled)); err != nil {
			log.WithError(err).Warn("Failed to update signal status")
		}
	}

	log.WithField("fees", st.Fees.String()).Info("Order settled")
	return st, nil
}

// SignalStatusFor maps a settled broker status onto the signal outcome.
func SignalStatusFor(status string, filled bool) string {
	switch {
	case filled:
		return externalmodel.SignalStatusExecuted
	case orderstatus.Normalize(status) == orderstatus.Rejected:
		return externalmodel.SignalStatusRejected
	default:
		return externalmodel.SignalStatusIgnored
	}
}

func (e *Executor) fees(ctx context.Context, orderID string, log *logrus.Entry) decimal.Decimal {
	d, err := e.Broker.OrderDetail(ctx, orderID)
	if err != nil || d == nil {
		log.WithError(err).Warn("Order detail unavailable, fees recorded as zero")
		return decimal.Zero
	}
	return d.Fees
}

// recordTrade closes the opposite open trade when the order reduces a
// position, otherwise it opens a new one.
func (e *Executor) recordTrade(ctx context.Context, rec *model.ExecutionOrder, order gateway.Order, status string, fees decimal.Decimal) error {
	tradeStatus := model.TradeStatusPartiallyFilled
	if status == orderstatus.Filled {
		tradeStatus = model.TradeStatusFilled
	}

	closing := rec.Kind == model.OrderKindCloseLong || rec.Kind == model.OrderKindCoverShort
	if rec.Kind == "" {
		closing = rec.Side == sideSell
	}

	if closing {
		opposite := sideBuy
		if rec.Side == sideBuy {
			opposite = sideSell
		}
		open, err := e.Trades.FindOpen(ctx, rec.StrategyID, rec.Symbol, opposite)
		if err != nil {
			return err
		}
		if open != nil {
			matched := decimal.Min(order.ExecutedQuantity, open.Quantity)
			pnl := order.ExecutedPrice.Sub(open.AvgPrice).Mul(matched)
			if open.Side == sideSell {
				pnl = pnl.Neg()
			}
			return e.Trades.Close(ctx, open.ID, pnl, fees, tradeStatus, e.now())
		}
	}

	return e.Trades.Create(ctx, &model.AutoTrade{
		StrategyID: rec.StrategyID,
		Symbol:     rec.Symbol,
		Side:       rec.Side,
		Quantity:   order.ExecutedQuantity,
		AvgPrice:   order.ExecutedPrice,
		Fees:       fees,
		Status:     tradeStatus,
		OrderID:    rec.OrderID,
		OpenTime:   e.now(),
	})
}

// settleState finishes the transition started at submission. An order that
// never filled restores the state held before it.
func (e *Executor) settleState(ctx context.Context, rec *model.ExecutionOrder, order gateway.Order) error {
	if rec.Kind != model.OrderKindOpenShort && rec.Kind != model.OrderKindCoverShort {
		return nil
	}

	unlock, err := e.Locks.Lock(ctx, risk.InstanceKey(rec.StrategyID, rec.Symbol))
	if err != nil {
		return err
	}
	defer unlock()

	data := map[string]interface{}{
		"order_id": rec.OrderID,
		"executed": order.ExecutedQuantity.String(),
	}
	filled := order.ExecutedQuantity.IsPositive()

	switch rec.Kind {
	case model.OrderKindOpenShort:
		if filled {
			return e.Risk.TransitionFrom(ctx, rec.StrategyID, rec.Symbol, risk.StateShorting, risk.StateShort, data)
		}
		return e.Risk.RestoreState(ctx, rec.StrategyID, rec.Symbol, risk.StateIdle, data)
	default:
		if filled && order.ExecutedQuantity.GreaterThanOrEqual(rec.Quantity) {
			return e.Risk.TransitionFrom(ctx, rec.StrategyID, rec.Symbol, risk.StateCovering, risk.StateIdle, data)
		}
		return e.Risk.RestoreState(ctx, rec.StrategyID, rec.Symbol, risk.StateShort, data)
	}
}
