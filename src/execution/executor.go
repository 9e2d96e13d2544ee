// Package execution turns strategy intents into broker orders: price and
// position checks, submission, fill tracking and bookkeeping.
package execution

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"tradeexecutor/src/connectors"
	"tradeexecutor/src/externalmodel"
	"tradeexecutor/src/gateway"
	"tradeexecutor/src/market"
	"tradeexecutor/src/metrics"
	"tradeexecutor/src/model"
	"tradeexecutor/src/position"
	"tradeexecutor/src/pricing"
	"tradeexecutor/src/reconcile"
	"tradeexecutor/src/risk"
	"tradeexecutor/src/submission"
)

type Broker interface {
	OrderDetail(ctx context.Context, orderID string) (*gateway.OrderDetail, error)
	CancelOrder(ctx context.Context, orderID string) error
}

type PriceSource interface {
	GetPrice(ctx context.Context, symbol string, meta *pricing.OptionMeta) (decimal.Decimal, bool)
}

type Submitter interface {
	SubmitOrder(ctx context.Context, params submission.Params) submission.Result
}

type PositionSource interface {
	CalculateAvailablePosition(ctx context.Context, symbol string) position.Snapshot
}

type ShortRisk interface {
	ValidateShortOperation(ctx context.Context, strategyID uint, symbol string, quantity, price decimal.Decimal) risk.ValidationResult
	ValidateCoverOperation(ctx context.Context, strategyID uint, symbol string, quantity, current decimal.Decimal) risk.ValidationResult
	TransitionFrom(ctx context.Context, strategyID uint, symbol string, fallback, to risk.State, data map[string]interface{}) error
	RestoreState(ctx context.Context, strategyID uint, symbol string, prior risk.State, data map[string]interface{}) error
}

type OrderRecorder interface {
	CreateWithAutoLog(ctx context.Context, order *model.ExecutionOrder) error
	FindByOrderID(ctx context.Context, orderID string) (*model.ExecutionOrder, error)
	UpdateStatusWithAutoLog(ctx context.Context, orderID, newStatus, reason string) error
}

type TradeLedger interface {
	Create(ctx context.Context, trade *model.AutoTrade) error
	FindOpen(ctx context.Context, strategyID uint, symbol, side string) (*model.AutoTrade, error)
	Close(ctx context.Context, id uint, pnl, fees decimal.Decimal, status string, closedAt time.Time) error
}

type SignalMarker interface {
	UpdateSignalStatusByOrderID(ctx context.Context, orderID, status string) (bool, error)
	MarkSignal(ctx context.Context, ref reconcile.SignalRef, status string) (uint, error)
}

// Deps groups the collaborators of an Executor. Exceptions may be nil.
type Deps struct {
	Broker     Broker
	Prices     PriceSource
	Submitter  Submitter
	Positions  PositionSource
	Risk       ShortRisk
	Waiter     *FillWaiter
	Records    OrderRecorder
	Trades     TradeLedger
	Signals    SignalMarker
	Exceptions ExceptionSink
	Locks      *risk.KeyedMutex
}

type Executor struct {
	Deps
	cfg    Config
	logger *logrus.Entry
	now    func() time.Time
}

func NewExecutor(logger *logrus.Entry, deps Deps, cfg Config) *Executor {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if deps.Locks == nil {
		deps.Locks = risk.NewKeyedMutex()
	}
	return &Executor{
		Deps:   deps,
		cfg:    cfg.withDefaults(),
		logger: logger.WithField("component", "executor"),
		now:    time.Now,
	}
}

// plan is what an intent becomes once its position semantics are known.
type plan struct {
	kind     string
	side     string
	quantity decimal.Decimal
	price    decimal.Decimal
	fair     decimal.Decimal
	target   risk.State
	prior    risk.State
}

func (e *Executor) ExecuteBuyIntent(ctx context.Context, intent Intent, strategyID uint) Result {
	return e.execute(ctx, intent, strategyID, sideBuy)
}

func (e *Executor) ExecuteSellIntent(ctx context.Context, intent Intent, strategyID uint) Result {
	return e.execute(ctx, intent, strategyID, sideSell)
}

func (e *Executor) execute(ctx context.Context, intent Intent, strategyID uint, side string) Result {
	log := e.logger.WithFields(logrus.Fields{
		"strategy_id": strategyID,
		"symbol":      intent.Symbol,
		"side":        side,
	})
	var res Result

	price, missing := intentPrice(intent, side)
	if missing != "" {
		return e.reject(ctx, log, intent, strategyID, side, res, "Missing required field: "+missing)
	}
	qty := *intent.Quantity

	fair, known := e.Prices.GetPrice(ctx, intent.Symbol, intent.Option)
	warning, rejection := e.checkPrice(side, price, fair, known)
	if rejection != "" && intent.ForceClose {
		warning, rejection = rejection, ""
	}
	res.warn(warning)
	if warning != "" {
		log.Warn(warning)
	}
	if rejection != "" {
		return e.reject(ctx, log, intent, strategyID, side, res, rejection)
	}
	if !known {
		fair = price
	}

	unlock, err := e.Locks.Lock(ctx, risk.InstanceKey(strategyID, intent.Symbol))
	if err != nil {
		res.Error = fmt.Sprintf("Execution aborted: %s", err.Error())
		return res
	}
	locked := true
	defer func() {
		if locked {
			unlock()
		}
	}()

	p, res, rejection := e.plan(ctx, intent, strategyID, side, qty, price, res)
	if rejection != "" {
		return e.reject(ctx, log, intent, strategyID, side, res, rejection)
	}
	p.fair = fair

	sub, orderType, submitted := e.submit(ctx, intent, strategyID, p, log)
	if !sub.Success {
		msg := "Order submission failed"
		if sub.Error != nil {
			msg = sub.Error.Message
			if len(sub.Error.Details) > 0 {
				msg += ": " + strings.Join(sub.Error.Details, "; ")
			}
		}
		return e.reject(ctx, log, intent, strategyID, side, res, msg)
	}
	orderID := sub.OrderID
	res.OrderID = orderID
	log = log.WithField("order_id", orderID)

	if p.target != "" {
		data := map[string]interface{}{"order_id": orderID, "quantity": p.quantity.String()}
		if err := e.Risk.TransitionFrom(ctx, strategyID, intent.Symbol, p.prior, p.target, data); err != nil {
			Capture(ctx, e.Exceptions, log, Failure{Method: "transitionState", StrategyID: strategyID, Symbol: intent.Symbol, OrderID: orderID, Err: err})
		}
	}
	unlock()
	locked = false

	rec := &model.ExecutionOrder{
		StrategyID: strategyID,
		SignalID:   intent.SignalID,
		Symbol:     intent.Symbol,
		OrderID:    orderID,
		Side:       side,
		OrderType:  orderType,
		Kind:       p.kind,
		Quantity:   p.quantity,
		Price:      submitted,
	}
	if err := e.Records.CreateWithAutoLog(ctx, rec); err != nil {
		Capture(ctx, e.Exceptions, log, Failure{Method: "recordOrder", StrategyID: strategyID, Symbol: intent.Symbol, OrderID: orderID, Err: err})
	}

	if !market.IsOpen(intent.Symbol, e.now()) {
		res.warn("Market is closed, fill status left to reconciliation")
		return e.unknown(log, side, res)
	}

	order, settled := e.Waiter.Wait(ctx, orderID)
	if order != nil {
		res.Status = order.Status
		res.FilledQuantity = order.ExecutedQuantity
		res.AvgPrice = order.ExecutedPrice
	}
	if !settled {
		return e.unknown(log, side, res)
	}

	st, err := e.Settle(ctx, rec, *order)
	if err != nil {
		log.WithError(err).Warn("Settlement incomplete")
	}
	res.Status = st.Status
	res.Fees = st.Fees
	res.Success = st.Filled

	outcome := "filled"
	if !st.Filled {
		outcome = "not_filled"
		res.Error = fmt.Sprintf("Order %s ended with status %s", orderID, st.Status)
		if order.Message != "" {
			res.Error += ": " + order.Message
		}
	}
	metrics.Executions.WithLabelValues(side, outcome).Inc()

	log.WithFields(logrus.Fields{
		"status":    st.Status,
		"avg_price": res.AvgPrice.String(),
		"filled":    res.FilledQuantity.String(),
		"fees":      res.Fees.String(),
	}).Info("Execution finished")

	return res
}

func intentPrice(intent Intent, side string) (decimal.Decimal, string) {
	if intent.Quantity == nil || intent.Quantity.IsZero() {
		return decimal.Zero, "quantity"
	}
	if side == sideSell {
		if intent.SellPrice != nil && intent.SellPrice.IsPositive() {
			return *intent.SellPrice, ""
		}
		if intent.EntryPrice != nil && intent.EntryPrice.IsPositive() {
			return *intent.EntryPrice, ""
		}
		return decimal.Zero, "sellPrice"
	}
	if intent.EntryPrice == nil || !intent.EntryPrice.IsPositive() {
		return decimal.Zero, "entryPrice"
	}
	return *intent.EntryPrice, ""
}

// checkPrice compares the intent price with the market price. Without a
// market price the check is skipped with a warning.
func (e *Executor) checkPrice(side string, price, fair decimal.Decimal, known bool) (warning, rejection string) {
	if !known || !fair.IsPositive() {
		return "Market price unavailable, price validation skipped", ""
	}

	maxDev, warnDev, label := e.cfg.BuyMaxDeviation, e.cfg.BuyWarnDeviation, "Buy"
	if side == sideSell {
		maxDev, warnDev, label = e.cfg.SellMaxDeviation, e.cfg.SellWarnDeviation, "Sell"
	}

	dev := price.Sub(fair).Abs().Div(fair)
	pct := dev.Mul(decimal.NewFromInt(100)).StringFixed(2)

	switch {
	case dev.GreaterThan(decimal.NewFromFloat(maxDev)):
		return "", fmt.Sprintf("%s price %s deviates %s%% from market price %s (max %s%%)",
			label, price, pct, fair, decimal.NewFromFloat(maxDev*100).String())
	case dev.GreaterThan(decimal.NewFromFloat(warnDev)):
		return fmt.Sprintf("%s price %s deviates %s%% from market price %s", label, price, pct, fair), ""
	}
	return "", ""
}

// plan resolves open/close/short/cover semantics and runs the matching
// position and risk checks. Callers hold the instance lock.
func (e *Executor) plan(ctx context.Context, intent Intent, strategyID uint, side string, qty, price decimal.Decimal, res Result) (plan, Result, string) {
	p := plan{side: side, quantity: qty.Abs(), price: price}

	if side == sideSell && qty.IsNegative() {
		v := e.Risk.ValidateShortOperation(ctx, strategyID, intent.Symbol, qty, price)
		res.Margin = v.Margin
		res.warn(v.Warning)
		if !v.Valid {
			return p, res, v.Error
		}
		p.kind, p.prior, p.target = model.OrderKindOpenShort, risk.StateIdle, risk.StateShorting
		return p, res, ""
	}

	snap := e.Positions.CalculateAvailablePosition(ctx, intent.Symbol)

	if side == sideSell {
		if snap.PositionType != position.Long || !snap.AvailableQuantity.IsPositive() {
			return p, res, fmt.Sprintf("No available long position for %s (actual %s, pending %s)",
				intent.Symbol, snap.ActualQuantity, snap.PendingQuantity)
		}
		if v := risk.ValidateQuantity(qty, risk.ActionSell, snap.AvailableQuantity); !v.Valid {
			return p, res, v.Error
		}
		p.kind = model.OrderKindCloseLong
		return p, res, ""
	}

	if snap.PositionType == position.Short {
		if !snap.AvailableQuantity.IsPositive() {
			return p, res, fmt.Sprintf("No available short position to cover for %s (pending %s)", intent.Symbol, snap.PendingQuantity)
		}
		v := e.Risk.ValidateCoverOperation(ctx, strategyID, intent.Symbol, qty, snap.AvailableQuantity.Neg())
		res.warn(v.Warning)
		if !v.Valid {
			return p, res, v.Error
		}
		p.kind, p.prior, p.target = model.OrderKindCoverShort, risk.StateShort, risk.StateCovering
		return p, res, ""
	}

	if v := risk.ValidateQuantity(qty, risk.ActionBuy, decimal.Zero); !v.Valid {
		return p, res, v.Error
	}
	p.kind = model.OrderKindOpenLong
	return p, res, ""
}

// submit sends a Day limit order. Force-close sells try a market order
// first. Options fall back to a deep limit when the market has no liquidity.
func (e *Executor) submit(ctx context.Context, intent Intent, strategyID uint, p plan, log *logrus.Entry) (submission.Result, string, decimal.Decimal) {
	params := submission.Params{
		Symbol:            intent.Symbol,
		Side:              "Buy",
		OrderType:         "LO",
		SubmittedQuantity: p.quantity.String(),
		SubmittedPrice:    p.price.String(),
		TimeInForce:       "Day",
		Remark:            fmt.Sprintf("strategy-%d-%s", strategyID, uuid.NewString()),
	}
	if p.side == sideSell {
		params.Side = "Sell"
	}
	us := market.DetectMarket(intent.Symbol) == market.MarketUS
	if us {
		params.OutsideRTH = "ANY_TIME"
	}

	if !intent.ForceClose || p.side != sideSell {
		return e.Submitter.SubmitOrder(ctx, params), params.OrderType, p.price
	}

	mo := params
	mo.OrderType = "MO"
	mo.SubmittedPrice = ""
	if us {
		mo.OutsideRTH = "RTH_ONLY"
	}
	res := e.Submitter.SubmitOrder(ctx, mo)
	if res.Success || res.Error == nil || !market.IsOption(intent.Symbol) || !connectors.IsInsufficientLiquidity(res.Error.Message) {
		return res, mo.OrderType, decimal.Zero
	}

	limit := ForceClosePrice(p.fair, decimal.NewFromFloat(e.cfg.ForceCloseRatio))
	log.WithFields(logrus.Fields{
		"reason": res.Error.Message,
		"fair":   p.fair.String(),
		"limit":  limit.String(),
	}).Warn("Market order rejected for liquidity, retrying as limit order")

	params.SubmittedPrice = limit.String()
	return e.Submitter.SubmitOrder(ctx, params), params.OrderType, limit
}

var minTick = decimal.RequireFromString("0.01")

// ForceClosePrice is fair*ratio rounded to cents, at least one cent.
func ForceClosePrice(fair, ratio decimal.Decimal) decimal.Decimal {
	v := fair.Mul(ratio).Round(2)
	if v.LessThan(minTick) {
		return minTick
	}
	return v
}

// reject ends an intent that never became a broker order and marks its
// signal REJECTED so the strategy does not retry it.
func (e *Executor) reject(ctx context.Context, log *logrus.Entry, intent Intent, strategyID uint, side string, res Result, msg string) Result {
	res.Success = false
	res.Error = msg
	metrics.Executions.WithLabelValues(side, "rejected").Inc()
	log.WithField("reason", msg).Warn("Intent rejected")

	if e.Signals != nil {
		ref := reconcile.SignalRef{
			ID:         intent.SignalID,
			StrategyID: strategyID,
			Symbol:     intent.Symbol,
			Side:       side,
			At:         e.now(),
		}
		if _, err := e.Signals.MarkSignal(ctx, ref, externalmodel.SignalStatusRejected); err != nil {
			log.WithError(err).Warn("Failed to mark signal rejected")
		}
	}
	return res
}

func (e *Executor) unknown(log *logrus.Entry, side string, res Result) Result {
	res.Success = true
	res.FillUnknown = true
	if res.Status == "" {
		res.Status = model.ExecutionStatusSubmitted
	}
	metrics.Executions.WithLabelValues(side, "unknown").Inc()
	log.Info("Order submitted, status unknown")
	return res
}

// CancelOrder is idempotent: an order already in a terminal status is left
// alone and reported as success.
func (e *Executor) CancelOrder(ctx context.Context, orderID string) error {
	log := e.logger.WithField("order_id", orderID)

	if d, err := e.Broker.OrderDetail(ctx, orderID); err == nil && d != nil && Settled(d.Status) {
		log.WithField("status", d.Status).Info("Order already settled, nothing to cancel")
		return nil
	}

	if err := e.Broker.CancelOrder(ctx, orderID); err != nil {
		if d, derr := e.Broker.OrderDetail(ctx, orderID); derr == nil && d != nil && Settled(d.Status) {
			log.WithError(err).Info("Cancel raced with settlement, treating as done")
			return nil
		}
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}

	log.Info("Order cancel requested")
	return nil
}
