// Package submission turns canonical order parameters into a broker order
// request and submits it through the rate-limited gateway.
package submission

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"tradeexecutor/src/gateway"
	"tradeexecutor/src/market"
)

const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeInvalidLotSize   = "INVALID_LOT_SIZE"
	CodeInvalidOrderType = "INVALID_ORDER_TYPE"
	CodeInvalidSide      = "INVALID_SIDE"
	CodeSubmitFailed     = "ORDER_SUBMIT_FAILED"
)

type Error struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type Result struct {
	Success bool   `json:"success"`
	OrderID string `json:"order_id,omitempty"`
	Status  string `json:"status,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

func failed(code, msg string, details ...string) Result {
	return Result{Error: &Error{Code: code, Message: msg, Details: details}}
}

// Broker is the part of the gateway the pipeline needs.
type Broker interface {
	SubmitOrder(ctx context.Context, req gateway.SubmitRequest) (string, error)
	StaticInfo(ctx context.Context, symbols []string) ([]gateway.StaticInfo, error)
}

// Invalidator is told when the broker's order book has changed.
type Invalidator interface {
	Clear()
}

type Pipeline struct {
	broker Broker
	orders Invalidator
	logger *logrus.Entry
	now    func() time.Time
}

func NewPipeline(broker Broker, orders Invalidator, logger *logrus.Entry) *Pipeline {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Pipeline{
		broker: broker,
		orders: orders,
		logger: logger.WithField("component", "order_submission"),
		now:    time.Now,
	}
}

// SubmitOrder validates, checks the lot size, builds the request and
// submits it. Validation failures never reach the broker.
func (p *Pipeline) SubmitOrder(ctx context.Context, params Params) Result {
	params = params.withDefaults()

	if errs := ValidateParams(params, p.now()); len(errs) > 0 {
		p.logger.WithFields(map[string]interface{}{
			"symbol": params.Symbol,
			"errors": errs,
		}).Warn("Order parameters rejected")
		return failed(CodeValidation, "Order parameter validation failed", errs...)
	}

	quantity, _ := strconv.ParseUint(params.SubmittedQuantity, 10, 64)

	if res, ok := p.checkLotSize(ctx, params.Symbol, quantity); !ok {
		return res
	}

	req, res, ok := BuildRequest(params, quantity)
	if !ok {
		return res
	}

	fields := map[string]interface{}{
		"symbol":     req.Symbol,
		"side":       req.Side,
		"order_type": req.OrderType,
		"quantity":   req.Quantity,
	}
	if req.Price != nil {
		fields["price"] = req.Price.String()
	}
	p.logger.WithFields(fields).Info("Submitting order")

	orderID, err := p.broker.SubmitOrder(ctx, req)
	if err != nil {
		p.logger.WithFields(fields).WithError(err).Error("Order submission failed")
		return failed(CodeSubmitFailed, err.Error())
	}
	if orderID == "" {
		return failed(CodeSubmitFailed, "Order submission failed: no order id returned")
	}

	if p.orders != nil {
		p.orders.Clear()
	}

	p.logger.WithFields(fields).WithField("order_id", orderID).Info("Order submitted")
	return Result{Success: true, OrderID: orderID}
}

// SubmitRaw accepts a loosely typed request, e.g. decoded JSON from an
// operator, and submits it after alias normalization.
func (p *Pipeline) SubmitRaw(ctx context.Context, raw map[string]interface{}) Result {
	return p.SubmitOrder(ctx, NormalizeParams(raw))
}

// checkLotSize never blocks on a metadata failure.
func (p *Pipeline) checkLotSize(ctx context.Context, symbol string, quantity uint64) (Result, bool) {
	infos, err := p.broker.StaticInfo(ctx, []string{symbol})
	if err != nil {
		p.logger.WithError(err).WithField("symbol", symbol).Warn("Lot size lookup failed, skipping check")
		return Result{}, true
	}
	if len(infos) == 0 || infos[0].LotSize <= 0 {
		return Result{}, true
	}

	lot := uint64(infos[0].LotSize)
	if quantity%lot == 0 {
		return Result{}, true
	}

	suggested := (quantity + lot - 1) / lot * lot
	p.logger.WithFields(map[string]interface{}{
		"symbol":   symbol,
		"quantity": quantity,
		"lot_size": lot,
	}).Warn("Quantity is not a multiple of the lot size")

	return failed(CodeInvalidLotSize,
		fmt.Sprintf("Quantity must be a multiple of the lot size %d", lot),
		fmt.Sprintf("Current quantity: %d", quantity),
		fmt.Sprintf("Lot size: %d", lot),
		fmt.Sprintf("Suggested quantity: %d", suggested),
	), false
}

// BuildRequest maps validated params onto the broker request shape.
func BuildRequest(params Params, quantity uint64) (gateway.SubmitRequest, Result, bool) {
	if !contains(orderTypes, params.OrderType) {
		return gateway.SubmitRequest{}, failed(CodeInvalidOrderType, fmt.Sprintf("Invalid order type: %s", params.OrderType)), false
	}

	var side string
	switch params.Side {
	case "Buy":
		side = gateway.SideBuy
	case "Sell":
		side = gateway.SideSell
	default:
		return gateway.SubmitRequest{}, failed(CodeInvalidSide, fmt.Sprintf("Invalid side: %s", params.Side)), false
	}

	tif := "Day"
	switch params.TimeInForce {
	case "GTC", "GTD":
		tif = params.TimeInForce
	}

	req := gateway.SubmitRequest{
		Symbol:          params.Symbol,
		OrderType:       params.OrderType,
		Side:            side,
		Quantity:        quantity,
		TimeInForce:     tif,
		Remark:          params.Remark,
		Price:           optDecimal(params.SubmittedPrice),
		TriggerPrice:    optDecimal(params.TriggerPrice),
		TrailingAmount:  optDecimal(params.TrailingAmount),
		TrailingPercent: optDecimal(params.TrailingPercent),
		LimitOffset:     optDecimal(params.LimitOffset),
	}

	if tif == "GTD" && params.ExpireDate != "" {
		if t, err := time.Parse("2006-01-02", params.ExpireDate); err == nil {
			req.ExpireDate = &t
		}
	}

	if market.DetectMarket(params.Symbol) == market.MarketUS && params.OutsideRTH != "" {
		req.OutsideRTH = params.OutsideRTH
	}

	return req, Result{}, true
}

func optDecimal(s string) *decimal.Decimal {
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}
