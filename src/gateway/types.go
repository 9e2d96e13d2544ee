package gateway

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SideBuy  = "Buy"
	SideSell = "Sell"
)

// Order is one entry of the broker's order book for the trading day.
type Order struct {
	OrderID          string
	Symbol           string
	Side             string
	OrderType        string
	Status           string
	Quantity         decimal.Decimal
	ExecutedQuantity decimal.Decimal
	Price            decimal.Decimal
	ExecutedPrice    decimal.Decimal
	Message          string
	SubmittedAt      time.Time
}

// Unfilled returns submitted minus executed quantity, floored at zero.
func (o Order) Unfilled() decimal.Decimal {
	rest := o.Quantity.Sub(o.ExecutedQuantity)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

type OrderDetail struct {
	Order
	Fees decimal.Decimal
}

type Position struct {
	Symbol            string
	Quantity          decimal.Decimal
	AvailableQuantity decimal.Decimal
	CostPrice         decimal.Decimal
	Currency          string
}

type AccountBalance struct {
	Currency          string
	TotalCash         decimal.Decimal
	NetAssets         decimal.Decimal
	InitMargin        decimal.Decimal
	MaintenanceMargin decimal.Decimal
	AvailableCash     decimal.Decimal
}

// Quote carries whatever price fields a source returned; zero means absent.
type Quote struct {
	Symbol          string
	Last            decimal.Decimal
	Bid             decimal.Decimal
	Ask             decimal.Decimal
	UnderlyingPrice decimal.Decimal
	Timestamp       time.Time
}

type DepthLevel struct {
	Price  decimal.Decimal
	Volume int64
}

type Depth struct {
	Symbol string
	Asks   []DepthLevel
	Bids   []DepthLevel
}

type StaticInfo struct {
	Symbol  string
	LotSize int64
}

// SubmitRequest is the broker order request built by the submission pipeline.
type SubmitRequest struct {
	Symbol          string
	OrderType       string
	Side            string
	Quantity        uint64
	Price           *decimal.Decimal
	TriggerPrice    *decimal.Decimal
	LimitOffset     *decimal.Decimal
	TrailingAmount  *decimal.Decimal
	TrailingPercent *decimal.Decimal
	ExpireDate      *time.Time
	TimeInForce     string
	OutsideRTH      string
	Remark          string
}

type ReplaceRequest struct {
	OrderID  string
	Quantity uint64
	Price    *decimal.Decimal
}

// PushEvent is an order-state change delivered by the broker push channel.
type PushEvent struct {
	OrderID          string
	Symbol           string
	Side             string
	Status           string
	Quantity         decimal.Decimal
	ExecutedQuantity decimal.Decimal
	ExecutedPrice    decimal.Decimal
	Message          string
	ReceivedAt       time.Time
}
