package execution

import (
	"github.com/shopspring/decimal"

	"tradeexecutor/src/pricing"
	"tradeexecutor/src/risk"
)

const (
	sideBuy  = "BUY"
	sideSell = "SELL"
)

// Intent is a strategy's request to trade. A negative Quantity on a sell
// opens a short; a buy against a short position covers it.
type Intent struct {
	Symbol     string              `json:"symbol"`
	Quantity   *decimal.Decimal    `json:"quantity"`
	EntryPrice *decimal.Decimal    `json:"entry_price,omitempty"`
	SellPrice  *decimal.Decimal    `json:"sell_price,omitempty"`
	SignalID   *uint               `json:"signal_id,omitempty"`
	Option     *pricing.OptionMeta `json:"option,omitempty"`
	ForceClose bool                `json:"force_close,omitempty"`
	Reason     string              `json:"reason,omitempty"`
}

// Result is returned for every intent. FillUnknown marks an order the broker
// accepted whose outcome is left to the reconciliation loop.
type Result struct {
	Success        bool             `json:"success"`
	OrderID        string           `json:"order_id,omitempty"`
	Status         string           `json:"status,omitempty"`
	FillUnknown    bool             `json:"fill_unknown,omitempty"`
	AvgPrice       decimal.Decimal  `json:"avg_price"`
	FilledQuantity decimal.Decimal  `json:"filled_quantity"`
	Fees           decimal.Decimal  `json:"fees"`
	Error          string           `json:"error,omitempty"`
	Warnings       []string         `json:"warnings,omitempty"`
	Margin         *risk.MarginInfo `json:"margin,omitempty"`
}

func (r *Result) warn(msg string) {
	if msg != "" {
		r.Warnings = append(r.Warnings, msg)
	}
}
