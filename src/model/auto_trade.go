package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TradeStatusFilled          = "FILLED"
	TradeStatusPartiallyFilled = "PARTIALLY_FILLED"
)

// AutoTrade is the trade ledger. An open row has no CloseTime; closing fills
// set CloseTime and PnL on the matching open row.
type AutoTrade struct {
	ID         uint             `gorm:"primaryKey" json:"id"`
	StrategyID uint             `gorm:"index:idx_auto_trades_open" json:"strategy_id"`
	Symbol     string           `gorm:"size:64;index:idx_auto_trades_open" json:"symbol"`
	Side       string           `gorm:"size:10;index:idx_auto_trades_open" json:"side"`
	Quantity   decimal.Decimal  `gorm:"type:numeric" json:"quantity"`
	AvgPrice   decimal.Decimal  `gorm:"type:numeric" json:"avg_price"`
	Fees       decimal.Decimal  `gorm:"type:numeric" json:"fees"`
	PnL        *decimal.Decimal `gorm:"column:pnl;type:numeric" json:"pnl,omitempty"`
	Status     string           `gorm:"size:30" json:"status"`
	OrderID    string           `gorm:"size:64;index" json:"order_id"`
	OpenTime   time.Time        `json:"open_time"`
	CloseTime  *time.Time       `json:"close_time,omitempty"`
}

func (AutoTrade) TableName() string {
	return "auto_trades"
}
