package externalmodel

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SignalTypeBuy  = "BUY"
	SignalTypeSell = "SELL"

	SignalStatusPending  = "PENDING"
	SignalStatusExecuted = "EXECUTED"
	SignalStatusRejected = "REJECTED"
	SignalStatusIgnored  = "IGNORED"
)

// StrategySignal is written by the strategy layer. This service only
// updates Status.
type StrategySignal struct {
	ID         uint             `gorm:"primaryKey;column:id" json:"id"`
	StrategyID uint             `gorm:"column:strategy_id;index" json:"strategy_id"`
	Symbol     string           `gorm:"column:symbol;size:64;index" json:"symbol"`
	SignalType string           `gorm:"column:signal_type;size:10" json:"signal_type"`
	Status     string           `gorm:"column:status;size:20;default:PENDING" json:"status"`
	Price      *decimal.Decimal `gorm:"column:price;type:numeric" json:"price,omitempty"`
	Reason     string           `gorm:"column:reason;type:text" json:"reason"`
	CreatedAt  time.Time        `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time        `gorm:"column:updated_at" json:"updated_at"`
}

// TableName Ensures that GORM uses the exact table name from the database.
func (StrategySignal) TableName() string {
	return "strategy_signals"
}
