package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ExecutionStatusSubmitted = "SUBMITTED"
	ExecutionStatusFailed    = "FAILED"
)

// Order kinds say what a fill does to the strategy's position.
const (
	OrderKindOpenLong   = "OPEN_LONG"
	OrderKindCloseLong  = "CLOSE_LONG"
	OrderKindOpenShort  = "OPEN_SHORT"
	OrderKindCoverShort = "COVER_SHORT"
)

// ExecutionOrder is the audit row of one broker order submitted for a strategy.
// CurrentStatus holds the normalized broker status once one is observed.
type ExecutionOrder struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	StrategyID     uint            `gorm:"index" json:"strategy_id"`
	SignalID       *uint           `gorm:"index" json:"signal_id,omitempty"`
	Symbol         string          `gorm:"size:64;index" json:"symbol"`
	OrderID        string          `gorm:"size:64;uniqueIndex" json:"order_id"`
	Side           string          `gorm:"size:10" json:"side"` // BUY | SELL
	OrderType      string          `gorm:"size:20" json:"order_type"`
	Kind           string          `gorm:"size:20" json:"kind"`
	Quantity       decimal.Decimal `gorm:"type:numeric" json:"quantity"`
	Price          decimal.Decimal `gorm:"type:numeric" json:"price"`
	CurrentStatus  string          `gorm:"size:50;not null;default:SUBMITTED;index" json:"current_status"`
	ExecutionStage int             `gorm:"not null;default:1" json:"execution_stage"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`

	Logs []ExecutionOrderLog `gorm:"foreignKey:ExecutionOrderID" json:"logs,omitempty"`
}

func (ExecutionOrder) TableName() string {
	return "execution_orders"
}

// ExecutionOrderLog snapshots every status an execution order went through.
type ExecutionOrderLog struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	ExecutionOrderID uint            `gorm:"index" json:"execution_order_id"`
	ExecutionOrder   *ExecutionOrder `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	OrderID          string          `gorm:"size:64" json:"order_id"`
	Symbol           string          `gorm:"size:64" json:"symbol"`
	Side             string          `gorm:"size:10" json:"side"`
	Status           string          `gorm:"size:50;not null" json:"status"`
	Reason           string          `gorm:"size:255" json:"reason"`
	CreatedAt        time.Time       `json:"created_at"`
}

func (ExecutionOrderLog) TableName() string {
	return "execution_order_logs"
}
