package model

import "time"

// StrategyInstance holds the lifecycle state of one (strategy, symbol) pair.
type StrategyInstance struct {
	StrategyID   uint      `gorm:"primaryKey;autoIncrement:false" json:"strategy_id"`
	Symbol       string    `gorm:"primaryKey;size:64" json:"symbol"`
	CurrentState string    `gorm:"size:20;not null" json:"current_state"`
	Context      string    `gorm:"type:jsonb" json:"context,omitempty"`
	LastUpdated  time.Time `json:"last_updated"`
}

func (StrategyInstance) TableName() string {
	return "strategy_instances"
}
