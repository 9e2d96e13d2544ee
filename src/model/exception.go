package model

import "time"

// Exception is a persisted failure that did not stop the execution path,
// e.g. an audit write that failed after the broker accepted an order.
type Exception struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Service string `gorm:"size:100;index" json:"service"` // e.g. "executor"
	Module  string `gorm:"size:100;index" json:"module"`  // e.g. "execution"
	Method  string `gorm:"size:100" json:"method"`        // e.g. "recordOrder"

	StrategyID *uint  `gorm:"index" json:"strategy_id,omitempty"`
	Symbol     string `gorm:"size:64" json:"symbol,omitempty"`
	OrderID    string `gorm:"size:64;index" json:"order_id,omitempty"`

	Message string `gorm:"type:text" json:"message"`
	Level   string `gorm:"size:20;index" json:"level"` // debug | info | warn | error | fatal

	// Extra context as JSON
	Context string `gorm:"type:jsonb" json:"context,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
