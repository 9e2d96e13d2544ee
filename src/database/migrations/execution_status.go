package migrations

import (
	"fmt"

	"gorm.io/gorm"

	"tradeexecutor/src/orderstatus"
)

// rows written before statuses were normalized carry short or numeric forms
var preservedStatuses = map[string]bool{
	"SUBMITTED": true,
	"FAILED":    true,
}

func normalizeExecutionOrderStatus(db *gorm.DB) error {
	var statuses []string
	if err := db.Table("execution_orders").Distinct("current_status").Pluck("current_status", &statuses).Error; err != nil {
		return fmt.Errorf("list execution order statuses: %w", err)
	}

	for _, s := range statuses {
		if preservedStatuses[s] {
			continue
		}
		n := orderstatus.Normalize(s)
		if n == s {
			continue
		}
		if err := db.Table("execution_orders").
			Where("current_status = ?", s).
			Update("current_status", n).Error; err != nil {
			return fmt.Errorf("normalize status %q: %w", s, err)
		}
	}
	return nil
}

func backfillAutoTradeFees(db *gorm.DB) error {
	return db.Exec("UPDATE auto_trades SET fees = 0 WHERE fees IS NULL").Error
}
