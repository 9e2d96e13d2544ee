// Package migrations runs one-off data fixes that AutoMigrate cannot express.
package migrations

import (
	"errors"
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DataMigration records an applied migration id.
type DataMigration struct {
	ID        string    `gorm:"primaryKey;size:200;column:id"`
	AppliedAt time.Time `gorm:"not null;column:applied_at"`
}

func (DataMigration) TableName() string { return "data_migrations" }

// Migration is a named data fix. IDs are never reused or reordered.
type Migration struct {
	ID string
	Fn func(*gorm.DB) error
}

var all = []Migration{
	{ID: "00001_normalize_execution_order_status", Fn: normalizeExecutionOrderStatus},
	{ID: "00002_backfill_auto_trade_fees", Fn: backfillAutoTradeFees},
}

// Run applies every pending migration in declaration order.
func Run(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	if err := db.AutoMigrate(&DataMigration{}); err != nil {
		return fmt.Errorf("ensure data migrations table: %w", err)
	}

	for _, m := range all {
		applied, err := apply(db, m)
		if err != nil {
			return err
		}
		if applied {
			logger.WithField("migration", m.ID).Info("Data migration applied")
		}
	}
	return nil
}

// apply runs m inside a transaction and records it there, so a failed fix
// leaves no trace and is retried on the next start.
func apply(db *gorm.DB, m Migration) (bool, error) {
	if m.ID == "" || m.Fn == nil {
		return false, fmt.Errorf("invalid migration %q", m.ID)
	}

	applied := false
	err := db.Transaction(func(tx *gorm.DB) error {
		err := tx.First(&DataMigration{}, "id = ?", m.ID).Error
		switch {
		case err == nil:
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("check migration %q: %w", m.ID, err)
		}

		if err := m.Fn(tx); err != nil {
			return fmt.Errorf("run migration %q: %w", m.ID, err)
		}
		if err := tx.Create(&DataMigration{ID: m.ID, AppliedAt: time.Now().UTC()}).Error; err != nil {
			return fmt.Errorf("record migration %q: %w", m.ID, err)
		}
		applied = true
		return nil
	})
	return applied, err
}
