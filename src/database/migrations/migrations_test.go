package migrations

import (
	"errors"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"tradeexecutor/src/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open in memory db: %v", err)
	}
	if err := db.AutoMigrate(&model.ExecutionOrder{}, &model.AutoTrade{}); err != nil {
		t.Fatalf("failed to automigrate: %v", err)
	}
	return db
}

func TestRunNormalizesStatusesOnce(t *testing.T) {
	db := newTestDB(t)

	rows := []model.ExecutionOrder{
		{OrderID: "1", Symbol: "AAPL.US", CurrentStatus: "Filled"},
		{OrderID: "2", Symbol: "AAPL.US", CurrentStatus: "SUBMITTED"},
		{OrderID: "3", Symbol: "AAPL.US", CurrentStatus: "Cancelled"},
	}
	if err := db.Create(&rows).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := Run(db); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := map[string]string{"1": "FilledStatus", "2": "SUBMITTED", "3": "CanceledStatus"}
	for id, status := range want {
		var got model.ExecutionOrder
		if err := db.First(&got, "order_id = ?", id).Error; err != nil {
			t.Fatalf("load %s: %v", id, err)
		}
		if got.CurrentStatus != status {
			t.Fatalf("order %s: expected %s, got %s", id, status, got.CurrentStatus)
		}
	}

	// a second run must not touch rows written after the first one
	if err := db.Create(&model.ExecutionOrder{OrderID: "4", Symbol: "AAPL.US", CurrentStatus: "New"}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := Run(db); err != nil {
		t.Fatalf("second run: %v", err)
	}
	var later model.ExecutionOrder
	if err := db.First(&later, "order_id = ?", "4").Error; err != nil {
		t.Fatalf("load 4: %v", err)
	}
	if later.CurrentStatus != "New" {
		t.Fatalf("expected migration to run once, got %s", later.CurrentStatus)
	}

	var applied int64
	db.Model(&DataMigration{}).Count(&applied)
	if applied != 2 {
		t.Fatalf("expected 2 recorded migrations, got %d", applied)
	}
}

func TestRunRollsBackFailedMigration(t *testing.T) {
	db := newTestDB(t)

	saved := all
	t.Cleanup(func() { all = saved })

	calls := 0
	all = []Migration{{ID: "99999_broken", Fn: func(tx *gorm.DB) error {
		calls++
		if err := tx.Create(&model.ExecutionOrder{OrderID: "x", Symbol: "AAPL.US", CurrentStatus: "New"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	}}}

	if err := Run(db); err == nil {
		t.Fatalf("expected migration error")
	}
	var rows int64
	db.Model(&model.ExecutionOrder{}).Count(&rows)
	if rows != 0 {
		t.Fatalf("expected rollback, found %d rows", rows)
	}
	var applied int64
	db.Model(&DataMigration{}).Count(&applied)
	if applied != 0 {
		t.Fatalf("failed migration must not be recorded")
	}

	if err := Run(db); err == nil || calls != 2 {
		t.Fatalf("expected retry on next run, calls=%d", calls)
	}
}
