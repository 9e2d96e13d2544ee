package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"tradeexecutor/src/database"
	"tradeexecutor/src/externalmodel"
	"tradeexecutor/src/model"
	"tradeexecutor/src/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database.Models()...))
	return db
}

type fixture struct {
	db      *gorm.DB
	orders  *repository.ExecutionOrderRepository
	signals *repository.StrategySignalRepository
	rec     *Reconciler
}

func newFixture(t *testing.T) fixture {
	db := newTestDB(t)
	orders := (&repository.ExecutionOrderRepository{}).WithDB(db)
	signals := (&repository.StrategySignalRepository{}).WithDB(db)
	return fixture{
		db:      db,
		orders:  orders,
		signals: signals,
		rec:     NewReconciler(orders, signals, Config{MatchWindow: 30 * time.Minute}, nil),
	}
}

func (f fixture) seedOrder(t *testing.T, orderID string, at time.Time, signalID *uint) {
	t.Helper()
	o := &model.ExecutionOrder{
		StrategyID: 7,
		SignalID:   signalID,
		Symbol:     "AAPL.US",
		OrderID:    orderID,
		Side:       "BUY",
	}
	require.NoError(t, f.orders.CreateWithAutoLog(context.Background(), o))
	require.NoError(t, f.db.Model(o).Update("created_at", at).Error)
}

func (f fixture) seedSignal(t *testing.T, at time.Time) uint {
	t.Helper()
	s := externalmodel.StrategySignal{
		StrategyID: 7,
		Symbol:     "AAPL.US",
		SignalType: externalmodel.SignalTypeBuy,
		Status:     externalmodel.SignalStatusPending,
		CreatedAt:  at,
	}
	require.NoError(t, f.db.Create(&s).Error)
	return s.ID
}

func (f fixture) signalStatus(t *testing.T, id uint) string {
	t.Helper()
	s, err := f.signals.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, s)
	return s.Status
}

func TestUpdateSignalStatusPrefersSignalBeforeOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderTime := time.Date(2025, 3, 4, 15, 0, 0, 0, time.UTC)

	early := f.seedSignal(t, orderTime.Add(-5*time.Minute))
	late := f.seedSignal(t, orderTime.Add(40*time.Minute))
	f.seedOrder(t, "701", orderTime, nil)

	changed, err := f.rec.UpdateSignalStatusByOrderID(ctx, "701", externalmodel.SignalStatusExecuted)
	require.NoError(t, err)
	assert.True(t, changed)

	assert.Equal(t, externalmodel.SignalStatusExecuted, f.signalStatus(t, early))
	assert.Equal(t, externalmodel.SignalStatusPending, f.signalStatus(t, late))

	order, err := f.orders.FindByOrderID(ctx, "701")
	require.NoError(t, err)
	require.NotNil(t, order.SignalID)
	assert.Equal(t, early, *order.SignalID)
}

func TestUpdateSignalStatusUsesStoredReference(t *testing.T) {
	f := newFixture(t)
	orderTime := time.Date(2025, 3, 4, 15, 0, 0, 0, time.UTC)

	// far outside the window, reachable only through the reference
	linked := f.seedSignal(t, orderTime.Add(-3*time.Hour))
	nearby := f.seedSignal(t, orderTime.Add(-time.Minute))
	f.seedOrder(t, "702", orderTime, &linked)

	changed, err := f.rec.UpdateSignalStatusByOrderID(context.Background(), "702", externalmodel.SignalStatusRejected)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, externalmodel.SignalStatusRejected, f.signalStatus(t, linked))
	assert.Equal(t, externalmodel.SignalStatusPending, f.signalStatus(t, nearby))
}

func TestUpdateSignalStatusAmbiguousLeavesSignalsUntouched(t *testing.T) {
	f := newFixture(t)
	orderTime := time.Date(2025, 3, 4, 15, 0, 0, 0, time.UTC)

	a := f.seedSignal(t, orderTime.Add(-5*time.Minute))
	b := f.seedSignal(t, orderTime.Add(-5*time.Minute))
	f.seedOrder(t, "703", orderTime, nil)

	changed, err := f.rec.UpdateSignalStatusByOrderID(context.Background(), "703", externalmodel.SignalStatusExecuted)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, externalmodel.SignalStatusPending, f.signalStatus(t, a))
	assert.Equal(t, externalmodel.SignalStatusPending, f.signalStatus(t, b))
}

func TestUpdateSignalStatusUnknownOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.rec.UpdateSignalStatusByOrderID(context.Background(), "missing", externalmodel.SignalStatusExecuted)
	assert.True(t, errors.Is(err, ErrOrderNotFound))
}

func TestPickSignal(t *testing.T) {
	at := time.Date(2025, 3, 4, 15, 0, 0, 0, time.UTC)
	sig := func(id uint, offset time.Duration) externalmodel.StrategySignal {
		return externalmodel.StrategySignal{ID: id, CreatedAt: at.Add(offset)}
	}

	tests := []struct {
		name       string
		candidates []externalmodel.StrategySignal
		wantID     uint
		wantOK     bool
	}{
		{"empty", nil, 0, false},
		{"before beats closer after", []externalmodel.StrategySignal{sig(1, -10 * time.Minute), sig(2, time.Minute)}, 1, true},
		{"nearest before", []externalmodel.StrategySignal{sig(1, -20 * time.Minute), sig(2, -2 * time.Minute)}, 2, true},
		{"after only", []externalmodel.StrategySignal{sig(3, 9 * time.Minute), sig(4, 4 * time.Minute)}, 4, true},
		{"same instant counts as before", []externalmodel.StrategySignal{sig(5, 0), sig(6, time.Second)}, 5, true},
		{"tie after", []externalmodel.StrategySignal{sig(7, 4 * time.Minute), sig(8, 4 * time.Minute)}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PickSignal(tt.candidates, at)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantID, got.ID)
			}
		})
	}
}

func TestSignalTypeForSide(t *testing.T) {
	assert.Equal(t, "BUY", SignalTypeForSide("Buy"))
	assert.Equal(t, "SELL", SignalTypeForSide(" sell "))
	assert.Equal(t, "", SignalTypeForSide("hold"))
}

func TestMarkSignalWithoutOrder(t *testing.T) {
	f := newFixture(t)
	at := time.Date(2025, 3, 4, 15, 0, 0, 0, time.UTC)
	id := f.seedSignal(t, at.Add(-time.Minute))

	got, err := f.rec.MarkSignal(context.Background(), SignalRef{
		StrategyID: 7,
		Symbol:     "AAPL.US",
		Side:       "BUY",
		At:         at,
	}, externalmodel.SignalStatusRejected)
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.Equal(t, externalmodel.SignalStatusRejected, f.signalStatus(t, id))
}
