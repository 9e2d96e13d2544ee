package execution

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeexecutor/src/gateway"
	"tradeexecutor/src/orderstatus"
)

type scriptedBook struct {
	calls    atomic.Int32
	statuses []string
}

func (b *scriptedBook) Refresh(ctx context.Context) ([]gateway.Order, error) {
	n := int(b.calls.Add(1)) - 1
	if n >= len(b.statuses) {
		n = len(b.statuses) - 1
	}
	return []gateway.Order{{OrderID: "701", Status: b.statuses[n], ExecutedQuantity: d("0")}}, nil
}

func TestFillWaiterPollsUntilSettled(t *testing.T) {
	book := &scriptedBook{statuses: []string{"New", "PartialFilled", "Filled"}}
	w := NewFillWaiter(book, Config{FillWaitTimeout: time.Second, FillPollInterval: 5 * time.Millisecond}, nil)

	o, settled := w.Wait(context.Background(), "701")
	require.True(t, settled)
	assert.Equal(t, orderstatus.Filled, o.Status)
	assert.Equal(t, int32(3), book.calls.Load(), "partial fills keep the waiter polling")
}

func TestFillWaiterTimesOut(t *testing.T) {
	book := &scriptedBook{statuses: []string{"NewStatus"}}
	w := NewFillWaiter(book, Config{FillWaitTimeout: 30 * time.Millisecond, FillPollInterval: 5 * time.Millisecond}, nil)

	start := time.Now()
	o, settled := w.Wait(context.Background(), "701")
	assert.False(t, settled)
	require.NotNil(t, o)
	assert.Equal(t, orderstatus.New, o.Status)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFillWaiterWakesOnPush(t *testing.T) {
	book := &scriptedBook{statuses: []string{"NewStatus"}}
	w := NewFillWaiter(book, Config{FillWaitTimeout: 5 * time.Second, FillPollInterval: time.Hour}, nil)

	go func() {
		for {
			w.mu.Lock()
			ready := len(w.waiters["701"]) > 0
			w.mu.Unlock()
			if ready {
				break
			}
			time.Sleep(time.Millisecond)
		}
		w.Notify(gateway.PushEvent{OrderID: "701", Symbol: "X.US", Status: "Cancelled"})
	}()

	o, settled := w.Wait(context.Background(), "701")
	require.True(t, settled)
	assert.Equal(t, orderstatus.Canceled, o.Status)

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.Empty(t, w.waiters, "waiter unregisters on return")
}
