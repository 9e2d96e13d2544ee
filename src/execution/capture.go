package execution

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"tradeexecutor/src/model"
)

// ExceptionSink persists failures that must not interrupt execution.
type ExceptionSink interface {
	Create(ctx context.Context, exc *model.Exception) error
}

// Failure describes a bookkeeping error raised after the broker already
// holds the order.
type Failure struct {
	Method     string
	StrategyID uint
	Symbol     string
	OrderID    string
	Err        error
	Context    map[string]interface{}
}

// Capture logs f and stores it through sink. It never returns an error.
func Capture(ctx context.Context, sink ExceptionSink, log *logrus.Entry, f Failure) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	msg := "unknown error"
	if f.Err != nil {
		msg = f.Err.Error()
	}

	log.WithFields(logrus.Fields{
		"method":      f.Method,
		"strategy_id": f.StrategyID,
		"symbol":      f.Symbol,
		"order_id":    f.OrderID,
	}).WithError(f.Err).Error("Execution bookkeeping failed")

	if sink == nil {
		return
	}

	payload := "{}"
	if len(f.Context) > 0 {
		if b, err := json.Marshal(f.Context); err == nil {
			payload = string(b)
		}
	}

	exc := &model.Exception{
		Service: "executor",
		Module:  "execution",
		Method:  f.Method,
		Symbol:  f.Symbol,
		OrderID: f.OrderID,
		Message: msg,
		Level:   "error",
		Context: payload,
	}
	if f.StrategyID != 0 {
		id := f.StrategyID
		exc.StrategyID = &id
	}

	if err := sink.Create(context.WithoutCancel(ctx), exc); err != nil {
		log.WithError(err).Warn("Failed to persist exception")
	}
}
