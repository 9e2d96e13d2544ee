package reconcile

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"tradeexecutor/src/app"
	"tradeexecutor/src/database"
	"tradeexecutor/src/executors"
)

// Reconcile runs the reconciliation loop on its own, or a single pass.
type Reconcile struct {
	Log  *logrus.Entry
	Once bool
}

func (t *Reconcile) Start() error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	if err := database.InitMainDB(); err != nil {
		t.Log.WithError(err).Error("Failed to connect to main database")
		return err
	}

	a, err := app.New(database.MainDB, t.Log)
	if err != nil {
		t.Log.WithError(err).Error("Failed to build execution stack")
		return err
	}
	defer a.Close()

	if t.Once {
		sum, err := a.Loop.RunOnce(ctx)
		if err != nil {
			return err
		}
		t.Log.WithField("summary", sum).Info("Reconciliation pass finished")
		return nil
	}

	return executors.StartLoop(ctx, a.Loop)
}
