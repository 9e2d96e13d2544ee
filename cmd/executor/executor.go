package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"tradeexecutor/src/app"
	"tradeexecutor/src/database"
	"tradeexecutor/src/execution"
	"tradeexecutor/src/executors"
	"tradeexecutor/src/server"
)

// Executor runs the execution service: order push, reconciliation loop and
// the ops server. With an Intent set it executes that intent and exits.
type Executor struct {
	Log        *logrus.Entry
	Intent     string
	Side       string
	StrategyID uint
}

func (t *Executor) Start() error {
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

	if err := a.Push.Subscribe(ctx); err != nil {
		t.Log.WithError(err).Warn("Continuing without order push")
	}

	if t.Intent != "" {
		return t.executeOnce(ctx, a.Executor)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return executors.StartLoop(ctx, a.Loop)
	})
	g.Go(func() error {
		cfg := server.GetConfig()
		return server.StartServer(ctx, cfg, server.NewRouter(a.Routes(cfg)))
	})
	return g.Wait()
}

func (t *Executor) executeOnce(ctx context.Context, exec *execution.Executor) error {
	intent, buy, err := ParseIntent(t.Intent, t.Side)
	if err != nil {
		return err
	}

	var res execution.Result
	if buy {
		res = exec.ExecuteBuyIntent(ctx, intent, t.StrategyID)
	} else {
		res = exec.ExecuteSellIntent(ctx, intent, t.StrategyID)
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if !res.Success {
		return fmt.Errorf("intent not executed: %s", res.Error)
	}
	return nil
}

// ParseIntent decodes a JSON intent and the side it should be sent as.
func ParseIntent(raw, side string) (execution.Intent, bool, error) {
	var intent execution.Intent
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&intent); err != nil {
		return intent, false, fmt.Errorf("invalid intent: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(side)) {
	case "buy":
		return intent, true, nil
	case "sell":
		return intent, false, nil
	default:
		return intent, false, fmt.Errorf("invalid side %q, expected buy or sell", side)
	}
}
