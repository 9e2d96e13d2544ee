// Package app assembles the execution stack from environment config.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradeexecutor/src/connectors"
	"tradeexecutor/src/database"
	"tradeexecutor/src/events"
	"tradeexecutor/src/execution"
	"tradeexecutor/src/executors"
	"tradeexecutor/src/gateway"
	"tradeexecutor/src/handler"
	"tradeexecutor/src/ordercache"
	"tradeexecutor/src/position"
	"tradeexecutor/src/pricing"
	"tradeexecutor/src/reconcile"
	"tradeexecutor/src/repository"
	"tradeexecutor/src/risk"
	"tradeexecutor/src/security"
	"tradeexecutor/src/server"
	"tradeexecutor/src/submission"
)

// BrokerClient is a gateway that holds connections to release on shutdown.
type BrokerClient interface {
	gateway.Gateway
	Close() error
}

// newBrokerClient is swapped in tests.
var newBrokerClient = func(appKey, appSecret, accessToken string) (BrokerClient, error) {
	return connectors.NewLongportClient(appKey, appSecret, accessToken)
}

type App struct {
	Gateway    gateway.Gateway
	Orders     *ordercache.TodayOrders
	Prices     *pricing.Cascade
	Positions  *position.Calculator
	Executor   *execution.Executor
	Push       *execution.TradePush
	Hub        *events.Hub
	Loop       *executors.Loop
	Submission *submission.Pipeline

	executionOrders *repository.ExecutionOrderRepository
	instances       *repository.StrategyInstanceRepository
	broker          BrokerClient
	limiter         *gateway.RateLimiter
	cache           *pricing.Cache
	log             *logrus.Entry
}

// New builds the stack on top of db, usually database.MainDB.
func New(db *gorm.DB, log *logrus.Entry) (*App, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if db == nil {
		db = database.MainDB
	}
	if db == nil {
		return nil, errors.New("database is not initialised")
	}

	connCfg := connectors.GetConfig()
	appKey, appSecret, accessToken, err := LongportCredentials(connCfg)
	if err != nil {
		return nil, err
	}
	broker, err := newBrokerClient(appKey, appSecret, accessToken)
	if err != nil {
		return nil, fmt.Errorf("connect broker: %w", err)
	}

	a := &App{broker: broker, log: log}

	a.limiter = gateway.NewRateLimiter(gateway.GetConfig())
	gw := gateway.NewLimited(broker, a.limiter)
	a.Gateway = gw

	caps, err := gateway.CheckCapabilities(gw)
	if err != nil {
		a.Close()
		return nil, err
	}

	priceCfg := pricing.GetConfig()
	a.cache = pricing.NewCache(priceCfg)
	a.cache.StartCleanup(priceCfg.CleanupInterval)

	var secondary pricing.SecondaryProvider
	if connCfg.MoomooQuoteToken != "" {
		token := connCfg.MoomooQuoteToken
		secondary = connectors.NewMoomooClient(connCfg, connectors.QuoteTokenFunc(func(map[string]string) string { return token }))
	} else {
		log.Warn("MOOMOO_QUOTE_TOKEN not set, secondary price provider disabled")
	}

	a.Orders = ordercache.New(gw, ordercache.GetConfig(), log)
	a.Prices = pricing.NewCascade(gw, secondary, a.cache, log)
	a.Positions = position.NewCalculator(gw, a.Orders, log)

	a.executionOrders = repository.NewExecutionOrderRepository().WithDB(db)
	signals := repository.NewStrategySignalRepository().WithDB(db)
	a.instances = repository.NewStrategyInstanceRepository().WithDB(db)
	a.Submission = submission.NewPipeline(gw, a.Orders, log)

	execCfg := execution.GetConfig()
	waiter := execution.NewFillWaiter(a.Orders, execCfg, log)

	a.Executor = execution.NewExecutor(log, execution.Deps{
		Broker:     gw,
		Prices:     a.Prices,
		Submitter:  a.Submission,
		Positions:  a.Positions,
		Risk:       risk.NewShortValidator(gw, a.instances, log),
		Waiter:     waiter,
		Records:    a.executionOrders,
		Trades:     repository.NewAutoTradeRepository().WithDB(db),
		Signals:    reconcile.NewReconciler(a.executionOrders, signals, reconcile.GetConfig(), log),
		Exceptions: repository.NewExceptionRepository().WithDB(db),
	}, execCfg)

	a.Hub = events.NewHub(log)
	a.Push = execution.NewTradePush(caps.Push, a.Orders, waiter, a.Hub, a.Positions, log)
	a.Loop = executors.NewLoop(a.executionOrders, a.Orders, a.Executor, executors.GetConfig(), log)

	return a, nil
}

// LongportCredentials prefers the encrypted *_ENC variables and falls back
// to the plain ones.
func LongportCredentials(cfg connectors.Config) (appKey, appSecret, accessToken string, err error) {
	pick := func(name, enc, plain string) (string, error) {
		if enc == "" {
			return plain, nil
		}
		v, err := security.DecryptString(enc)
		if err != nil {
			return "", fmt.Errorf("decrypt %s: %w", name, err)
		}
		return v, nil
	}

	if appKey, err = pick("LONGPORT_APP_KEY_ENC", cfg.LongportAppKeyEnc, cfg.LongportAppKey); err != nil {
		return "", "", "", err
	}
	if appSecret, err = pick("LONGPORT_APP_SECRET_ENC", cfg.LongportAppSecretEnc, cfg.LongportAppSecret); err != nil {
		return "", "", "", err
	}
	if accessToken, err = pick("LONGPORT_ACCESS_TOKEN_ENC", cfg.LongportAccessTokenEnc, cfg.LongportAccessToken); err != nil {
		return "", "", "", err
	}
	return appKey, appSecret, accessToken, nil
}

// Routes exposes the ops handlers backed by this stack.
func (a *App) Routes(cfg *server.Config) server.Routes {
	return server.Routes{
		Health:             handler.HealthHandler(a.Orders, a.cache, cfg.SnapshotStaleAfter),
		OrderEvents:        a.Hub,
		Positions:          handler.AvailablePositionHandler(a.Positions),
		ExecutionOrders:    handler.SearchExecutionOrdersHandler(a.executionOrders),
		ExecutionOrderLogs: handler.ExecutionOrderLogsHandler(a.executionOrders),
		StrategyInstances:  handler.StrategyInstancesHandler(a.instances),
		SubmitOrder:        handler.SubmitOrderHandler(a.Submission),
	}
}

// Close stops background work and the broker connections. Safe on a
// partially built App.
func (a *App) Close() {
	if a.Push != nil {
		if err := a.Push.Unsubscribe(context.Background()); err != nil {
			a.log.WithError(err).Warn("Failed to unsubscribe from order changes")
		}
	}
	if a.Hub != nil {
		a.Hub.Close()
	}
	if a.cache != nil {
		a.cache.StopCleanup()
	}
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.broker != nil {
		if err := a.broker.Close(); err != nil {
			a.log.WithError(err).Warn("Failed to close broker connections")
		}
	}
}
