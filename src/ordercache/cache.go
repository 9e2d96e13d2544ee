package ordercache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"tradeexecutor/src/gateway"
)

type Config struct {
	TTL            time.Duration `envconfig:"TODAY_ORDERS_TTL" default:"60s"`
	RefreshTimeout time.Duration `envconfig:"TODAY_ORDERS_REFRESH_TIMEOUT" default:"30s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

type snapshot struct {
	orders  []gateway.Order
	fetched time.Time
}

// TodayOrders caches the broker's order book for the day so exposure can be
// computed without one rate-limited call per consumer.
type TodayOrders struct {
	gw     gateway.Gateway
	cfg    Config
	logger *logrus.Entry
	now    func() time.Time

	group singleflight.Group
	mu    sync.RWMutex
	snap  *snapshot
}

func New(gw gateway.Gateway, cfg Config, logger *logrus.Entry) *TodayOrders {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Minute
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = 30 * time.Second
	}
	return &TodayOrders{
		gw:     gw,
		cfg:    cfg,
		logger: logger.WithField("component", "today_orders_cache"),
		now:    time.Now,
	}
}

// Get returns the cached orders while fresh, otherwise refreshes them.
// Concurrent refreshes share one broker call. A failed refresh falls back to
// the previous snapshot; without one the error is returned.
func (c *TodayOrders) Get(ctx context.Context) ([]gateway.Order, error) {
	if orders, ok := c.fresh(); ok {
		return orders, nil
	}
	return c.Refresh(ctx)
}

// Refresh bypasses the TTL.
func (c *TodayOrders) Refresh(ctx context.Context) ([]gateway.Order, error) {
	ch := c.group.DoChan("today", func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.RefreshTimeout)
		defer cancel()
		return c.load(callCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]gateway.Order), nil
	}
}

func (c *TodayOrders) load(ctx context.Context) ([]gateway.Order, error) {
	orders, err := c.gw.TodayOrders(ctx, "")
	if err != nil {
		c.mu.RLock()
		stale := c.snap
		c.mu.RUnlock()

		if stale != nil {
			c.logger.WithError(err).WithField("age", c.now().Sub(stale.fetched).String()).
				Warn("Today's orders refresh failed, serving stale snapshot")
			return stale.orders, nil
		}
		c.logger.WithError(err).Error("Today's orders refresh failed and no snapshot is cached")
		return nil, fmt.Errorf("today orders: %w", err)
	}

	if orders == nil {
		orders = []gateway.Order{}
	}
	c.mu.Lock()
	c.snap = &snapshot{orders: orders, fetched: c.now()}
	c.mu.Unlock()

	c.logger.WithField("count", len(orders)).Debug("Today's orders refreshed")
	return orders, nil
}

func (c *TodayOrders) fresh() ([]gateway.Order, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil || c.now().Sub(c.snap.fetched) >= c.cfg.TTL {
		return nil, false
	}
	return c.snap.orders, true
}

// Clear drops the snapshot so the next Get hits the broker.
func (c *TodayOrders) Clear() {
	c.mu.Lock()
	c.snap = nil
	c.mu.Unlock()
}

// Age reports how old the snapshot is; ok is false when nothing is cached.
func (c *TodayOrders) Age() (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil {
		return 0, false
	}
	return c.now().Sub(c.snap.fetched), true
}
