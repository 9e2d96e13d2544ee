package pricing

import (
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradeexecutor/src/metrics"
)

// Source tags where a cached price came from. Its TTL depends on it.
type Source string

const (
	SourcePrimary   Source = "longport"
	SourceSecondary Source = "moomoo"
)

const minTTL = time.Second

type Entry struct {
	Price           decimal.Decimal
	Bid             decimal.Decimal
	Ask             decimal.Decimal
	Mid             decimal.Decimal
	UnderlyingPrice decimal.Decimal
	Timestamp       time.Time
	Source          Source
}

type Stats struct {
	Total   int
	Valid   int
	Expired int
}

// Cache holds the last positive price per symbol. Readers never see an
// entry older than its source TTL.
type Cache struct {
	mu           sync.RWMutex
	entries      map[string]Entry
	ttl          time.Duration
	secondaryTTL time.Duration
	now          func() time.Time

	stopMu sync.Mutex
	stop   chan struct{}
	done   chan struct{}
}

func NewCache(cfg Config) *Cache {
	c := &Cache{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
	c.SetTTL(cfg.TTL)
	c.secondaryTTL = cfg.SecondaryTTL
	if c.secondaryTTL < c.ttl {
		c.secondaryTTL = c.ttl
	}
	return c
}

func key(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Set stores e stamped with the current time. Missing bid/ask fall back to
// the price and mid is derived when both sides are present.
func (c *Cache) Set(symbol string, e Entry) {
	if e.Bid.IsZero() {
		e.Bid = e.Price
	}
	if e.Ask.IsZero() {
		e.Ask = e.Price
	}
	if e.Mid.IsZero() {
		e.Mid = e.Price
	}
	e.Timestamp = c.now()

	c.mu.Lock()
	c.entries[key(symbol)] = e
	c.mu.Unlock()
}

func (c *Cache) Get(symbol string) (Entry, bool) {
	k := key(symbol)

	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()
	if !ok {
		return Entry{}, false
	}

	if c.expired(e, c.now()) {
		c.mu.Lock()
		if cur, ok := c.entries[k]; ok && cur.Timestamp.Equal(e.Timestamp) {
			delete(c.entries, k)
		}
		c.mu.Unlock()
		return Entry{}, false
	}
	return e, true
}

func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]Entry)
	c.mu.Unlock()
}

// SetTTL changes the primary TTL. Values under one second are clamped.
func (c *Cache) SetTTL(ttl time.Duration) {
	if ttl < minTTL {
		ttl = minTTL
	}
	c.mu.Lock()
	c.ttl = ttl
	c.mu.Unlock()
}

func (c *Cache) TTL() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ttl
}

func (c *Cache) ttlFor(src Source) time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if src == SourceSecondary {
		return c.secondaryTTL
	}
	return c.ttl
}

func (c *Cache) expired(e Entry, now time.Time) bool {
	return now.Sub(e.Timestamp) > c.ttlFor(e.Source)
}

func (c *Cache) Stats() Stats {
	now := c.now()

	c.mu.RLock()
	entries := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	c.mu.RUnlock()

	s := Stats{Total: len(entries)}
	for _, e := range entries {
		if c.expired(e, now) {
			s.Expired++
		} else {
			s.Valid++
		}
	}
	return s
}

// Purge drops every expired entry and returns how many were removed.
func (c *Cache) Purge() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		ttl := c.ttl
		if e.Source == SourceSecondary {
			ttl = c.secondaryTTL
		}
		if now.Sub(e.Timestamp) > ttl {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// StartCleanup runs Purge every interval until StopCleanup. Calling it again
// restarts the loop.
func (c *Cache) StartCleanup(interval time.Duration) {
	if interval <= 0 {
		return
	}
	c.StopCleanup()

	c.stopMu.Lock()
	defer c.stopMu.Unlock()
	stop := make(chan struct{})
	done := make(chan struct{})
	c.stop, c.done = stop, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.recordStats()
				if n := c.Purge(); n > 0 {
					logger.WithFields(map[string]interface{}{
						"component": "price_cache",
						"removed":   n,
					}).Debug("Purged expired price entries")
				}
			}
		}
	}()
}

func (c *Cache) StopCleanup() {
	c.stopMu.Lock()
	defer c.stopMu.Unlock()
	if c.stop == nil {
		return
	}
	close(c.stop)
	<-c.done
	c.stop, c.done = nil, nil
}

// recordStats publishes the entry counts seen before a purge.
func (c *Cache) recordStats() {
	s := c.Stats()
	metrics.PriceCacheEntries.WithLabelValues("valid").Set(float64(s.Valid))
	metrics.PriceCacheEntries.WithLabelValues("expired").Set(float64(s.Expired))
}
