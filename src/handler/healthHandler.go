package handler

import (
	"net/http"
	"time"

	"tradeexecutor/src/pricing"
)

type snapshotAger interface {
	Age() (time.Duration, bool)
}

type priceCacheStats interface {
	Stats() pricing.Stats
}

type priceCacheHealth struct {
	Total   int `json:"total"`
	Valid   int `json:"valid"`
	Expired int `json:"expired"`
}

type healthResponse struct {
	Status string `json:"status"`
	// nil until the first order snapshot is loaded
	OrderSnapshotAgeSeconds *float64         `json:"order_snapshot_age_seconds"`
	OrderSnapshotStale      bool             `json:"order_snapshot_stale"`
	PriceCache              priceCacheHealth `json:"price_cache"`
}

// HealthHandler reports liveness plus cache freshness. The snapshot only
// refreshes on demand, so a stale one is reported but never fails the check.
func HealthHandler(orders snapshotAger, prices priceCacheStats, staleAfter time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "OK"}

		if age, ok := orders.Age(); ok {
			secs := age.Seconds()
			resp.OrderSnapshotAgeSeconds = &secs
			resp.OrderSnapshotStale = staleAfter > 0 && age > staleAfter
		}

		s := prices.Stats()
		resp.PriceCache = priceCacheHealth{Total: s.Total, Valid: s.Valid, Expired: s.Expired}

		writeJSON(w, resp)
	}
}
