package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	logger "github.com/sirupsen/logrus"
)

// Routes are the handlers behind the ops surface. Nil entries are not mounted.
type Routes struct {
	// Health replaces the plain "OK" healthcheck when set.
	Health             http.HandlerFunc
	OrderEvents        http.Handler
	Positions          http.HandlerFunc
	ExecutionOrders    http.HandlerFunc
	ExecutionOrderLogs http.HandlerFunc
	StrategyInstances  http.HandlerFunc
	SubmitOrder        http.HandlerFunc
}

func NewRouter(routes Routes) http.Handler {
	r := chi.NewRouter()
	// === Global Middleware ===
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	if routes.Health != nil {
		r.Get("/healthcheck", routes.Health)
	} else {
		r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
			if _, err := w.Write([]byte("OK")); err != nil {
				logger.WithError(err).Error("/healthcheck write error")
			}
		})
	}
	r.Handle("/metrics", promhttp.Handler())

	if routes.OrderEvents != nil {
		r.Handle("/ws/order-events", routes.OrderEvents)
	}
	if routes.Positions != nil {
		r.Get("/positions/{symbol}", routes.Positions)
	}
	if routes.ExecutionOrders != nil {
		r.Get("/execution-orders", routes.ExecutionOrders)
	}
	if routes.ExecutionOrderLogs != nil {
		r.Get("/execution-orders/{orderId}/logs", routes.ExecutionOrderLogs)
	}
	if routes.StrategyInstances != nil {
		r.Get("/strategies/{strategyId}/instances", routes.StrategyInstances)
	}
	if routes.SubmitOrder != nil {
		r.Post("/orders", routes.SubmitOrder)
	}
	return r
}

// StartServer serves handler on cfg.Port until ctx is done, then shuts down
// gracefully.
func StartServer(ctx context.Context, cfg *Config, handler http.Handler) error {
	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.WithError(err).Error("Server crashed")
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown error")
		return err
	}
	return nil
}
