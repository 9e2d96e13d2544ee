package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"tradeexecutor/src/model"
)

type strategyInstanceLister interface {
	ListByStrategy(ctx context.Context, strategyID uint) ([]model.StrategyInstance, error)
}

// StrategyInstancesHandler lists the per-symbol state of the {strategyId}
// path parameter, most recently updated first.
func StrategyInstancesHandler(repo strategyInstanceLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(chi.URLParam(r, "strategyId"), 10, 64)
		if err != nil {
			http.Error(w, "invalid strategyId", http.StatusBadRequest)
			return
		}

		instances, err := repo.ListByStrategy(r.Context(), uint(id))
		if err != nil {
			logger.WithError(err).Error("failed to list strategy instances")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if instances == nil {
			instances = []model.StrategyInstance{}
		}

		writeJSON(w, instances)
	}
}
