package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"tradeexecutor/src/model"
	"tradeexecutor/src/orderstatus"
	"tradeexecutor/src/repository"
)

const maxPageSize = 200

type executionOrderSearcher interface {
	Search(ctx context.Context, options repository.ExecutionOrderSearchOptions) ([]model.ExecutionOrder, error)
}

// SearchExecutionOrdersHandler lists audited execution orders newest first.
// Supports pagination and filters (strategyId, symbol, status, createdFrom, createdTo).
func SearchExecutionOrdersHandler(repo executionOrderSearcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var strategyID *uint
		if strategyParam := q.Get("strategyId"); strategyParam != "" {
			id, err := strconv.ParseUint(strategyParam, 10, 64)
			if err != nil {
				http.Error(w, "invalid strategyId", http.StatusBadRequest)
				return
			}
			strategy := uint(id)
			strategyID = &strategy
		}

		var symbol *string
		if symbolParam := q.Get("symbol"); symbolParam != "" {
			symbol = &symbolParam
		}

		var status *string
		if statusParam := q.Get("status"); statusParam != "" {
			if statusParam != model.ExecutionStatusSubmitted {
				statusParam = orderstatus.Normalize(statusParam)
			}
			status = &statusParam
		}

		var createdFrom, createdTo *time.Time
		if createdFromParam := q.Get("createdFrom"); createdFromParam != "" {
			parsed, err := time.Parse(time.RFC3339, createdFromParam)
			if err != nil {
				http.Error(w, "invalid createdFrom", http.StatusBadRequest)
				return
			}
			createdFrom = &parsed
		}

		if createdToParam := q.Get("createdTo"); createdToParam != "" {
			parsed, err := time.Parse(time.RFC3339, createdToParam)
			if err != nil {
				http.Error(w, "invalid createdTo", http.StatusBadRequest)
				return
			}
			createdTo = &parsed
		}

		page := 1
		if pageParam := q.Get("page"); pageParam != "" {
			parsedPage, err := strconv.Atoi(pageParam)
			if err != nil || parsedPage <= 0 {
				http.Error(w, "invalid page", http.StatusBadRequest)
				return
			}
			page = parsedPage
		}

		pageSize := 20
		if sizeParam := q.Get("pageSize"); sizeParam != "" {
			parsedSize, err := strconv.Atoi(sizeParam)
			if err != nil || parsedSize <= 0 {
				http.Error(w, "invalid pageSize", http.StatusBadRequest)
				return
			}
			pageSize = min(parsedSize, maxPageSize)
		}

		orders, err := repo.Search(r.Context(), repository.ExecutionOrderSearchOptions{
			StrategyID:    strategyID,
			Symbol:        symbol,
			Status:        status,
			CreatedAfter:  createdFrom,
			CreatedBefore: createdTo,
			Limit:         pageSize,
			Offset:        (page - 1) * pageSize,
		})
		if err != nil {
			logger.WithError(err).Error("failed to search execution orders")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if orders == nil {
			orders = []model.ExecutionOrder{}
		}

		writeJSON(w, orders)
	}
}

type executionOrderLogFinder interface {
	FindLogs(ctx context.Context, orderID string) ([]model.ExecutionOrderLog, error)
}

// ExecutionOrderLogsHandler returns the status history of the {orderId}
// path parameter, oldest first.
func ExecutionOrderLogsHandler(repo executionOrderLogFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "orderId")
		if orderID == "" {
			http.Error(w, "orderId is required", http.StatusBadRequest)
			return
		}

		logs, err := repo.FindLogs(r.Context(), orderID)
		if err != nil {
			logger.WithError(err).Error("failed to fetch execution order logs")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if logs == nil {
			logs = []model.ExecutionOrderLog{}
		}

		writeJSON(w, logs)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Error("failed to encode response")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
