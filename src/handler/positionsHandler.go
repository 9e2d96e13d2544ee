package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"tradeexecutor/src/position"
)

type availablePositionSource interface {
	CalculateAvailablePosition(ctx context.Context, symbol string) position.Snapshot
}

type positionResponse struct {
	Symbol            string          `json:"symbol"`
	PositionType      position.Type   `json:"position_type"`
	ActualQuantity    decimal.Decimal `json:"actual_quantity"`
	PendingQuantity   decimal.Decimal `json:"pending_quantity"`
	AvailableQuantity decimal.Decimal `json:"available_quantity"`
}

// AvailablePositionHandler reports the held, pending and available quantity
// of the {symbol} path parameter.
func AvailablePositionHandler(calc availablePositionSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "symbol")))
		if symbol == "" {
			http.Error(w, "symbol is required", http.StatusBadRequest)
			return
		}

		snap := calc.CalculateAvailablePosition(r.Context(), symbol)
		writeJSON(w, positionResponse{
			Symbol:            snap.Symbol,
			PositionType:      snap.PositionType,
			ActualQuantity:    snap.ActualQuantity,
			PendingQuantity:   snap.PendingQuantity,
			AvailableQuantity: snap.AvailableQuantity,
		})
	}
}
