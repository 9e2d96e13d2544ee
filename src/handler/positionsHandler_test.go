package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeexecutor/src/position"
)

type stubPositions struct {
	symbol string
}

func (s *stubPositions) CalculateAvailablePosition(ctx context.Context, symbol string) position.Snapshot {
	s.symbol = symbol
	return position.Snapshot{
		Symbol:            symbol,
		ActualQuantity:    decimal.NewFromInt(10),
		PendingQuantity:   decimal.NewFromInt(4),
		AvailableQuantity: decimal.NewFromInt(6),
		PositionType:      position.Long,
	}
}

func TestAvailablePositionHandler(t *testing.T) {
	calc := &stubPositions{}
	r := chi.NewRouter()
	r.Get("/positions/{symbol}", AvailablePositionHandler(calc))

	req := httptest.NewRequest(http.MethodGet, "/positions/aapl.us", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "AAPL.US", calc.symbol)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "LONG", body["position_type"])
	assert.Equal(t, "6", body["available_quantity"])
	assert.Equal(t, "4", body["pending_quantity"])
}
