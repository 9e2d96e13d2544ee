package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeexecutor/src/model"
	"tradeexecutor/src/pricing"
	"tradeexecutor/src/submission"
)

type stubSubmitter struct {
	raw    map[string]interface{}
	result submission.Result
}

func (s *stubSubmitter) SubmitRaw(ctx context.Context, raw map[string]interface{}) submission.Result {
	s.raw = raw
	return s.result
}

func postOrder(h http.Handler, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body)))
	return rr
}

func TestSubmitOrderHandler(t *testing.T) {
	sub := &stubSubmitter{result: submission.Result{Success: true, OrderID: "701"}}
	rr := postOrder(SubmitOrderHandler(sub), `{"symbol":"AAPL.US","side":2,"orderType":1,"quantity":5,"price":"99.5"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "AAPL.US", sub.raw["symbol"])
	assert.Equal(t, float64(2), sub.raw["side"], "raw body reaches normalization untouched")

	var res submission.Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Equal(t, "701", res.OrderID)
}

func TestSubmitOrderHandler_Failures(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		result submission.Result
		status int
	}{
		{"invalid json", `{"symbol":`, submission.Result{}, http.StatusBadRequest},
		{"null body", `null`, submission.Result{}, http.StatusBadRequest},
		{
			"validation",
			`{"symbol":"AAPL.US"}`,
			submission.Result{Error: &submission.Error{Code: submission.CodeValidation, Message: "Order parameter validation failed"}},
			http.StatusUnprocessableEntity,
		},
		{
			"lot size",
			`{"symbol":"700.HK"}`,
			submission.Result{Error: &submission.Error{Code: submission.CodeInvalidLotSize}},
			http.StatusUnprocessableEntity,
		},
		{
			"broker",
			`{"symbol":"AAPL.US"}`,
			submission.Result{Error: &submission.Error{Code: submission.CodeSubmitFailed, Message: "rejected"}},
			http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postOrder(SubmitOrderHandler(&stubSubmitter{result: tt.result}), tt.body)
			assert.Equal(t, tt.status, rr.Code)
			if tt.result.Error != nil {
				assert.Contains(t, rr.Body.String(), tt.result.Error.Code)
			}
		})
	}
}

type stubLogFinder struct {
	orderID string
	logs    []model.ExecutionOrderLog
	err     error
}

func (s *stubLogFinder) FindLogs(ctx context.Context, orderID string) ([]model.ExecutionOrderLog, error) {
	s.orderID = orderID
	return s.logs, s.err
}

func TestExecutionOrderLogsHandler(t *testing.T) {
	repo := &stubLogFinder{logs: []model.ExecutionOrderLog{
		{OrderID: "701", Status: "NewStatus"},
		{OrderID: "701", Status: "FilledStatus"},
	}}
	r := chi.NewRouter()
	r.Get("/execution-orders/{orderId}/logs", ExecutionOrderLogsHandler(repo))

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/execution-orders/701/logs", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "701", repo.orderID)

	var logs []model.ExecutionOrderLog
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &logs))
	require.Len(t, logs, 2)
	assert.Equal(t, "FilledStatus", logs[1].Status)

	repo.logs = nil
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/execution-orders/702/logs", nil))
	assert.JSONEq(t, "[]", rr.Body.String())

	repo.err = assert.AnError
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/execution-orders/703/logs", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

type stubInstanceLister struct {
	strategyID uint
	instances  []model.StrategyInstance
}

func (s *stubInstanceLister) ListByStrategy(ctx context.Context, strategyID uint) ([]model.StrategyInstance, error) {
	s.strategyID = strategyID
	return s.instances, nil
}

func TestStrategyInstancesHandler(t *testing.T) {
	repo := &stubInstanceLister{instances: []model.StrategyInstance{
		{StrategyID: 7, Symbol: "TSLA.US", CurrentState: "SHORTING"},
	}}
	r := chi.NewRouter()
	r.Get("/strategies/{strategyId}/instances", StrategyInstancesHandler(repo))

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/strategies/7/instances", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, uint(7), repo.strategyID)

	var got []model.StrategyInstance
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "SHORTING", got[0].CurrentState)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/strategies/abc/instances", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

type stubAger struct {
	age time.Duration
	ok  bool
}

func (s stubAger) Age() (time.Duration, bool) { return s.age, s.ok }

type stubPriceStats pricing.Stats

func (s stubPriceStats) Stats() pricing.Stats { return pricing.Stats(s) }

func TestHealthHandler(t *testing.T) {
	prices := stubPriceStats{Total: 3, Valid: 2, Expired: 1}

	get := func(h http.HandlerFunc) map[string]interface{} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		return body
	}

	body := get(HealthHandler(stubAger{}, prices, time.Minute))
	assert.Equal(t, "OK", body["status"])
	assert.Nil(t, body["order_snapshot_age_seconds"], "no snapshot loaded yet")
	assert.Equal(t, false, body["order_snapshot_stale"])
	assert.Equal(t, map[string]interface{}{"total": float64(3), "valid": float64(2), "expired": float64(1)}, body["price_cache"])

	body = get(HealthHandler(stubAger{age: 30 * time.Second, ok: true}, prices, time.Minute))
	assert.Equal(t, float64(30), body["order_snapshot_age_seconds"])
	assert.Equal(t, false, body["order_snapshot_stale"])

	body = get(HealthHandler(stubAger{age: 2 * time.Minute, ok: true}, prices, time.Minute))
	assert.Equal(t, "OK", body["status"], "staleness is reported, not fatal")
	assert.Equal(t, true, body["order_snapshot_stale"])
}
