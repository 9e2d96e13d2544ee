package handler

import (
	"context"
	"encoding/json"
	"net/http"

	logger "github.com/sirupsen/logrus"

	"tradeexecutor/src/submission"
)

const maxOrderBody = 64 << 10

type rawOrderSubmitter interface {
	SubmitRaw(ctx context.Context, raw map[string]interface{}) submission.Result
}

// SubmitOrderHandler places a plain broker order from a JSON body. Field
// aliases (orderType, quantity, price...) and numeric side/type codes are
// accepted. It bypasses strategy state, so it is meant for operators.
func SubmitOrderHandler(pipeline rawOrderSubmitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]interface{}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxOrderBody)).Decode(&raw); err != nil || raw == nil {
			http.Error(w, "invalid order body", http.StatusBadRequest)
			return
		}

		res := pipeline.SubmitRaw(r.Context(), raw)
		if !res.Success {
			status := http.StatusUnprocessableEntity
			if res.Error != nil && res.Error.Code == submission.CodeSubmitFailed {
				status = http.StatusBadGateway
			}
			logger.WithField("result", res.Error).Warn("operator order rejected")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			if err := json.NewEncoder(w).Encode(res); err != nil {
				logger.WithError(err).Error("failed to encode response")
			}
			return
		}

		writeJSON(w, res)
	}
}
