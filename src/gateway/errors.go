package gateway

import (
	"errors"
	"strings"
)

// ErrRateLimited marks errors the broker raised because calls came too fast.
var ErrRateLimited = errors.New("gateway rate limited")

var rateLimitSignatures = []string{
	"429002",
	"api request is limited",
	"please slow down request frequency",
}

// IsRateLimited reports whether err matches the broker's rate-limit signature.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range rateLimitSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
