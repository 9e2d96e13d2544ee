package connectors

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// LongportErrorCodes maps Longport OpenAPI error codes to readable messages.
var LongportErrorCodes = map[int]string{
	301600: "INVALID_REQUEST",         // Malformed request parameters
	301604: "NO_QUOTE_ACCESS",         // Account lacks quote permission (options)
	301606: "QUOTE_RATE_LIMITED",      // Quote request frequency exceeded
	301607: "TOO_MANY_SYMBOLS",        // Too many securities in one request
	401003: "TOKEN_EXPIRED",           // Access token expired
	401004: "TOKEN_INVALID",           // Token does not match the app key
	429002: "API_REQUEST_LIMITED",     // Trade API frequency exceeded
	602012: "AMENDMENT_NOT_SUPPORTED", // Order type cannot be replaced
	602023: "ORDER_UNAVAILABLE",       // Order missing or expired on the broker side
}

// GetErrorMsg returns a readable message for a Longport error code.
func GetErrorMsg(code int) string {
	if msg, ok := LongportErrorCodes[code]; ok {
		return msg
	}
	return fmt.Sprintf("UNKNOWN_LONGPORT_ERROR_%d", code)
}

var errorCodePattern = regexp.MustCompile(`\b(\d{6})\b`)

// ErrorCode extracts the first six digit broker code from an error message.
func ErrorCode(err error) (int, bool) {
	if err == nil {
		return 0, false
	}
	m := errorCodePattern.FindStringSubmatch(err.Error())
	if len(m) < 2 {
		return 0, false
	}
	code, convErr := strconv.Atoi(m[1])
	if convErr != nil {
		return 0, false
	}
	return code, true
}

var liquiditySignatures = []string{
	"insufficient liquidity",
	"no liquidity",
	"no counterparty",
	"market order is not supported",
}

// IsInsufficientLiquidity reports whether a rejection means a market order
// could not be matched and a limit order should be tried instead.
func IsInsufficientLiquidity(reason string) bool {
	lower := strings.ToLower(reason)
	for _, sig := range liquiditySignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}

// IsNoQuotePermission reports the broker's missing option quote permission.
func IsNoQuotePermission(err error) bool {
	code, ok := ErrorCode(err)
	return ok && code == 301604
}
