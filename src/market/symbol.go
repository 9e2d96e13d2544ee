package market

import (
	"regexp"
	"strings"
)

type Market string

const (
	MarketUS      Market = "US"
	MarketHK      Market = "HK"
	MarketUnknown Market = "UNKNOWN"
)

// DetectMarket reads the market from the symbol's region suffix.
func DetectMarket(symbol string) Market {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	switch {
	case strings.HasSuffix(s, ".US"):
		return MarketUS
	case strings.HasSuffix(s, ".HK"):
		return MarketHK
	default:
		return MarketUnknown
	}
}

var optionSymbolPattern = regexp.MustCompile(`^[A-Z]+\d{6}[CP]\d+$`)

// IsOption reports whether symbol is an OCC style option code, e.g.
// TSLA251121P395000.US.
func IsOption(symbol string) bool {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if i := strings.LastIndex(s, "."); i > 0 {
		s = s[:i]
	}
	return optionSymbolPattern.MatchString(s)
}
