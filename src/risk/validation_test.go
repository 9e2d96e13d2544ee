package risk

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestValidateQuantity(t *testing.T) {
	tests := []struct {
		name    string
		qty     decimal.Decimal
		action  Action
		current decimal.Decimal
		valid   bool
		errPart string
	}{
		{"zero buy", d(0), ActionBuy, d(0), false, "cannot be zero"},
		{"zero sell", d(0), ActionSell, d(-5), false, "cannot be zero"},
		{"zero with long", d(0), ActionSell, d(10), false, "cannot be zero"},
		{"short within limit", d(-100), ActionSell, d(0), true, ""},
		{"short at limit", d(-10000), ActionSell, d(0), true, ""},
		{"short too large", d(-10001), ActionSell, d(0), false, "Short quantity too large: 10001 exceeds maximum 10000"},
		{"cover exceeds", d(11), ActionBuy, d(-10), false, "cannot exceed short quantity"},
		{"cover ok", d(5), ActionBuy, d(-10), true, ""},
		{"cover full", d(10), ActionBuy, d(-10), true, ""},
		{"cover negative", d(-1), ActionBuy, d(-10), false, "Cover quantity must be positive"},
		{"close long exceeds", d(11), ActionSell, d(10), false, "cannot exceed long quantity"},
		{"close long ok", d(10), ActionSell, d(10), true, ""},
		{"open long", d(1), ActionBuy, d(0), true, ""},
		{"open long negative", d(-1), ActionBuy, d(3), false, "must be positive for opening long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateQuantity(tt.qty, tt.action, tt.current)
			if res.Valid != tt.valid {
				t.Fatalf("expected valid=%v, got %+v", tt.valid, res)
			}
			if tt.errPart != "" && !strings.Contains(res.Error, tt.errPart) {
				t.Fatalf("expected error containing %q, got %q", tt.errPart, res.Error)
			}
		})
	}
}
