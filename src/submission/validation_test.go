package submission

import (
	"strings"
	"testing"
	"time"
)

func validLimit() Params {
	return Params{
		Symbol:            "AAPL.US",
		Side:              "Buy",
		OrderType:         "LO",
		SubmittedQuantity: "10",
		SubmittedPrice:    "100.5",
		OutsideRTH:        "ANY_TIME",
		TimeInForce:       "Day",
	}
}

func TestValidateParams(t *testing.T) {
	now := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(p *Params)
		want   string
	}{
		{"valid", func(p *Params) {}, ""},
		{"index symbol", func(p *Params) { p.Symbol = ".SPX.US" }, ""},
		{"hk without rth", func(p *Params) { p.Symbol = "700.HK"; p.OutsideRTH = "" }, ""},
		{"lowercase symbol", func(p *Params) { p.Symbol = "aapl.us" }, "Invalid symbol format"},
		{"unknown type", func(p *Params) { p.OrderType = "XX" }, "Invalid order type: XX"},
		{"bad side", func(p *Params) { p.Side = "BUY" }, "Invalid side"},
		{"zero quantity", func(p *Params) { p.SubmittedQuantity = "0" }, "Invalid quantity"},
		{"fractional quantity", func(p *Params) { p.SubmittedQuantity = "1.5" }, "Invalid quantity"},
		{"limit without price", func(p *Params) { p.SubmittedPrice = "" }, "LO orders require a valid submitted_price"},
		{"market without price", func(p *Params) { p.OrderType = "MO"; p.SubmittedPrice = "" }, ""},
		{"mit without trigger", func(p *Params) { p.OrderType = "MIT" }, "MIT orders require a valid trigger_price"},
		{"tslpamt", func(p *Params) { p.OrderType = "TSLPAMT"; p.TrailingAmount = "1" }, "TSLPAMT orders require a valid limit_offset"},
		{"tslppct", func(p *Params) { p.OrderType = "TSLPPCT"; p.LimitOffset = "0.1" }, "TSLPPCT orders require a valid trailing_percent"},
		{"gtd without date", func(p *Params) { p.TimeInForce = "GTD" }, "GTD orders require expire_date"},
		{"gtd bad format", func(p *Params) { p.TimeInForce = "GTD"; p.ExpireDate = "2025/12/31" }, "YYYY-MM-DD"},
		{"gtd past", func(p *Params) { p.TimeInForce = "GTD"; p.ExpireDate = "2025-03-03" }, "cannot be in the past"},
		{"gtd today", func(p *Params) { p.TimeInForce = "GTD"; p.ExpireDate = "2025-03-04" }, ""},
		{"us without rth", func(p *Params) { p.OutsideRTH = "" }, "US orders require outside_rth"},
		{"us bad rth", func(p *Params) { p.OutsideRTH = "ALWAYS" }, "Invalid outside_rth"},
		{"bad tif", func(p *Params) { p.TimeInForce = "IOC" }, "Invalid time_in_force"},
		{"long remark", func(p *Params) { p.Remark = strings.Repeat("x", 65) }, "Remark cannot exceed 64"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validLimit()
			tt.mutate(&p)
			errs := ValidateParams(p, now)

			if tt.want == "" {
				if len(errs) != 0 {
					t.Fatalf("expected no errors, got %v", errs)
				}
				return
			}
			joined := strings.Join(errs, "; ")
			if !strings.Contains(joined, tt.want) {
				t.Fatalf("expected error containing %q, got %q", tt.want, joined)
			}
		})
	}
}

func TestNormalizeParams(t *testing.T) {
	p := NormalizeParams(map[string]interface{}{
		"symbol":      "AAPL.US",
		"side":        float64(2),
		"orderType":   float64(1),
		"quantity":    float64(10),
		"price":       "101.25",
		"outsideRth":  "RTH_ONLY",
		"expireDate":  "2025-12-31",
		"timeInForce": "GTD",
	})

	want := Params{
		Symbol:            "AAPL.US",
		Side:              "Sell",
		OrderType:         "LO",
		SubmittedQuantity: "10",
		SubmittedPrice:    "101.25",
		OutsideRTH:        "RTH_ONLY",
		ExpireDate:        "2025-12-31",
		TimeInForce:       "GTD",
	}
	if p != want {
		t.Fatalf("unexpected params:\n got %+v\nwant %+v", p, want)
	}

	p = NormalizeParams(map[string]interface{}{"symbol": "700.HK", "side": "Buy", "order_type": float64(3), "submitted_quantity": "100"})
	if p.OrderType != "ELO" || p.TimeInForce != "Day" || p.Side != "Buy" {
		t.Fatalf("unexpected params: %+v", p)
	}
}
