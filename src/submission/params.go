package submission

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Params is the canonical order request. Numeric fields stay as strings
// until validation so malformed input can be reported instead of coerced.
type Params struct {
	Symbol            string `json:"symbol"`
	Side              string `json:"side"`
	OrderType         string `json:"order_type"`
	SubmittedQuantity string `json:"submitted_quantity"`
	SubmittedPrice    string `json:"submitted_price,omitempty"`
	TriggerPrice      string `json:"trigger_price,omitempty"`
	LimitOffset       string `json:"limit_offset,omitempty"`
	TrailingAmount    string `json:"trailing_amount,omitempty"`
	TrailingPercent   string `json:"trailing_percent,omitempty"`
	ExpireDate        string `json:"expire_date,omitempty"`
	OutsideRTH        string `json:"outside_rth,omitempty"`
	TimeInForce       string `json:"time_in_force,omitempty"`
	Remark            string `json:"remark,omitempty"`
}

var numericSide = map[int64]string{1: "Buy", 2: "Sell"}

// Legacy code 4 (EAO) has no broker order type and is left as given, so
// validation rejects it.
var numericOrderType = map[int64]string{1: "LO", 2: "AO", 3: "ELO"}

// NormalizeParams reads a loosely typed request (decoded JSON or a form)
// accepting camelCase aliases, numeric sides and numeric order types.
func NormalizeParams(raw map[string]interface{}) Params {
	pick := func(keys ...string) string {
		for _, k := range keys {
			if v, ok := raw[k]; ok && v != nil {
				if s := stringify(v); s != "" {
					return s
				}
			}
		}
		return ""
	}

	p := Params{
		Symbol:            pick("symbol"),
		OrderType:         pick("order_type", "orderType"),
		Side:              pick("side"),
		SubmittedQuantity: pick("submitted_quantity", "quantity"),
		SubmittedPrice:    pick("submitted_price", "price"),
		TriggerPrice:      pick("trigger_price", "triggerPrice"),
		LimitOffset:       pick("limit_offset", "limitOffset"),
		TrailingAmount:    pick("trailing_amount", "trailingAmount"),
		TrailingPercent:   pick("trailing_percent", "trailingPercent"),
		ExpireDate:        pick("expire_date", "expireDate"),
		OutsideRTH:        pick("outside_rth", "outsideRth"),
		TimeInForce:       pick("time_in_force", "timeInForce"),
		Remark:            pick("remark"),
	}

	if n, ok := asInt(raw["side"]); ok {
		if s, known := numericSide[n]; known {
			p.Side = s
		}
	}
	typeRaw := raw["order_type"]
	if typeRaw == nil {
		typeRaw = raw["orderType"]
	}
	if n, ok := asInt(typeRaw); ok {
		if s, known := numericOrderType[n]; known {
			p.OrderType = s
		}
	}

	return p.withDefaults()
}

func (p Params) withDefaults() Params {
	if p.TimeInForce == "" {
		p.TimeInForce = "Day"
	}
	return p
}

// asInt only accepts JSON numbers; digit strings stay as text.
func asInt(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case decimal.Decimal:
		return t.String()
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
