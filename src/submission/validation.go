package submission

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tradeexecutor/src/market"
)

var symbolPattern = regexp.MustCompile(`^\.?[A-Z0-9]+\.[A-Z]{2}$`)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

var (
	orderTypes         = []string{"LO", "ELO", "MO", "AO", "ALO", "ODD", "LIT", "MIT", "TSLPAMT", "TSLPPCT", "SLO"}
	priceRequiredTypes = []string{"LO", "ELO", "ALO", "ODD", "SLO", "LIT"}
	triggerTypes       = []string{"LIT", "MIT"}
	timeInForces       = []string{"Day", "GTC", "GTD"}
	outsideRTHValues   = []string{"RTH_ONLY", "ANY_TIME", "OVERNIGHT"}
)

const maxRemarkLength = 64

// ValidateParams returns every problem found; an empty slice means valid.
func ValidateParams(p Params, now time.Time) []string {
	var errs []string

	if !symbolPattern.MatchString(p.Symbol) {
		errs = append(errs, "Invalid symbol format. Use ticker.region, e.g. AAPL.US or .SPX.US")
	}

	if !contains(orderTypes, p.OrderType) {
		errs = append(errs, fmt.Sprintf("Invalid order type: %s. Supported types: %s", p.OrderType, strings.Join(orderTypes, ", ")))
	}

	if p.Side != "Buy" && p.Side != "Sell" {
		errs = append(errs, "Invalid side. Must be Buy or Sell")
	}

	if q, err := strconv.ParseInt(p.SubmittedQuantity, 10, 64); err != nil || q <= 0 {
		errs = append(errs, "Invalid quantity. Must be an integer greater than 0")
	}

	if contains(priceRequiredTypes, p.OrderType) && !isNumber(p.SubmittedPrice) {
		errs = append(errs, fmt.Sprintf("%s orders require a valid submitted_price", p.OrderType))
	}

	if contains(triggerTypes, p.OrderType) && !isNumber(p.TriggerPrice) {
		errs = append(errs, fmt.Sprintf("%s orders require a valid trigger_price", p.OrderType))
	}

	switch p.OrderType {
	case "TSLPAMT":
		if !isNumber(p.TrailingAmount) {
			errs = append(errs, "TSLPAMT orders require a valid trailing_amount")
		}
		if !isNumber(p.LimitOffset) {
			errs = append(errs, "TSLPAMT orders require a valid limit_offset")
		}
	case "TSLPPCT":
		if !isNumber(p.TrailingPercent) {
			errs = append(errs, "TSLPPCT orders require a valid trailing_percent")
		}
		if !isNumber(p.LimitOffset) {
			errs = append(errs, "TSLPPCT orders require a valid limit_offset")
		}
	}

	tif := p.TimeInForce
	if tif == "" {
		tif = "Day"
	}
	if tif == "GTD" {
		errs = append(errs, validateExpireDate(p.ExpireDate, now)...)
	}

	if market.DetectMarket(p.Symbol) == market.MarketUS {
		if p.OutsideRTH == "" {
			errs = append(errs, "US orders require outside_rth")
		} else if !contains(outsideRTHValues, p.OutsideRTH) {
			errs = append(errs, fmt.Sprintf("Invalid outside_rth. Must be one of: %s", strings.Join(outsideRTHValues, ", ")))
		}
	}

	if !contains(timeInForces, tif) {
		errs = append(errs, fmt.Sprintf("Invalid time_in_force. Must be one of: %s", strings.Join(timeInForces, ", ")))
	}

	if len([]rune(p.Remark)) > maxRemarkLength {
		errs = append(errs, fmt.Sprintf("Remark cannot exceed %d characters", maxRemarkLength))
	}

	return errs
}

func validateExpireDate(raw string, now time.Time) []string {
	if raw == "" {
		return []string{"GTD orders require expire_date"}
	}
	if !datePattern.MatchString(raw) {
		return []string{"expire_date must use YYYY-MM-DD, e.g. 2025-12-31"}
	}
	date, err := time.ParseInLocation("2006-01-02", raw, now.Location())
	if err != nil {
		return []string{"expire_date is not a valid date"}
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if date.Before(today) {
		return []string{"expire_date cannot be in the past"}
	}
	return nil
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	_, err := decimal.NewFromString(s)
	return err == nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
