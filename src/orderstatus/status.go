package orderstatus

import (
	"fmt"
	"strconv"
	"strings"
)

// Full broker enum names. Every normalized status is one of these or the
// raw input when it could not be recognized.
const (
	Unknown              = "Unknown"
	NotReported          = "NotReported"
	ReplacedNotReported  = "ReplacedNotReported"
	ProtectedNotReported = "ProtectedNotReported"
	VariancesNotReported = "VariancesNotReported"
	Filled               = "FilledStatus"
	WaitToNew            = "WaitToNew"
	New                  = "NewStatus"
	WaitToReplace        = "WaitToReplace"
	PendingReplace       = "PendingReplaceStatus"
	Replaced             = "ReplacedStatus"
	PartialFilled        = "PartialFilledStatus"
	WaitToCancel         = "WaitToCancel"
	PendingCancel        = "PendingCancelStatus"
	Rejected             = "RejectedStatus"
	Canceled             = "CanceledStatus"
	Expired              = "ExpiredStatus"
	PartialWithdrawal    = "PartialWithdrawal"
)

var numericStatus = map[int]string{
	0:  Unknown,
	1:  NotReported,
	2:  ReplacedNotReported,
	3:  ProtectedNotReported,
	4:  VariancesNotReported,
	5:  Filled,
	6:  WaitToNew,
	7:  New,
	8:  WaitToReplace,
	9:  PendingReplace,
	10: Replaced,
	11: PartialFilled,
	12: WaitToCancel,
	13: PendingCancel,
	14: Rejected,
	15: Canceled,
	16: Expired,
	17: PartialWithdrawal,
}

var shortToFull = map[string]string{
	"Filled":         Filled,
	"New":            New,
	"PendingReplace": PendingReplace,
	"Replaced":       Replaced,
	"PartialFilled":  PartialFilled,
	"PendingCancel":  PendingCancel,
	"Rejected":       Rejected,
	"Canceled":       Canceled,
	"Cancelled":      Canceled,
	"Expired":        Expired,
}

var displayNames = map[string]string{
	Filled:         "Filled",
	New:            "New",
	PendingReplace: "PendingReplace",
	Replaced:       "Replaced",
	PartialFilled:  "PartialFilled",
	PendingCancel:  "PendingCancel",
	Rejected:       "Rejected",
	Canceled:       "Cancelled",
	Expired:        "Expired",
}

var terminal = map[string]bool{
	Filled:   true,
	Canceled: true,
	Rejected: true,
	Expired:  true,
}

// pending covers orders whose unfilled quantity still locks position.
var pending = map[string]bool{
	NotReported:          true,
	ReplacedNotReported:  true,
	ProtectedNotReported: true,
	VariancesNotReported: true,
	WaitToNew:            true,
	New:                  true,
	PartialFilled:        true,
	WaitToReplace:        true,
	PendingReplace:       true,
	WaitToCancel:         true,
	PendingCancel:        true,
}

// Normalize converts numeric, full and short status forms into the full
// broker enum name. Unrecognized strings are returned unchanged.
func Normalize(status interface{}) string {
	switch s := status.(type) {
	case nil:
		return Unknown
	case int:
		return fromNumber(s)
	case int32:
		return fromNumber(int(s))
	case int64:
		return fromNumber(int(s))
	case string:
		return fromString(s)
	case fmt.Stringer:
		return fromString(s.String())
	default:
		return fromString(fmt.Sprint(s))
	}
}

func fromNumber(n int) string {
	if v, ok := numericStatus[n]; ok {
		return v
	}
	return Unknown
}

func fromString(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return Unknown
	}

	if n, err := strconv.Atoi(s); err == nil && strconv.Itoa(n) == s {
		return fromNumber(n)
	}

	if s == "CancelledStatus" {
		return Canceled
	}
	if s == "VarietiesNotReported" {
		return VariancesNotReported
	}
	if strings.Contains(s, "Status") || strings.Contains(s, "Reported") || strings.Contains(s, "WaitTo") ||
		s == PartialWithdrawal || s == Unknown {
		return s
	}

	if full, ok := shortToFull[s]; ok {
		return full
	}

	switch strings.ToLower(s) {
	case "filled":
		return Filled
	case "new":
		return New
	case "cancelled", "canceled":
		return Canceled
	case "rejected":
		return Rejected
	case "expired":
		return Expired
	case "partialfilled":
		return PartialFilled
	}

	return s
}

// Display returns the short operator-facing name of a status.
func Display(status interface{}) string {
	full := Normalize(status)
	if v, ok := displayNames[full]; ok {
		return v
	}
	return full
}

// IsTerminal reports whether the order can no longer change.
func IsTerminal(status interface{}) bool {
	return terminal[Normalize(status)]
}

// IsPending reports whether the order's unfilled quantity is still working.
func IsPending(status interface{}) bool {
	return pending[Normalize(status)]
}

// IsFilled reports a full or partial fill.
func IsFilled(status interface{}) bool {
	s := Normalize(status)
	return s == Filled || s == PartialFilled
}
