package market

import (
	"time"
)

type Session string

const (
	SessionClosed     Session = "closed"
	SessionPreMarket  Session = "pre_market"
	SessionRegular    Session = "regular"
	SessionAfterHours Session = "after_hours"

	DaysPerWeek          = 7
	ObservedOffsetDays   = 1
	ThirdMondayOffset    = 2
	FourthThursdayOffset = 3
)

var (
	nyLocation = loadLocation("America/New_York", -5)
	hkLocation = loadLocation("Asia/Hong_Kong", 8)
)

func loadLocation(name string, fallbackHours int) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone(name, fallbackHours*3600)
	}
	return loc
}

// USSession classifies now against the US equity sessions in Eastern time:
// pre-market 04:00-09:30, regular 09:30-16:00, after-hours 16:00-20:00.
func USSession(now time.Time) Session {
	et := now.In(nyLocation)
	if isWeekend(et) || IsUSHoliday(et) {
		return SessionClosed
	}

	minutes := et.Hour()*60 + et.Minute()
	switch {
	case minutes >= 4*60 && minutes < 9*60+30:
		return SessionPreMarket
	case minutes >= 9*60+30 && minutes < 16*60:
		return SessionRegular
	case minutes >= 16*60 && minutes < 20*60:
		return SessionAfterHours
	default:
		return SessionClosed
	}
}

// hkOpen covers the HKEX morning 09:30-12:00 and afternoon 13:00-16:00
// sessions. HK holidays are not tracked.
func hkOpen(now time.Time) bool {
	hk := now.In(hkLocation)
	if isWeekend(hk) {
		return false
	}
	minutes := hk.Hour()*60 + hk.Minute()
	return (minutes >= 9*60+30 && minutes < 12*60) || (minutes >= 13*60 && minutes < 16*60)
}

// IsOpen reports whether orders for symbol can trade now. US options only
// trade in the regular session; US equities also trade extended hours.
// Unknown markets are treated as open.
func IsOpen(symbol string, now time.Time) bool {
	switch DetectMarket(symbol) {
	case MarketUS:
		sess := USSession(now)
		if IsOption(symbol) {
			return sess == SessionRegular
		}
		return sess != SessionClosed
	case MarketHK:
		return hkOpen(now)
	default:
		return true
	}
}

// TradingDayStart is the earliest midnight among the tracked exchanges for
// the trading day containing now, so one cutoff covers US and HK orders.
func TradingDayStart(now time.Time) time.Time {
	start := midnight(now.In(nyLocation))
	if hk := midnight(now.In(hkLocation)); hk.Before(start) {
		start = hk
	}
	return start
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}

// IsUSHoliday reports NYSE full-day closures for t's calendar date.
func IsUSHoliday(t time.Time) bool {
	year := t.Year()

	holidays := []time.Time{
		observed(time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)),
		calculateSpecificMonday(year, time.January, ThirdMondayOffset),
		calculateSpecificMonday(year, time.February, ThirdMondayOffset),
		goodFriday(year),
		lastMonday(year, time.May),
		observed(time.Date(year, time.June, 19, 0, 0, 0, 0, time.UTC)),
		observed(time.Date(year, time.July, 4, 0, 0, 0, 0, time.UTC)),
		calculateSpecificMonday(year, time.September, 0),
		calculateSpecificThursday(year, time.November, FourthThursdayOffset),
		observed(time.Date(year, time.December, 25, 0, 0, 0, 0, time.UTC)),
	}
	return isDateAmong(t, holidays)
}

// observed moves Sunday holidays to Monday and Saturday holidays to Friday.
func observed(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Sunday:
		return d.AddDate(0, 0, ObservedOffsetDays)
	case time.Saturday:
		return d.AddDate(0, 0, -ObservedOffsetDays)
	default:
		return d
	}
}

func lastMonday(year int, month time.Month) time.Time {
	d := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// goodFriday is two days before Western Easter (anonymous Gregorian computus).
func goodFriday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := ((h + l - 7*m + 114) % 31) + 1
	easter := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return easter.AddDate(0, 0, -2)
}

// calculateSpecificMonday calculates the specific Monday of a month (like the third Monday).
func calculateSpecificMonday(year int, month time.Month, mondayOffset int) time.Time {
	firstOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := int(time.Monday-firstOfMonth.Weekday()+DaysPerWeek) % DaysPerWeek
	return firstOfMonth.AddDate(0, 0, offset+mondayOffset*DaysPerWeek)
}

// calculateSpecificThursday calculates the specific Thursday of a month (like the fourth Thursday).
func calculateSpecificThursday(year int, month time.Month, thursdayOffset int) time.Time {
	firstOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := int(time.Thursday-firstOfMonth.Weekday()+DaysPerWeek) % DaysPerWeek
	return firstOfMonth.AddDate(0, 0, offset+thursdayOffset*DaysPerWeek)
}

func isDateAmong(t time.Time, dates []time.Time) bool {
	day := t.Format("2006-01-02")
	for _, d := range dates {
		if day == d.Format("2006-01-02") {
			return true
		}
	}
	return false
}
