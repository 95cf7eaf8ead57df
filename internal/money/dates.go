package money

import (
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// DateOnly returns the calendar date of t at midnight UTC. The date parts are
// taken from t's own location, so time of day and zone offset never shift it.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddMonths adds whole calendar months, letting day-of-month overflow roll
// into the following month (Jan 31 + 1 month = Mar 2 or 3).
func AddMonths(t time.Time, months int) time.Time {
	return DateOnly(t).AddDate(0, months, 0)
}

// AddDays adds whole calendar days to the date of t.
func AddDays(t time.Time, days int) time.Time {
	return DateOnly(t).AddDate(0, 0, days)
}

// DaysBetween returns the whole days from the date of `from` to the date of
// `to`; negative when `to` is earlier.
func DaysBetween(from, to time.Time) int {
	diff := DateOnly(to).Sub(DateOnly(from))
	return int(diff / (24 * time.Hour))
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// FormatDate renders the calendar date of t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return DateOnly(t).Format(DateLayout)
}

// MonthStart returns the first day of t's month.
func MonthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}
