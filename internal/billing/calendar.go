package billing

import "time"

// Date truncates t to its calendar date, expressed as midnight UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the current calendar date in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return Date(now.In(loc))
}

// DaysInMonth returns the number of days in t's month.
func DaysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// StartOfMonth returns the first day of t's month.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthsBetween is the calendar-month difference from -> to, ignoring the day of month.
func MonthsBetween(from, to time.Time) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}

// SameMonth reports whether a and b fall in the same calendar month.
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// Window is an inclusive date range.
type Window struct {
	From time.Time
	To   time.Time
}

// AttendanceWindow is the range whose present lessons offset the current period.
// An enrollment that started this month counts from its join date, older ones from the first of the month.
func AttendanceWindow(today, joined time.Time) Window {
	today, joined = Date(today), Date(joined)
	if SameMonth(today, joined) {
		return Window{From: joined, To: today}
	}
	return Window{From: StartOfMonth(today), To: today}
}
