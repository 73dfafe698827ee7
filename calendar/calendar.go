// Package calendar builds the date strips shown on calendar previews.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// DateRange returns the dates from before days ahead of ref through after
// days past it, in calendar order. Negative counts are treated as zero.
func DateRange(ref civil.Date, before, after int) []civil.Date {
	before, after = max(before, 0), max(after, 0)
	out := make([]civil.Date, 0, before+after+1)
	for i := -before; i <= after; i++ {
		out = append(out, ref.AddDays(i))
	}
	return out
}

// WeekLayout returns the seven dates of the week containing ref, where weeks
// begin on start.
func WeekLayout(ref civil.Date, start time.Weekday) []civil.Date {
	weekday := ref.In(time.UTC).Weekday()
	before := (int(weekday) - int(start) + 7) % 7
	return DateRange(ref, before, 6-before)
}

// MonthLayout returns every date in the month of ref.
func MonthLayout(ref civil.Date) []civil.Date {
	first := civil.Date{Year: ref.Year, Month: ref.Month, Day: 1}
	days := time.Date(ref.Year, ref.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	return DateRange(first, 0, days-1)
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// ParseWeekday accepts abbreviated ("Mon") or full ("Monday") weekday names
// in any case.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) >= 3 {
		if wd, ok := weekdays[s[:3]]; ok && (len(s) == 3 || s == strings.ToLower(wd.String())) {
			return wd, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}
