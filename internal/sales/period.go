package sales

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Period names a reporting window relative to "now".
type Period string

const (
	PeriodToday      Period = "today"
	PeriodYesterday  Period = "yesterday"
	PeriodThisWeek   Period = "this-week"
	PeriodLastWeek   Period = "last-week"
	PeriodThisMonth  Period = "this-month"
	PeriodLastMonth  Period = "last-month"
	PeriodLast7Days  Period = "last-7-days"
	PeriodLast30Days Period = "last-30-days"
	PeriodCustom     Period = "custom"
)

// Errors returned by range resolution.
var (
	ErrUnknownPeriod = errors.New("unknown period")
	ErrInvalidRange  = errors.New("start must be before end")
	ErrCustomPeriod  = errors.New("custom period needs explicit start and end")
)

var periodLabels = map[Period]string{
	PeriodToday:      "Today",
	PeriodYesterday:  "Yesterday",
	PeriodThisWeek:   "This Week",
	PeriodLastWeek:   "Last Week",
	PeriodThisMonth:  "This Month",
	PeriodLastMonth:  "Last Month",
	PeriodLast7Days:  "Last 7 Days",
	PeriodLast30Days: "Last 30 Days",
}

// ParsePeriod validates a period name. An empty string means today.
func ParsePeriod(s string) (Period, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PeriodToday, nil
	}
	p := Period(s)
	if p == PeriodCustom {
		return p, nil
	}
	if _, ok := periodLabels[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPeriod, s)
	}
	return p, nil
}

// Calendar fixes the location day boundaries are computed in and the first
// day of the week.
type Calendar struct {
	Location  *time.Location
	WeekStart time.Weekday
}

// DefaultCalendar uses Asia/Manila with weeks starting on Sunday.
func DefaultCalendar() Calendar {
	return Calendar{Location: LoadLocation("Asia/Manila"), WeekStart: time.Sunday}
}

// LoadLocation loads name, falling back to a fixed UTC+8 zone when the tz
// database is unavailable.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("PHT", 8*3600)
	}
	return loc
}

// ParseWeekday accepts full or three-letter English day names.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid weekday %q", s)
}

func (c Calendar) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

func (c Calendar) midnight(t time.Time) time.Time {
	t = t.In(c.location())
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.location())
}

// DateRange is the half-open interval [Start, End).
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Label string    `json:"label"`
}

// Contains reports whether t falls in [Start, End).
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Days is the number of calendar days the range spans.
func (r DateRange) Days() int {
	n := 0
	for d := r.Start; d.Before(r.End); d = d.AddDate(0, 0, 1) {
		n++
	}
	return n
}

// ResolveDateRange turns a named period into concrete bounds in the
// calendar's location. Custom periods must go through CustomRange.
func ResolveDateRange(p Period, now time.Time, cal Calendar) (DateRange, error) {
	today := cal.midnight(now)
	tomorrow := today.AddDate(0, 0, 1)
	label := periodLabels[p]

	switch p {
	case PeriodToday:
		return DateRange{Start: today, End: tomorrow, Label: label}, nil
	case PeriodYesterday:
		return DateRange{Start: today.AddDate(0, 0, -1), End: today, Label: label}, nil
	case PeriodThisWeek:
		start := weekStart(today, cal.WeekStart)
		return DateRange{Start: start, End: start.AddDate(0, 0, 7), Label: label}, nil
	case PeriodLastWeek:
		start := weekStart(today, cal.WeekStart)
		return DateRange{Start: start.AddDate(0, 0, -7), End: start, Label: label}, nil
	case PeriodThisMonth:
		start := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		return DateRange{Start: start, End: start.AddDate(0, 1, 0), Label: label}, nil
	case PeriodLastMonth:
		end := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		return DateRange{Start: end.AddDate(0, -1, 0), End: end, Label: label}, nil
	case PeriodLast7Days:
		return DateRange{Start: today.AddDate(0, 0, -6), End: tomorrow, Label: label}, nil
	case PeriodLast30Days:
		return DateRange{Start: today.AddDate(0, 0, -29), End: tomorrow, Label: label}, nil
	case PeriodCustom:
		return DateRange{}, ErrCustomPeriod
	}
	return DateRange{}, fmt.Errorf("%w: %q", ErrUnknownPeriod, p)
}

// CustomRange builds a range from two calendar dates. Both are inclusive
// days: the end bound becomes midnight after lastDay.
func CustomRange(firstDay, lastDay time.Time, cal Calendar) (DateRange, error) {
	start := cal.midnight(firstDay)
	end := cal.midnight(lastDay).AddDate(0, 0, 1)
	if !start.Before(end) {
		return DateRange{}, ErrInvalidRange
	}
	label := start.Format("Jan 2, 2006")
	if last := end.AddDate(0, 0, -1); !last.Equal(start) {
		label += " to " + last.Format("Jan 2, 2006")
	}
	return DateRange{Start: start, End: end, Label: label}, nil
}

// ComparisonRange returns the window a period is compared against:
// today with yesterday, this week with last week, this month with last
// month. Any other range is compared with the preceding window of the same
// number of days.
func ComparisonRange(p Period, current DateRange, now time.Time, cal Calendar) (DateRange, error) {
	switch p {
	case PeriodToday:
		return ResolveDateRange(PeriodYesterday, now, cal)
	case PeriodThisWeek:
		return ResolveDateRange(PeriodLastWeek, now, cal)
	case PeriodThisMonth:
		return ResolveDateRange(PeriodLastMonth, now, cal)
	}
	return PrecedingRange(current), nil
}

// PrecedingRange is the window of equal day count ending where r starts.
func PrecedingRange(r DateRange) DateRange {
	days := r.Days()
	label := "Previous day"
	if days > 1 {
		label = fmt.Sprintf("Previous %d days", days)
	}
	return DateRange{Start: r.Start.AddDate(0, 0, -days), End: r.Start, Label: label}
}

func weekStart(day time.Time, first time.Weekday) time.Time {
	offset := (int(day.Weekday()) - int(first) + 7) % 7
	return day.AddDate(0, 0, -offset)
}
