package core

import (
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

// Date is a calendar day in UTC.
type Date struct {
	time.Time
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO "YYYY-MM-DD" string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, &ValidationError{Field: "date", Reason: "expected YYYY-MM-DD, got " + s, Err: ErrInvalidDate}
	}
	return Date{Time: t}, nil
}

// String formats the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// MonthKey returns the "YYYY-MM" key of the month containing d.
func (d Date) MonthKey() string {
	return d.Format(MonthLayout)
}

// MonthRange returns one "YYYY-MM" key per calendar month from start's month to end's month inclusive.
func MonthRange(start, end Date) ([]string, error) {
	if end.Before(start.Time) {
		return nil, &ValidationError{
			Field:  "end_date",
			Reason: "end date " + end.String() + " is before start date " + start.String(),
			Err:    ErrInvalidRange,
		}
	}

	cur := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)

	months := make([]string, 0, monthsBetween(cur, last)+1)
	for !cur.After(last) {
		months = append(months, cur.Format(MonthLayout))
		cur = cur.AddDate(0, 1, 0)
	}
	return months, nil
}

// MonthRangeFromStrings parses both ISO dates before computing the range.
func MonthRangeFromStrings(start, end string) ([]string, error) {
	s, err := ParseDate(start)
	if err != nil {
		return nil, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return nil, err
	}
	return MonthRange(s, e)
}

// ValidateMonth checks a "YYYY-MM" key.
func ValidateMonth(month string) error {
	if _, err := time.Parse(MonthLayout, month); err != nil {
		return &ValidationError{Field: "month", Reason: "expected YYYY-MM, got " + month, Err: ErrInvalidMonth}
	}
	return nil
}

// MonthLabel renders a month key as "Jan 2024"; invalid keys are returned unchanged.
func MonthLabel(month string) string {
	t, err := time.Parse(MonthLayout, month)
	if err != nil {
		return month
	}
	return t.Format("Jan 2006")
}

func monthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}
