// Package dates holds the civil date type and the wire conversions for it.
//
// The schedule store speaks two date shapes: "YYYY-MM-DD" strings in request
// bodies and [year, month, day] tuples (month 1-indexed) in response bodies.
// Both conversions live here so the rest of the engine only ever sees Date.
// No timezone is applied anywhere in this package; a Date is a calendar day,
// not an instant.
package dates

import (
	"fmt"
	"time"
)

// Date is a civil calendar date.
type Date struct {
	Year  int
	Month int // 1-12
	Day   int // 1-31
}

// New builds a normalized date. Out-of-range components roll over the way
// time.Date rolls them (Jan 32 -> Feb 1).
func New(year, month, day int) Date {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

// FromWire decodes a [year, month, day] tuple. The month is 1-indexed on the
// wire; a tuple with fewer than 3 elements is malformed and reported via ok.
func FromWire(tuple []int) (Date, bool) {
	if len(tuple) < 3 {
		return Date{}, false
	}
	return New(tuple[0], tuple[1], tuple[2]), true
}

// ToWire encodes the date as a [year, month, day] tuple, month 1-indexed.
func (d Date) ToWire() []int {
	return []int{d.Year, d.Month, d.Day}
}

// Parse decodes a "YYYY-MM-DD" string.
func Parse(s string) (Date, bool) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, false
	}
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}, true
}

// String formats the date as "YYYY-MM-DD".
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// IsZero reports whether d is the zero value.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

func (d Date) toTime() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
}

// Compare returns -1, 0 or 1 as d is before, equal to or after other.
func (d Date) Compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return sign(d.Year - other.Year)
	case d.Month != other.Month:
		return sign(d.Month - other.Month)
	default:
		return sign(d.Day - other.Day)
	}
}

// Before reports whether d is earlier than other.
func (d Date) Before(other Date) bool { return d.Compare(other) < 0 }

// After reports whether d is later than other.
func (d Date) After(other Date) bool { return d.Compare(other) > 0 }

// AddDays returns the date n calendar days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	t := d.toTime().AddDate(0, 0, n)
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

// DaysBetween returns the number of calendar days from d to other.
// Positive when other is later.
func (d Date) DaysBetween(other Date) int {
	return int(other.toTime().Sub(d.toTime()).Hours() / 24)
}

// Weekday returns the weekday of d.
func (d Date) Weekday() time.Weekday {
	return d.toTime().Weekday()
}

// FromTime projects a time.Time onto its calendar day in its own location.
func FromTime(t time.Time) Date {
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

// Range materializes every date from a through b inclusive, ascending.
// Bounds in either order are accepted.
func Range(a, b Date) []Date {
	if a.After(b) {
		a, b = b, a
	}
	n := a.DaysBetween(b) + 1
	out := make([]Date, 0, n)
	for d := a; !d.After(b); d = d.AddDays(1) {
		out = append(out, d)
	}
	return out
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
