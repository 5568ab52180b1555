// Package slots expands an availability window into concrete bookable slots.
package slots

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"medsched/internal/dates"
)

// TimeOfDay is a clock time with minute precision, independent of any date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return TimeOfDay{}, fmt.Errorf("invalid time format: %s", s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid hour: %w", err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid minute: %w", err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("time out of range: %s", s)
	}

	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// String formats the time as "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int { return t.Hour*60 + t.Minute }

// FromMinutes builds a TimeOfDay from minutes since midnight.
func FromMinutes(m int) TimeOfDay {
	return TimeOfDay{Hour: m / 60, Minute: m % 60}
}

// Before reports whether t is earlier in the day than other.
func (t TimeOfDay) Before(other TimeOfDay) bool {
	return t.Minutes() < other.Minutes()
}

// DayGroup is the generated slot list for one active date.
type DayGroup struct {
	Date      dates.Date
	DayOfWeek time.Weekday
	Slots     []TimeOfDay
}

// Generate expands the active dates and the daily window into per-day slot
// groups, ordered by date ascending with chronological slots inside each day.
//
// A slot is emitted only while its start is strictly before the window end.
// The trailing slot's end may therefore run past the declared end time when
// the duration does not divide the window evenly; that slot is kept as-is, not
// clipped and not dropped. Output depends only on the inputs, so regenerating
// a preview after a duration change is a plain recomputation.
func Generate(activeDates []dates.Date, start, end TimeOfDay, durationMinutes int) []DayGroup {
	if durationMinutes <= 0 || !start.Before(end) {
		return nil
	}

	startMin := start.Minutes()
	endMin := end.Minutes()

	times := make([]TimeOfDay, 0, (endMin-startMin+durationMinutes-1)/durationMinutes)
	for cursor := startMin; cursor < endMin; cursor += durationMinutes {
		times = append(times, FromMinutes(cursor))
	}

	groups := make([]DayGroup, 0, len(activeDates))
	for _, d := range activeDates {
		daySlots := make([]TimeOfDay, len(times))
		copy(daySlots, times)
		groups = append(groups, DayGroup{
			Date:      d,
			DayOfWeek: d.Weekday(),
			Slots:     daySlots,
		})
	}
	return groups
}

// SlotCount returns the total number of slots across all groups.
func SlotCount(groups []DayGroup) int {
	n := 0
	for _, g := range groups {
		n += len(g.Slots)
	}
	return n
}
