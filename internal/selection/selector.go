// Package selection implements the click-driven date range selector used by
// the availability screens.
package selection

import (
	"sort"

	"medsched/internal/dates"
)

// Phase is the current phase of the range selection dialog.
type Phase string

const (
	// PhaseIdle means no start date has been chosen yet.
	PhaseIdle Phase = "idle"
	// PhaseRangeOpen means a start date is set and the end date is pending.
	PhaseRangeOpen Phase = "range_open"
	// PhaseRangeClosed means both bounds are set and the full date list is
	// materialized.
	PhaseRangeClosed Phase = "range_closed"
)

// Selector turns a sequence of day clicks into an inclusive date range plus a
// set of excluded dates inside that range. It is a plain value owned by the
// calling flow; copy it with Clone before speculative edits.
type Selector struct {
	phase    Phase
	start    dates.Date
	end      dates.Date
	selected map[dates.Date]bool
	excluded map[dates.Date]bool
}

// New returns an idle selector.
func New() *Selector {
	return &Selector{
		phase:    PhaseIdle,
		selected: make(map[dates.Date]bool),
		excluded: make(map[dates.Date]bool),
	}
}

// Phase returns the current dialog phase.
func (s *Selector) Phase() Phase { return s.phase }

// Bounds returns the chosen range bounds. End is zero while the range is open.
func (s *Selector) Bounds() (start, end dates.Date) { return s.start, s.end }

// Click processes one calendar cell click.
//
// A click on an already-selected date never changes the range; it toggles the
// date's membership in the exception set instead. A click on an unselected
// date either starts a new range (clearing exceptions) or closes the open one,
// swapping the bounds when the user clicked backwards.
func (s *Selector) Click(d dates.Date) {
	if s.selected[d] {
		s.toggleException(d)
		return
	}

	switch s.phase {
	case PhaseRangeOpen:
		start, end := s.start, d
		if end.Before(start) {
			start, end = end, start
		}
		s.start, s.end = start, end
		s.selected = make(map[dates.Date]bool)
		for _, day := range dates.Range(start, end) {
			s.selected[day] = true
		}
		s.phase = PhaseRangeClosed
	default:
		// Idle, or restarting over a closed range.
		s.start = d
		s.end = dates.Date{}
		s.selected = map[dates.Date]bool{d: true}
		s.excluded = make(map[dates.Date]bool)
		s.phase = PhaseRangeOpen
	}
}

func (s *Selector) toggleException(d dates.Date) {
	if s.excluded[d] {
		delete(s.excluded, d)
		return
	}
	s.excluded[d] = true
}

// IsSelected reports whether d lies inside the chosen range.
func (s *Selector) IsSelected(d dates.Date) bool { return s.selected[d] }

// IsExcluded reports whether d is currently marked unavailable.
func (s *Selector) IsExcluded(d dates.Date) bool { return s.excluded[d] }

// SelectedDates returns every date in the range, ascending.
func (s *Selector) SelectedDates() []dates.Date {
	return sortedKeys(s.selected)
}

// ExcludedDates returns the exception set, ascending.
func (s *Selector) ExcludedDates() []dates.Date {
	return sortedKeys(s.excluded)
}

// ActiveDates returns the selected dates minus the exceptions, ascending.
func (s *Selector) ActiveDates() []dates.Date {
	out := make([]dates.Date, 0, len(s.selected))
	for d := range s.selected {
		if !s.excluded[d] {
			out = append(out, d)
		}
	}
	sortDates(out)
	return out
}

// ActiveCount returns the number of active days, never negative.
func (s *Selector) ActiveCount() int {
	n := len(s.selected) - len(s.excluded)
	if n < 0 {
		return 0
	}
	return n
}

// Restore rebuilds a closed selection from persisted bounds and exceptions,
// for the edit path. Exceptions outside the range are dropped rather than
// widening it.
func Restore(start, end dates.Date, excluded []dates.Date) *Selector {
	s := New()
	s.Click(start)
	if end != start {
		s.Click(end)
	} else {
		// Single-day schedule: the range is the singleton.
		s.end = start
		s.phase = PhaseRangeClosed
	}
	for _, d := range excluded {
		if s.selected[d] {
			s.excluded[d] = true
		}
	}
	return s
}

// Clone returns a deep copy of the selector.
func (s *Selector) Clone() *Selector {
	c := &Selector{
		phase:    s.phase,
		start:    s.start,
		end:      s.end,
		selected: make(map[dates.Date]bool, len(s.selected)),
		excluded: make(map[dates.Date]bool, len(s.excluded)),
	}
	for d := range s.selected {
		c.selected[d] = true
	}
	for d := range s.excluded {
		c.excluded[d] = true
	}
	return c
}

func sortedKeys(m map[dates.Date]bool) []dates.Date {
	out := make([]dates.Date, 0, len(m))
	for d := range m {
		out = append(out, d)
	}
	sortDates(out)
	return out
}

func sortDates(ds []dates.Date) {
	sort.Slice(ds, func(i, j int) bool { return ds[i].Before(ds[j]) })
}
